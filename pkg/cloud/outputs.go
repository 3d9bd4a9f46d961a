package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/models"
)

const (
	// DefaultOutputFilter limits listings to outputs a user can control.
	DefaultOutputFilter = `{"usage":"CONTROL"}`

	// LightFilter selects the outputs that drive lights.
	LightFilter = `{"type":"LIGHT"}`
)

type levelBody struct {
	Value int `json:"value"`
}

func clampLevel(v int) int {
	return min(max(v, 0), 100)
}

// OutputsService reads and switches outputs.
type OutputsService struct {
	c *Cloud
}

// GetAll returns the controllable outputs of the installation.
func (s *OutputsService) GetAll(ctx context.Context) ([]models.Output, error) {
	return s.Filter(ctx, DefaultOutputFilter)
}

// Filter returns the outputs matching a JSON filter expression. An empty
// filter falls back to DefaultOutputFilter.
func (s *OutputsService) Filter(ctx context.Context, filter string) ([]models.Output, error) {
	if filter == "" {
		filter = DefaultOutputFilter
	}
	return getScoped[[]models.Output](ctx, s.c, filterQuery(filter), "/outputs")
}

// GetByID returns a single output.
func (s *OutputsService) GetByID(ctx context.Context, id int) (*models.Output, error) {
	o, err := getScoped[models.Output](ctx, s.c, nil, "/outputs/%d", id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// TurnOn switches an output on. A non-nil value sets the dimmer level,
// clamped to 0..100.
func (s *OutputsService) TurnOn(ctx context.Context, id int, value *int) error {
	var body any
	if value != nil {
		body = levelBody{Value: clampLevel(*value)}
	}
	return s.c.post(ctx, body, true, "/outputs/%d/turn_on", id)
}

// TurnOff switches an output off.
func (s *OutputsService) TurnOff(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/outputs/%d/turn_off", id)
}

// TurnOffAll switches every output of the installation off.
func (s *OutputsService) TurnOffAll(ctx context.Context) error {
	return s.c.post(ctx, nil, true, "/outputs/turn_off")
}

// Toggle flips an output. It is never repeated after a transport failure
// that may have reached the installation.
func (s *OutputsService) Toggle(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, false, "/outputs/%d/toggle", id)
}

// LightsService is the light view of the outputs.
type LightsService struct {
	c *Cloud
}

// GetAll returns the light outputs.
func (s *LightsService) GetAll(ctx context.Context) ([]models.Light, error) {
	return getScoped[[]models.Light](ctx, s.c, filterQuery(LightFilter), "/outputs")
}

// GetByID returns a single light.
func (s *LightsService) GetByID(ctx context.Context, id int) (*models.Light, error) {
	l, err := getScoped[models.Light](ctx, s.c, nil, "/outputs/%d", id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// TurnOn switches a light on, optionally at a brightness of 0..100.
func (s *LightsService) TurnOn(ctx context.Context, id int, value *int) error {
	return s.c.Outputs.TurnOn(ctx, id, value)
}

// TurnOff switches a light off.
func (s *LightsService) TurnOff(ctx context.Context, id int) error {
	return s.c.Outputs.TurnOff(ctx, id)
}

// TurnOffAll switches every output of the installation off.
func (s *LightsService) TurnOffAll(ctx context.Context) error {
	return s.c.Outputs.TurnOffAll(ctx)
}

// Toggle flips a light.
func (s *LightsService) Toggle(ctx context.Context, id int) error {
	return s.c.Outputs.Toggle(ctx, id)
}
