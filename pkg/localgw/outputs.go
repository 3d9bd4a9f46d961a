package localgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// OutputsService reads and switches outputs.
type OutputsService struct {
	g *Gateway
}

// GetAll returns every configured output with its live status.
func (s *OutputsService) GetAll(ctx context.Context) ([]models.Output, error) {
	configs, err := s.g.configurations(ctx, "get_output_configurations")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Status []json.RawMessage `json:"status"`
	}
	if err := s.g.query(ctx, "get_output_status", nil, &resp); err != nil {
		return nil, err
	}
	statuses, err := statusByID(resp.Status)
	if err != nil {
		return nil, err
	}

	outputs := make([]models.Output, 0, len(configs))
	for _, cfg := range configs {
		id, err := idOf(cfg)
		if err != nil {
			return nil, err
		}
		extra := map[string]any{}
		if st, ok := statuses[id]; ok {
			extra["status"] = st
		}
		o, err := decodeMerged[models.Output](cfg, extra)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, nil
}

// GetByID returns a single output.
func (s *OutputsService) GetByID(ctx context.Context, id int) (*models.Output, error) {
	outputs, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range outputs {
		if outputs[i].ID == id {
			return &outputs[i], nil
		}
	}
	return nil, notFound("output", id)
}

// TurnOn switches an output on. A non-nil value sets the dimmer level,
// clamped to 0..100.
func (s *OutputsService) TurnOn(ctx context.Context, id int, value *int) error {
	form := url.Values{"id": {intValue(id)}, "is_on": {boolValue(true)}}
	if value != nil {
		form.Set("dimmer", intValue(clampLevel(*value)))
	}
	return s.g.set(ctx, "set_output", form)
}

// TurnOff switches an output off.
func (s *OutputsService) TurnOff(ctx context.Context, id int) error {
	form := url.Values{"id": {intValue(id)}, "is_on": {boolValue(false)}}
	return s.g.set(ctx, "set_output", form)
}

// TurnOffAll switches off every output that is currently on.
func (s *OutputsService) TurnOffAll(ctx context.Context) error {
	outputs, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, o := range outputs {
		if o.Status == nil || !o.Status.On {
			continue
		}
		if err := s.TurnOff(ctx, o.ID); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Toggle inverts the current state of an output.
func (s *OutputsService) Toggle(ctx context.Context, id int) error {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != nil && o.Status.On {
		return s.TurnOff(ctx, id)
	}
	return s.TurnOn(ctx, id, nil)
}

// LightsService works on the outputs configured as lights.
type LightsService struct {
	g *Gateway
}

// GetAll returns every output configured as a light.
func (s *LightsService) GetAll(ctx context.Context) ([]models.Light, error) {
	outputs, err := s.g.Outputs.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var lights []models.Light
	for _, o := range outputs {
		if o.IsLight() {
			lights = append(lights, models.LightFromOutput(o))
		}
	}
	return lights, nil
}

// GetByID returns a single light. Outputs that are not lights are not found.
func (s *LightsService) GetByID(ctx context.Context, id int) (*models.Light, error) {
	lights, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lights {
		if lights[i].ID == id {
			return &lights[i], nil
		}
	}
	return nil, notFound("light", id)
}

// TurnOn switches a light on, at value percent when given.
func (s *LightsService) TurnOn(ctx context.Context, id int, value *int) error {
	return s.g.Outputs.TurnOn(ctx, id, value)
}

// TurnOff switches a light off.
func (s *LightsService) TurnOff(ctx context.Context, id int) error {
	return s.g.Outputs.TurnOff(ctx, id)
}

// TurnOffAll switches off every light in one action.
func (s *LightsService) TurnOffAll(ctx context.Context) error {
	return s.g.set(ctx, "set_all_lights_off", nil)
}

// Toggle flips a light.
func (s *LightsService) Toggle(ctx context.Context, id int) error {
	l, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l.Status != nil && l.Status.On {
		return s.TurnOff(ctx, id)
	}
	return s.TurnOn(ctx, id, nil)
}
