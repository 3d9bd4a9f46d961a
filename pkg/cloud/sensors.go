package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// SensorsService reads temperature, humidity and brightness sensors.
type SensorsService struct {
	c *Cloud
}

// GetAll returns every sensor of the installation.
func (s *SensorsService) GetAll(ctx context.Context) ([]models.Sensor, error) {
	return getScoped[[]models.Sensor](ctx, s.c, nil, "/sensors")
}

// GetByID returns a single sensor.
func (s *SensorsService) GetByID(ctx context.Context, id int) (*models.Sensor, error) {
	sensor, err := getScoped[models.Sensor](ctx, s.c, nil, "/sensors/%d", id)
	if err != nil {
		return nil, err
	}
	return &sensor, nil
}

// InputsService reads inputs.
type InputsService struct {
	c *Cloud
}

// GetAll returns every input of the installation.
func (s *InputsService) GetAll(ctx context.Context) ([]models.Input, error) {
	return getScoped[[]models.Input](ctx, s.c, nil, "/inputs")
}

// GetByID returns a single input.
func (s *InputsService) GetByID(ctx context.Context, id int) (*models.Input, error) {
	in, err := getScoped[models.Input](ctx, s.c, nil, "/inputs/%d", id)
	if err != nil {
		return nil, err
	}
	return &in, nil
}
