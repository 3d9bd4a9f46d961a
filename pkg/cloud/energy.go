package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// EnergySensorsService is a placeholder: the cloud API does not publish
// energy sensors yet, so listings are always empty.
type EnergySensorsService struct{}

// GetAll always returns an empty list; the cloud exposes no energy sensors.
func (s *EnergySensorsService) GetAll(context.Context) ([]models.EnergySensor, error) {
	return []models.EnergySensor{}, nil
}

// GetByID always fails with a not-found API error.
func (s *EnergySensorsService) GetByID(_ context.Context, id int) (*models.EnergySensor, error) {
	return nil, notFound("energy sensor", id)
}
