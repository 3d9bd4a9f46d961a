package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// VentilationsService reads ventilation units.
type VentilationsService struct {
	c *Cloud
}

// GetAll returns every ventilation unit.
func (s *VentilationsService) GetAll(ctx context.Context) ([]models.VentilationUnit, error) {
	return getScoped[[]models.VentilationUnit](ctx, s.c, nil, "/ventilations/units")
}

// GetByID returns a single ventilation unit.
func (s *VentilationsService) GetByID(ctx context.Context, id int) (*models.VentilationUnit, error) {
	v, err := getScoped[models.VentilationUnit](ctx, s.c, nil, "/ventilations/units/%d", id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
