package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// ShuttersService reads and moves shutters.
type ShuttersService struct {
	c *Cloud
}

// GetAll returns the shutters of the installation.
func (s *ShuttersService) GetAll(ctx context.Context) ([]models.Shutter, error) {
	return getScoped[[]models.Shutter](ctx, s.c, nil, "/shutters")
}

// GetByID returns a single shutter.
func (s *ShuttersService) GetByID(ctx context.Context, id int) (*models.Shutter, error) {
	sh, err := getScoped[models.Shutter](ctx, s.c, nil, "/shutters/%d", id)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// Up raises a shutter.
func (s *ShuttersService) Up(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/shutters/%d/up", id)
}

// Down lowers a shutter.
func (s *ShuttersService) Down(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/shutters/%d/down", id)
}

// Stop halts a moving shutter.
func (s *ShuttersService) Stop(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/shutters/%d/stop", id)
}

// ChangePosition moves a shutter to an absolute position.
func (s *ShuttersService) ChangePosition(ctx context.Context, id, position int) error {
	if position < 0 {
		return client.NewValidationError("position must not be negative")
	}
	body := struct {
		Position int `json:"position"`
	}{position}
	return s.c.post(ctx, body, true, "/shutters/%d/change_position", id)
}

// Lock prevents a shutter from being moved.
func (s *ShuttersService) Lock(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/shutters/%d/lock", id)
}

// Unlock releases a locked shutter.
func (s *ShuttersService) Unlock(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, true, "/shutters/%d/unlock", id)
}
