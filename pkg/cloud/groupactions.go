package cloud

import (
	"context"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// SceneFilter selects group actions configured as scenes.
const SceneFilter = `{"usage":"SCENE"}`

// GroupActionsService lists and triggers group actions.
type GroupActionsService struct {
	c *Cloud
}

// GetAll returns every group action.
func (s *GroupActionsService) GetAll(ctx context.Context) ([]models.GroupAction, error) {
	return getScoped[[]models.GroupAction](ctx, s.c, nil, "/groupactions")
}

// GetByID returns a single group action.
func (s *GroupActionsService) GetByID(ctx context.Context, id int) (*models.GroupAction, error) {
	ga, err := getScoped[models.GroupAction](ctx, s.c, nil, "/groupactions/%d", id)
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

// Scenes returns the group actions used as scenes.
func (s *GroupActionsService) Scenes(ctx context.Context) ([]models.GroupAction, error) {
	return getScoped[[]models.GroupAction](ctx, s.c, filterQuery(SceneFilter), "/groupactions")
}

// Trigger runs a group action. A failed trigger is not repeated unless the
// request provably never reached the installation.
func (s *GroupActionsService) Trigger(ctx context.Context, id int) error {
	return s.c.post(ctx, nil, false, "/groupactions/%d/trigger", id)
}
