package localgw

import (
	"context"
	"net/url"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// GroupActionsService lists and triggers group actions.
type GroupActionsService struct {
	g *Gateway
}

// GetAll returns the group actions in use. Empty slots the gateway reports
// without a name or actions are skipped.
func (s *GroupActionsService) GetAll(ctx context.Context) ([]models.GroupAction, error) {
	configs, err := s.g.configurations(ctx, "get_group_action_configurations")
	if err != nil {
		return nil, err
	}
	actions := make([]models.GroupAction, 0, len(configs))
	for _, cfg := range configs {
		ga, err := decodeMerged[models.GroupAction](cfg, nil)
		if err != nil {
			return nil, err
		}
		if ga.Name == "" && len(ga.Actions) == 0 {
			continue
		}
		actions = append(actions, ga)
	}
	return actions, nil
}

// GetByID returns a single group action.
func (s *GroupActionsService) GetByID(ctx context.Context, id int) (*models.GroupAction, error) {
	actions, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range actions {
		if actions[i].ID == id {
			return &actions[i], nil
		}
	}
	return nil, notFound("group action", id)
}

// Trigger runs a group action once. The request is not repeated after a
// failure that may have reached the gateway.
func (s *GroupActionsService) Trigger(ctx context.Context, id int) error {
	return s.g.fire(ctx, "do_group_action", url.Values{"group_action_id": {intValue(id)}})
}
