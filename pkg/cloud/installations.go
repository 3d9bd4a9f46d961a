package cloud

import (
	"context"
	"fmt"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// InstallationsService lists the installations the account can reach.
// These calls are not scoped to the selected installation.
type InstallationsService struct {
	c *Cloud
}

// GetAll returns every installation visible to the account. filter is the
// API's JSON filter expression; empty means no filter.
func (s *InstallationsService) GetAll(ctx context.Context, filter string) ([]models.Installation, error) {
	return get[[]models.Installation](ctx, s.c, "/base/installations", filterQuery(filter))
}

// GetByID returns a single installation.
func (s *InstallationsService) GetByID(ctx context.Context, id int) (*models.Installation, error) {
	inst, err := get[models.Installation](ctx, s.c, fmt.Sprintf("/base/installations/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
