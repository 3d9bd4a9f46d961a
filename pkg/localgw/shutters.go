package localgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// Shutter capabilities
const (
	CapabilityUpDown   = "UP_DOWN"
	CapabilityPosition = "POSITION"
)

// unconfiguredSteps is the step count of a shutter without position feedback.
const unconfiguredSteps = 65535

// ShuttersService reads and moves shutters.
type ShuttersService struct {
	g *Gateway
}

type shutterStatusResponse struct {
	Status []string                 `json:"status"`
	Detail map[string]shutterDetail `json:"detail"`
}

type shutterDetail struct {
	State           string   `json:"state"`
	ActualPosition  *int     `json:"actual_position"`
	DesiredPosition *int     `json:"desired_position"`
	LastChange      *float64 `json:"last_change"`
}

func (r *shutterStatusResponse) status(id int) *models.ShutterStatus {
	st := &models.ShutterStatus{}
	found := false
	if id >= 0 && id < len(r.Status) {
		st.State = strings.ToUpper(r.Status[id])
		found = true
	}
	if d, ok := r.Detail[strconv.Itoa(id)]; ok {
		if d.State != "" {
			st.State = strings.ToUpper(d.State)
		}
		if d.ActualPosition != nil {
			st.Position = *d.ActualPosition
		}
		if d.DesiredPosition != nil {
			st.PresetPosition = *d.DesiredPosition
		}
		if d.LastChange != nil {
			st.LastChange = *d.LastChange
		}
		found = true
	}
	if !found {
		return nil
	}
	return st
}

// GetAll returns every configured shutter with its state.
func (s *ShuttersService) GetAll(ctx context.Context) ([]models.Shutter, error) {
	configs, err := s.g.configurations(ctx, "get_shutter_configurations")
	if err != nil {
		return nil, err
	}
	var resp shutterStatusResponse
	if err := s.g.query(ctx, "get_shutter_status", nil, &resp); err != nil {
		return nil, err
	}

	shutters := make([]models.Shutter, 0, len(configs))
	for _, cfg := range configs {
		var c struct {
			ID    *int `json:"id"`
			Steps *int `json:"steps"`
		}
		if err := json.Unmarshal(cfg, &c); err != nil || c.ID == nil {
			return nil, client.NewParseError("invalid shutter entry", err)
		}

		caps := []string{CapabilityUpDown}
		if c.Steps != nil && *c.Steps > 0 && *c.Steps < unconfiguredSteps {
			caps = append(caps, CapabilityPosition)
		}
		extra := map[string]any{"capabilities": caps}
		if st := resp.status(*c.ID); st != nil {
			extra["status"] = st
		}
		sh, err := decodeMerged[models.Shutter](cfg, extra)
		if err != nil {
			return nil, err
		}
		shutters = append(shutters, sh)
	}
	return shutters, nil
}

// GetByID returns a single shutter.
func (s *ShuttersService) GetByID(ctx context.Context, id int) (*models.Shutter, error) {
	shutters, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range shutters {
		if shutters[i].ID == id {
			return &shutters[i], nil
		}
	}
	return nil, notFound("shutter", id)
}

// Up raises a shutter.
func (s *ShuttersService) Up(ctx context.Context, id int) error {
	return s.g.set(ctx, "do_shutter_up", url.Values{"id": {intValue(id)}})
}

// Down lowers a shutter.
func (s *ShuttersService) Down(ctx context.Context, id int) error {
	return s.g.set(ctx, "do_shutter_down", url.Values{"id": {intValue(id)}})
}

// Stop halts a moving shutter.
func (s *ShuttersService) Stop(ctx context.Context, id int) error {
	return s.g.set(ctx, "do_shutter_stop", url.Values{"id": {intValue(id)}})
}

// ChangePosition drives a shutter to position, between 0 and its configured
// step count.
func (s *ShuttersService) ChangePosition(ctx context.Context, id, position int) error {
	if position < 0 {
		return client.NewValidationError(fmt.Sprintf("invalid shutter position %d", position))
	}
	return s.g.set(ctx, "do_shutter_goto", url.Values{
		"id":       {intValue(id)},
		"position": {intValue(position)},
	})
}
