package localgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// The gateway runs all thermostats as one group.
const (
	thermostatGroupID   = 0
	thermostatGroupName = "Thermostats"
)

// Setpoint slots used for the presets; 0-2 belong to the weekly schedule.
const (
	setpointAway     = 3
	setpointVacation = 4
	setpointParty    = 5
)

// ThermostatsService groups the thermostat sub-services.
type ThermostatsService struct {
	Groups *ThermostatGroupsService
	Units  *ThermostatUnitsService
}

type thermostatStatusResponse struct {
	ThermostatsOn bool               `json:"thermostats_on"`
	Automatic     bool               `json:"automatic"`
	Setpoint      int                `json:"setpoint"`
	Cooling       bool               `json:"cooling"`
	Status        []thermostatStatus `json:"status"`
}

type thermostatStatus struct {
	ID        int      `json:"id"`
	Actual    *float64 `json:"act"`
	Setpoint  *float64 `json:"csetp"`
	Output0   *float64 `json:"output0"`
	Output1   *float64 `json:"output1"`
	Automatic bool     `json:"automatic"`
	Slot      int      `json:"setpoint"`
}

type thermostatConfig struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Sensor  int      `json:"sensor"`
	Output0 int      `json:"output0"`
	Output1 int      `json:"output1"`
	Room    int      `json:"room"`
	Setp3   *float64 `json:"setp3"`
	Setp4   *float64 `json:"setp4"`
	Setp5   *float64 `json:"setp5"`
}

func (c thermostatConfig) modeConfig() *models.ThermostatModeConfig {
	return &models.ThermostatModeConfig{
		Output0ID: c.Output0,
		Output1ID: c.Output1,
		SensorID:  c.Sensor,
		Presets: models.Presets{
			Away:     flexFloat(c.Setp3),
			Vacation: flexFloat(c.Setp4),
			Party:    flexFloat(c.Setp5),
		},
	}
}

func flexFloat(v *float64) models.FlexString {
	if v == nil {
		return ""
	}
	return models.FlexString(strconv.FormatFloat(*v, 'f', -1, 64))
}

func allowAll() models.ThermostatACL {
	return models.ThermostatACL{
		SetState: models.Allowed{Allowed: true},
		SetMode:  models.Allowed{Allowed: true},
	}
}

// presetOf names the preset a thermostat is running.
func presetOf(automatic bool, slot int) string {
	if automatic {
		return models.PresetAuto
	}
	switch slot {
	case setpointAway:
		return models.PresetAway
	case setpointVacation:
		return models.PresetVacation
	case setpointParty:
		return models.PresetParty
	default:
		return models.PresetManual
	}
}

func (g *Gateway) thermostatStatus(ctx context.Context) (*thermostatStatusResponse, error) {
	var resp thermostatStatusResponse
	if err := g.query(ctx, "get_thermostat_status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ThermostatGroupsService controls the thermostat group.
type ThermostatGroupsService struct {
	g *Gateway
}

// GetAll returns the gateway's single thermostat group.
func (s *ThermostatGroupsService) GetAll(ctx context.Context) ([]models.ThermostatGroup, error) {
	resp, err := s.g.thermostatStatus(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(resp.Status))
	for _, st := range resp.Status {
		ids = append(ids, st.ID)
	}

	mode := models.ThermostatModeHeating
	if resp.Cooling {
		mode = models.ThermostatModeCooling
	}
	state := "OFF"
	if resp.ThermostatsOn {
		state = "ON"
	}
	return []models.ThermostatGroup{{
		Base:          models.Base{ID: thermostatGroupID, LocalID: thermostatGroupID, Name: thermostatGroupName},
		Capabilities:  []string{models.ThermostatModeHeating, models.ThermostatModeCooling},
		ThermostatIDs: map[string]any{"thermostats": ids},
		Status:        &models.ThermostatGroupStatus{Mode: mode, State: models.FlexString(state)},
		ACL:           allowAll(),
	}}, nil
}

// GetByID returns the thermostat group; only id 0 exists.
func (s *ThermostatGroupsService) GetByID(ctx context.Context, id int) (*models.ThermostatGroup, error) {
	if id != thermostatGroupID {
		return nil, notFound("thermostat group", id)
	}
	groups, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// SetMode switches the group between heating and cooling.
func (s *ThermostatGroupsService) SetMode(ctx context.Context, id int, mode string) error {
	if mode != models.ThermostatModeHeating && mode != models.ThermostatModeCooling {
		return client.NewValidationError(fmt.Sprintf("invalid thermostat mode %q", mode))
	}
	return s.update(ctx, id, func(st *thermostatStatusResponse) {
		st.Cooling = mode == models.ThermostatModeCooling
	})
}

// SetState turns the whole group on or off.
func (s *ThermostatGroupsService) SetState(ctx context.Context, id int, on bool) error {
	return s.update(ctx, id, func(st *thermostatStatusResponse) {
		st.ThermostatsOn = on
	})
}

// update reads the global thermostat state, applies fn and writes it back.
func (s *ThermostatGroupsService) update(ctx context.Context, id int, fn func(*thermostatStatusResponse)) error {
	if id != thermostatGroupID {
		return notFound("thermostat group", id)
	}
	st, err := s.g.thermostatStatus(ctx)
	if err != nil {
		return err
	}
	fn(st)
	return s.g.set(ctx, "set_thermostat_mode", url.Values{
		"thermostat_on": {boolValue(st.ThermostatsOn)},
		"automatic":     {boolValue(st.Automatic)},
		"setpoint":      {intValue(st.Setpoint)},
		"cooling_mode":  {boolValue(st.Cooling)},
		"cooling_on":    {boolValue(st.ThermostatsOn)},
	})
}

// ThermostatUnitsService reads and adjusts individual thermostats.
type ThermostatUnitsService struct {
	g *Gateway
}

// GetAll returns the configured thermostats with their live status.
// Unnamed slots are skipped.
func (s *ThermostatUnitsService) GetAll(ctx context.Context) ([]models.ThermostatUnit, error) {
	var (
		heating, cooling []json.RawMessage
		status           *thermostatStatusResponse
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) {
		heating, err = s.g.configurations(gctx, "get_thermostat_configurations")
		return err
	})
	grp.Go(func() (err error) {
		cooling, err = s.g.configurations(gctx, "get_cooling_configurations")
		return err
	})
	grp.Go(func() (err error) {
		status, err = s.g.thermostatStatus(gctx)
		return err
	})
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	coolingByID := map[int]thermostatConfig{}
	for _, raw := range cooling {
		var c thermostatConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, client.NewParseError("invalid cooling configuration", err)
		}
		coolingByID[c.ID] = c
	}
	statusByID := map[int]thermostatStatus{}
	for _, st := range status.Status {
		statusByID[st.ID] = st
	}

	var units []models.ThermostatUnit
	for _, raw := range heating {
		var c thermostatConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, client.NewParseError("invalid thermostat configuration", err)
		}
		if c.Name == "" {
			continue
		}

		u := models.ThermostatUnit{
			Base: models.Base{ID: c.ID, LocalID: c.ID, Name: c.Name},
			Location: models.ThermostatUnitLocation{
				ThermostatGroupID: thermostatGroupID,
				RoomID:            c.Room,
			},
			Configuration: &models.ThermostatConfiguration{Heating: c.modeConfig()},
			ACL:           allowAll(),
		}
		if cc, ok := coolingByID[c.ID]; ok {
			u.Configuration.Cooling = cc.modeConfig()
		}
		if st, ok := statusByID[c.ID]; ok {
			u.Status = &models.ThermostatUnitStatus{
				Output0: flexFloat(st.Output0),
				Output1: flexFloat(st.Output1),
				Preset:  presetOf(st.Automatic, st.Slot),
			}
			if st.Actual != nil {
				u.Status.ActualTemperature = *st.Actual
			}
			if st.Setpoint != nil {
				u.Status.CurrentSetpoint = *st.Setpoint
			}
		}
		units = append(units, u)
	}
	return units, nil
}

// GetByID returns a single thermostat.
func (s *ThermostatUnitsService) GetByID(ctx context.Context, id int) (*models.ThermostatUnit, error) {
	units, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range units {
		if units[i].ID == id {
			return &units[i], nil
		}
	}
	return nil, notFound("thermostat", id)
}

// SetSetpoint overrides the current setpoint of a thermostat.
func (s *ThermostatUnitsService) SetSetpoint(ctx context.Context, id int, temperature float64) error {
	return s.g.set(ctx, "set_current_setpoint", url.Values{
		"thermostat":  {intValue(id)},
		"temperature": {strconv.FormatFloat(temperature, 'f', -1, 64)},
	})
}

// SetPreset selects AUTO, MANUAL, AWAY, VACATION or PARTY.
func (s *ThermostatUnitsService) SetPreset(ctx context.Context, id int, preset string) error {
	automatic := false
	slot := 0
	switch preset {
	case models.PresetAuto:
		automatic = true
	case models.PresetManual:
	case models.PresetAway:
		slot = setpointAway
	case models.PresetVacation:
		slot = setpointVacation
	case models.PresetParty:
		slot = setpointParty
	default:
		return client.NewValidationError(fmt.Sprintf("invalid thermostat preset %q", preset))
	}
	return s.g.set(ctx, "set_per_thermostat_mode", url.Values{
		"thermostat_id": {intValue(id)},
		"automatic":     {boolValue(automatic)},
		"setpoint":      {intValue(slot)},
	})
}
