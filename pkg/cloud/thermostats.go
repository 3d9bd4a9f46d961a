package cloud

import (
	"context"
	"strings"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// ThermostatsService groups the thermostat group and unit endpoints.
type ThermostatsService struct {
	Groups *ThermostatGroupsService
	Units  *ThermostatUnitsService
}

// ThermostatGroupsService reads and configures thermostat groups.
type ThermostatGroupsService struct {
	c *Cloud
}

// GetAll returns every thermostat group.
func (s *ThermostatGroupsService) GetAll(ctx context.Context) ([]models.ThermostatGroup, error) {
	return getScoped[[]models.ThermostatGroup](ctx, s.c, nil, "/thermostats/groups")
}

// GetByID returns a single thermostat group.
func (s *ThermostatGroupsService) GetByID(ctx context.Context, id int) (*models.ThermostatGroup, error) {
	g, err := getScoped[models.ThermostatGroup](ctx, s.c, nil, "/thermostats/groups/%d", id)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SetMode switches a group between HEATING and COOLING.
func (s *ThermostatGroupsService) SetMode(ctx context.Context, id int, mode string) error {
	mode = strings.ToUpper(mode)
	if mode != models.ThermostatModeHeating && mode != models.ThermostatModeCooling {
		return client.NewValidationError("mode must be HEATING or COOLING")
	}
	body := struct {
		Mode string `json:"mode"`
	}{mode}
	return s.c.post(ctx, body, true, "/thermostats/groups/%d/mode", id)
}

// SetState switches every thermostat of a group on or off.
func (s *ThermostatGroupsService) SetState(ctx context.Context, id int, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	body := struct {
		State string `json:"state"`
	}{state}
	return s.c.post(ctx, body, true, "/thermostats/groups/%d/state", id)
}

// ThermostatUnitsService reads and adjusts individual thermostats.
type ThermostatUnitsService struct {
	c *Cloud
}

// GetAll returns every thermostat unit.
func (s *ThermostatUnitsService) GetAll(ctx context.Context) ([]models.ThermostatUnit, error) {
	return getScoped[[]models.ThermostatUnit](ctx, s.c, nil, "/thermostats/units")
}

// GetByID returns a single thermostat unit.
func (s *ThermostatUnitsService) GetByID(ctx context.Context, id int) (*models.ThermostatUnit, error) {
	u, err := getScoped[models.ThermostatUnit](ctx, s.c, nil, "/thermostats/units/%d", id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetSetpoint sets the target temperature of a unit.
func (s *ThermostatUnitsService) SetSetpoint(ctx context.Context, id int, temperature float64) error {
	body := struct {
		Temperature float64 `json:"temperature"`
	}{temperature}
	return s.c.post(ctx, body, true, "/thermostats/units/%d/setpoint", id)
}

// SetPreset selects one of AUTO, AWAY, PARTY, VACATION or MANUAL.
func (s *ThermostatUnitsService) SetPreset(ctx context.Context, id int, preset string) error {
	preset = strings.ToUpper(preset)
	switch preset {
	case models.PresetAuto, models.PresetAway, models.PresetParty, models.PresetVacation, models.PresetManual:
	default:
		return client.NewValidationError("unknown preset " + preset)
	}
	body := struct {
		Preset string `json:"preset"`
	}{preset}
	return s.c.post(ctx, body, true, "/thermostats/units/%d/preset", id)
}
