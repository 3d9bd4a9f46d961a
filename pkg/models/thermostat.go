package models

import "encoding/json"

// Thermostat group modes
const (
	ThermostatModeHeating = "HEATING"
	ThermostatModeCooling = "COOLING"
)

// Thermostat unit presets
const (
	PresetAuto     = "AUTO"
	PresetAway     = "AWAY"
	PresetParty    = "PARTY"
	PresetVacation = "VACATION"
	PresetManual   = "MANUAL"
)

// ThermostatACL lists what the current user may change.
type ThermostatACL struct {
	SetState Allowed `json:"set_state"`
	SetMode  Allowed `json:"set_mode"`
}

// aclOf reads "acl", falling back to the cloud's "_acl".
func aclOf(raw rawObject, current ThermostatACL) (ThermostatACL, error) {
	if raw.has("acl") || !raw.has("_acl") {
		return current, nil
	}
	var acl ThermostatACL
	if err := json.Unmarshal(raw["_acl"], &acl); err != nil {
		return current, err
	}
	return acl, nil
}

// Schedule is a weekly setpoint program.
type Schedule struct {
	Data  map[string]any `json:"data"`
	Start string         `json:"start"`
}

// UnmarshalJSON guarantees a non-nil Data map.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	type alias Schedule
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Schedule(a)
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return nil
}

// ThermostatGroupStatus is the live state of a thermostat group.
type ThermostatGroupStatus struct {
	Mode  string     `json:"mode"`
	State FlexString `json:"state"`
}

// ThermostatGroup bundles the thermostat units that share a mode.
type ThermostatGroup struct {
	Base
	Schedule      *Schedule              `json:"schedule,omitempty"`
	Capabilities  []string               `json:"capabilities"`
	Version       FlexString             `json:"version"`
	ThermostatIDs map[string]any         `json:"thermostat_ids"`
	Status        *ThermostatGroupStatus `json:"status,omitempty"`
	ACL           ThermostatACL          `json:"acl"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (g *ThermostatGroup) UnmarshalJSON(data []byte) error {
	type alias ThermostatGroup
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*g = ThermostatGroup(a)

	g.normalize(raw)
	if g.ACL, err = aclOf(raw, g.ACL); err != nil {
		return err
	}
	g.Version = versionOf(raw, g.Version)
	return nil
}

// ThermostatUnitLocation places a thermostat unit.
type ThermostatUnitLocation struct {
	ThermostatGroupID int `json:"thermostat_group_id"`
	InstallationID    int `json:"installation_id"`
	RoomID            int `json:"room_id"`
}

// ThermostatUnitStatus is the live state of a thermostat unit.
type ThermostatUnitStatus struct {
	ActualTemperature float64    `json:"actual_temperature"`
	CurrentSetpoint   float64    `json:"setpoint_temperature"`
	Output0           FlexString `json:"output_0"`
	Output1           FlexString `json:"output_1"`
	Preset            string     `json:"preset"`
}

// UnmarshalJSON accepts "current_setpoint" when "setpoint_temperature" is absent.
func (s *ThermostatUnitStatus) UnmarshalJSON(data []byte) error {
	type alias ThermostatUnitStatus
	var a struct {
		alias
		Current *float64 `json:"current_setpoint"`
	}
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*s = ThermostatUnitStatus(a.alias)
	if !raw.has("setpoint_temperature") && a.Current != nil {
		s.CurrentSetpoint = *a.Current
	}
	return nil
}

// Presets maps preset names to their setpoints.
type Presets struct {
	Away     FlexString `json:"away"`
	Party    FlexString `json:"party"`
	Vacation FlexString `json:"vacation"`
}

// ThermostatModeConfig is the heating or cooling configuration of a unit.
type ThermostatModeConfig struct {
	Output0ID int       `json:"output_0_id"`
	Output1ID int       `json:"output_1_id"`
	Presets   Presets   `json:"presets"`
	Schedule  *Schedule `json:"schedule,omitempty"`
	SensorID  int       `json:"sensor_id"`
}

// UnmarshalJSON reads presets from a nested object or from flat fields.
func (c *ThermostatModeConfig) UnmarshalJSON(data []byte) error {
	type alias ThermostatModeConfig
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*c = ThermostatModeConfig(a)
	if !raw.has("presets") {
		c.Presets = Presets{}
		if err := json.Unmarshal(data, &c.Presets); err != nil {
			return err
		}
	}
	return nil
}

// ThermostatConfiguration holds both mode configurations of a unit.
type ThermostatConfiguration struct {
	Heating *ThermostatModeConfig `json:"heating,omitempty"`
	Cooling *ThermostatModeConfig `json:"cooling,omitempty"`
}

// ThermostatUnit is a single room thermostat.
type ThermostatUnit struct {
	Base
	Location      ThermostatUnitLocation   `json:"location"`
	Status        *ThermostatUnitStatus    `json:"status,omitempty"`
	Configuration *ThermostatConfiguration `json:"configuration,omitempty"`
	Version       FlexString               `json:"version"`
	ACL           ThermostatACL            `json:"acl"`
}

// UnmarshalJSON applies the vendor normalisation rules and reads a flat
// location when no location object is present.
func (u *ThermostatUnit) UnmarshalJSON(data []byte) error {
	type alias ThermostatUnit
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*u = ThermostatUnit(a)

	u.normalize(raw)
	if !raw.has("location") {
		u.Location = ThermostatUnitLocation{}
		if err := json.Unmarshal(data, &u.Location); err != nil {
			return err
		}
	}
	if u.ACL, err = aclOf(raw, u.ACL); err != nil {
		return err
	}
	u.Version = versionOf(raw, u.Version)
	return nil
}
