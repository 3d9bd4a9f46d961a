package models

import "encoding/json"

// Capabilities reported for outputs and lights
const (
	CapabilityOnOff = "ON_OFF"
	CapabilityRange = "RANGE"
)

// ModuleTypeDimmer marks an output on a dimmer module.
const ModuleTypeDimmer = "D"

// OutputStatus is the live state of an output, light or input.
type OutputStatus struct {
	On             bool `json:"on"`
	Locked         bool `json:"locked"`
	ManualOverride bool `json:"manual_override"`
	Value          int  `json:"dimmer"` // Dimmer level 0-100
}

// UnmarshalJSON treats "status": 1 as on and accepts "value" for the dimmer level.
func (s *OutputStatus) UnmarshalJSON(data []byte) error {
	type alias OutputStatus
	var a struct {
		alias
		Status *int `json:"status"`
		Value  *int `json:"value"`
	}
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*s = OutputStatus(a.alias)

	if a.Status != nil && *a.Status == 1 {
		s.On = true
	}
	if !raw.has("dimmer") && a.Value != nil {
		s.Value = *a.Value
	}
	return nil
}

// Output is a relay or dimmer output.
type Output struct {
	Base
	Type            FlexString     `json:"type"`
	ModuleType      string         `json:"module_type,omitempty"`
	Location        Location       `json:"location"`
	Capabilities    []string       `json:"capabilities"`
	Metadata        map[string]any `json:"metadata"`
	Status          *OutputStatus  `json:"status,omitempty"`
	LastStateChange float64        `json:"last_state_change"`
	Version         FlexString     `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (o *Output) UnmarshalJSON(data []byte) error {
	type alias Output
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*o = Output(a)

	o.normalize(raw)
	if o.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	if _, ok := raw["capabilities"]; !ok {
		o.Capabilities = deriveCapabilities(o.ModuleType)
	}
	o.Version = versionOf(raw, o.Version)
	return nil
}

// IsLight reports whether the output drives a light.
func (o *Output) IsLight() bool {
	return o.Type == "LIGHT" || o.Type == "255"
}

// Dimmable reports whether the output accepts a level.
func (o *Output) Dimmable() bool {
	for _, c := range o.Capabilities {
		if c == CapabilityRange {
			return true
		}
	}
	return false
}

// Light is an output configured as a light.
type Light struct {
	Base
	ModuleType      string         `json:"module_type,omitempty"`
	Location        Location       `json:"location"`
	Capabilities    []string       `json:"capabilities"`
	Metadata        map[string]any `json:"metadata"`
	Status          *OutputStatus  `json:"status,omitempty"`
	LastStateChange float64        `json:"last_state_change"`
	Version         FlexString     `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules. Capabilities are
// derived from the module type only when the payload carries none.
func (l *Light) UnmarshalJSON(data []byte) error {
	type alias Light
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*l = Light(a)

	l.normalize(raw)
	if l.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	if _, ok := raw["capabilities"]; !ok {
		l.Capabilities = deriveCapabilities(l.ModuleType)
	}
	l.Version = versionOf(raw, l.Version)
	return nil
}

// LightFromOutput converts an output listing entry into a Light.
func LightFromOutput(o Output) Light {
	return Light{
		Base:            o.Base,
		ModuleType:      o.ModuleType,
		Location:        o.Location,
		Capabilities:    o.Capabilities,
		Metadata:        o.Metadata,
		Status:          o.Status,
		LastStateChange: o.LastStateChange,
		Version:         o.Version,
	}
}

func deriveCapabilities(moduleType string) []string {
	caps := []string{CapabilityOnOff}
	if moduleType == ModuleTypeDimmer {
		caps = append(caps, CapabilityRange)
	}
	return caps
}

var (
	_ json.Unmarshaler = (*Output)(nil)
	_ json.Unmarshaler = (*Light)(nil)
)
