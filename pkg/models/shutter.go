package models

import "encoding/json"

// Shutter states reported by the gateway
const (
	ShutterStateGoingUp   = "GOING_UP"
	ShutterStateGoingDown = "GOING_DOWN"
	ShutterStateStopped   = "STOPPED"
	ShutterStateUp        = "UP"
	ShutterStateDown      = "DOWN"
)

// ShutterStatus is the live state of a shutter.
type ShutterStatus struct {
	Locked         bool    `json:"locked"`
	ManualOverride bool    `json:"manual_override"`
	State          string  `json:"state"`
	Position       int     `json:"position"`
	LastChange     float64 `json:"last_change"`
	PresetPosition int     `json:"preset_position"`
}

// ShutterAttributes describe the window a shutter covers.
type ShutterAttributes struct {
	Azimuth      FlexString `json:"azimuth"`
	CompassPoint FlexString `json:"compass_point"`
	SurfaceArea  FlexString `json:"surface_area"`
}

// ShutterMetadata describes how the shutter is driven.
type ShutterMetadata struct {
	Protocol         string `json:"protocol"`
	ControllableName string `json:"controllable_name"`
}

// Shutter is a roller shutter, blind or awning.
type Shutter struct {
	Base
	ShutterType  string            `json:"type"`
	Location     Location          `json:"location"`
	Capabilities []string          `json:"capabilities"`
	Attributes   ShutterAttributes `json:"attributes"`
	Metadata     ShutterMetadata   `json:"metadata"`
	Status       *ShutterStatus    `json:"status,omitempty"`
	Version      FlexString        `json:"version"`
}

// UnmarshalJSON reads location, attributes and metadata from nested objects
// or, when absent, from the record's flat fields.
func (s *Shutter) UnmarshalJSON(data []byte) error {
	type alias Shutter
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*s = Shutter(a)

	s.normalize(raw)
	if s.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	if !raw.has("attributes") {
		s.Attributes = ShutterAttributes{}
		if err := json.Unmarshal(data, &s.Attributes); err != nil {
			return err
		}
	}
	if !raw.has("metadata") {
		s.Metadata = ShutterMetadata{}
		if err := json.Unmarshal(data, &s.Metadata); err != nil {
			return err
		}
	}
	s.Version = versionOf(raw, s.Version)
	return nil
}
