package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Base carries the identity shared by every gateway resource.
type Base struct {
	ID      int    `json:"id"`       // Vendor id, unique within a listing
	LocalID int    `json:"local_id"` // Gateway-local id (defaults to ID)
	Name    string `json:"name"`
}

// String returns "<id>_<name>".
func (b Base) String() string {
	return fmt.Sprintf("%d_%s", b.ID, b.Name)
}

func (b *Base) normalize(raw rawObject) {
	if !raw.has("local_id") {
		b.LocalID = b.ID
	}
}

// FloorCoordinates is the position of a resource on a floor plan.
type FloorCoordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Location places a resource in the building.
type Location struct {
	InstallationID   int               `json:"installation_id"`
	GatewayID        int               `json:"gateway_id"`
	FloorID          int               `json:"floor_id"`
	RoomID           int               `json:"room_id"`
	FloorCoordinates *FloorCoordinates `json:"floor_coordinates,omitempty"`
}

// UnmarshalJSON accepts "room" as a fallback for "room_id" and drops floor
// coordinates that lack either axis.
func (l *Location) UnmarshalJSON(data []byte) error {
	type alias Location
	var a struct {
		alias
		Room             *int            `json:"room"`
		FloorCoordinates json.RawMessage `json:"floor_coordinates"`
	}
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*l = Location(a.alias)

	if !raw.has("room_id") && a.Room != nil {
		l.RoomID = *a.Room
	}

	l.FloorCoordinates = nil
	if len(a.FloorCoordinates) > 0 {
		var fc struct {
			X *int `json:"x"`
			Y *int `json:"y"`
		}
		if err := json.Unmarshal(a.FloorCoordinates, &fc); err == nil && fc.X != nil && fc.Y != nil {
			l.FloorCoordinates = &FloorCoordinates{X: *fc.X, Y: *fc.Y}
		}
	}
	return nil
}

// locationOf returns the nested "location" object when present, otherwise
// builds the location from the record's own flat fields.
func locationOf(raw rawObject, data []byte) (Location, error) {
	var loc Location
	src := data
	if raw.has("location") {
		src = raw["location"]
	}
	if err := json.Unmarshal(src, &loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// FlexString holds a vendor value that is sometimes sent as a string and
// sometimes as a number or boolean (versions, attributes, preset values).
type FlexString string

// UnmarshalJSON keeps the literal text of non-string scalars.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return fmt.Errorf("models: cannot decode %s into a scalar", text)
	}
	*s = FlexString(text)
	return nil
}

// Allowed is a single ACL entry.
type Allowed struct {
	Allowed bool `json:"allowed"`
}

// rawObject is a decoded JSON object keyed by vendor field name.
type rawObject map[string]json.RawMessage

// has reports whether key is present with a non-null value.
func (r rawObject) has(key string) bool {
	v, ok := r[key]
	return ok && strings.TrimSpace(string(v)) != "null"
}

// decodeObject unmarshals data into v and also returns its raw keys.
func decodeObject(data []byte, v any) (rawObject, error) {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return raw, nil
}

// versionOf prefers "version" and falls back to the cloud's "_version".
func versionOf(raw rawObject, current FlexString) FlexString {
	if raw.has("version") || !raw.has("_version") {
		return current
	}
	var v FlexString
	if err := json.Unmarshal(raw["_version"], &v); err != nil {
		return current
	}
	return v
}
