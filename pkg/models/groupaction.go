package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActionList is the flat list of basic-action codes of a group action. The
// local gateway sends it as a comma separated string, the cloud as an array.
type ActionList []int

// UnmarshalJSON accepts a JSON array or a comma separated string.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	switch {
	case text == "null":
		*l = nil
		return nil
	case strings.HasPrefix(text, "["):
		var v []int
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = v
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	out := ActionList{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("models: invalid action code %q", part)
		}
		out = append(out, n)
	}
	*l = out
	return nil
}

// GroupAction is a named sequence of basic actions (a scene or automation).
type GroupAction struct {
	Base
	Actions  ActionList `json:"actions"`
	Location Location   `json:"location"`
	Version  FlexString `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (g *GroupAction) UnmarshalJSON(data []byte) error {
	type alias GroupAction
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*g = GroupAction(a)

	g.normalize(raw)
	if g.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	g.Version = versionOf(raw, g.Version)
	return nil
}
