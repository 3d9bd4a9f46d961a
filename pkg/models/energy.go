package models

import (
	"encoding/json"
	"strings"
)

// EnergyStatus is a realtime power reading.
type EnergyStatus struct {
	Voltage   float64 `json:"voltage"`
	Frequency float64 `json:"frequency"`
	Current   float64 `json:"current"`
	Power     float64 `json:"power"`
}

// MarshalJSON encodes the reading in the gateway's list form
// [voltage, frequency, current, power].
func (s EnergyStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{s.Voltage, s.Frequency, s.Current, s.Power})
}

// UnmarshalJSON accepts the list form, with missing trailing entries as 0,
// or an object.
func (s *EnergyStatus) UnmarshalJSON(data []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		type alias EnergyStatus
		var a alias
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*s = EnergyStatus(a)
		return nil
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	at := func(i int) float64 {
		if i < len(values) {
			return values[i]
		}
		return 0
	}
	*s = EnergyStatus{Voltage: at(0), Frequency: at(1), Current: at(2), Power: at(3)}
	return nil
}

// EnergySensor is one measuring input of a power module.
type EnergySensor struct {
	Base
	Status   *EnergyStatus `json:"status,omitempty"`
	Inverted bool          `json:"inverted"`
}

// UnmarshalJSON reads the status as [voltage, frequency, current, power].
func (e *EnergySensor) UnmarshalJSON(data []byte) error {
	type alias EnergySensor
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*e = EnergySensor(a)
	e.normalize(raw)
	return nil
}
