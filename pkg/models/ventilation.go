package models

// VentilationStatus is the live state of a ventilation unit.
type VentilationStatus struct {
	State string `json:"state"`
	Mode  string `json:"mode"`
	Level int    `json:"level"`
}

// VentilationUnit is a ventilation device (cloud only).
type VentilationUnit struct {
	Base
	AmountOfLevels int                `json:"amount_of_levels"`
	Location       Location           `json:"location"`
	Status         *VentilationStatus `json:"status,omitempty"`
	Version        FlexString         `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (v *VentilationUnit) UnmarshalJSON(data []byte) error {
	type alias VentilationUnit
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*v = VentilationUnit(a)

	v.normalize(raw)
	if v.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	v.Version = versionOf(raw, v.Version)
	return nil
}
