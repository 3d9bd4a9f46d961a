package models

// Input is a push button or sensor contact.
type Input struct {
	Base
	Status          *OutputStatus `json:"status,omitempty"`
	LastStateChange float64       `json:"last_state_change"`
	Room            int           `json:"room"`
	Version         FlexString    `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (i *Input) UnmarshalJSON(data []byte) error {
	type alias Input
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*i = Input(a)

	i.normalize(raw)
	i.Version = versionOf(raw, i.Version)
	return nil
}
