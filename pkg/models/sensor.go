package models

// Physical quantities measured by sensors
const (
	QuantityTemperature = "temperature"
	QuantityHumidity    = "humidity"
	QuantityBrightness  = "brightness"
)

// SensorStatus holds the last reading of a sensor.
type SensorStatus struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Brightness  int     `json:"brightness"`
}

// Sensor is a temperature, humidity or brightness sensor.
type Sensor struct {
	Base
	Location         Location      `json:"location"`
	PhysicalQuantity string        `json:"physical_quantity"`
	Status           *SensorStatus `json:"status,omitempty"`
	LastStateChange  float64       `json:"last_state_change"`
	Version          FlexString    `json:"version"`
}

// UnmarshalJSON applies the vendor normalisation rules.
func (s *Sensor) UnmarshalJSON(data []byte) error {
	type alias Sensor
	var a alias
	raw, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*s = Sensor(a)

	s.normalize(raw)
	if s.Location, err = locationOf(raw, data); err != nil {
		return err
	}
	s.Version = versionOf(raw, s.Version)
	return nil
}
