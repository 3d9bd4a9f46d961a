package localgw

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// SensorsService reads sensors.
type SensorsService struct {
	g *Gateway
}

type sensorReadings struct {
	temperature []*float64
	humidity    []*float64
	brightness  []*float64
}

func reading(values []*float64, id int) *float64 {
	if id < 0 || id >= len(values) {
		return nil
	}
	return values[id]
}

// readings fetches the three status listings concurrently.
func (s *SensorsService) readings(ctx context.Context) (*sensorReadings, error) {
	var r sensorReadings
	grp, ctx := errgroup.WithContext(ctx)
	fetch := func(action string, dst *[]*float64) {
		grp.Go(func() error {
			var resp struct {
				Status []*float64 `json:"status"`
			}
			if err := s.g.query(ctx, action, nil, &resp); err != nil {
				return err
			}
			*dst = resp.Status
			return nil
		})
	}
	fetch("get_sensor_temperature_status", &r.temperature)
	fetch("get_sensor_humidity_status", &r.humidity)
	fetch("get_sensor_brightness_status", &r.brightness)
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAll returns the configured sensors merged with their latest readings.
// Unnamed sensors that report nothing are skipped.
func (s *SensorsService) GetAll(ctx context.Context) ([]models.Sensor, error) {
	configs, err := s.g.configurations(ctx, "get_sensor_configurations")
	if err != nil {
		return nil, err
	}
	r, err := s.readings(ctx)
	if err != nil {
		return nil, err
	}

	sensors := make([]models.Sensor, 0, len(configs))
	for _, cfg := range configs {
		id, err := idOf(cfg)
		if err != nil {
			return nil, err
		}
		temp := reading(r.temperature, id)
		hum := reading(r.humidity, id)
		bright := reading(r.brightness, id)

		quantity := ""
		switch {
		case temp != nil:
			quantity = models.QuantityTemperature
		case hum != nil:
			quantity = models.QuantityHumidity
		case bright != nil:
			quantity = models.QuantityBrightness
		}

		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(cfg, &named); err != nil {
			return nil, client.NewParseError(fmt.Sprintf("invalid sensor configuration %d", id), err)
		}
		if quantity == "" && named.Name == "" {
			continue
		}

		status := models.SensorStatus{}
		if temp != nil {
			status.Temperature = *temp
		}
		if hum != nil {
			status.Humidity = *hum
		}
		if bright != nil {
			status.Brightness = int(*bright)
		}
		sensor, err := decodeMerged[models.Sensor](cfg, map[string]any{
			"physical_quantity": quantity,
			"status":            status,
		})
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}
	return sensors, nil
}

// GetByID returns a single sensor.
func (s *SensorsService) GetByID(ctx context.Context, id int) (*models.Sensor, error) {
	sensors, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sensors {
		if sensors[i].ID == id {
			return &sensors[i], nil
		}
	}
	return nil, notFound("sensor", id)
}
