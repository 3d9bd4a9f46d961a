package localgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// inputsPerModule spaces sensor ids so every module input gets its own.
const inputsPerModule = 8

// EnergySensorsService reads the inputs of power modules.
type EnergySensorsService struct {
	g *Gateway
}

// GetAll returns one sensor per named power module input, with the
// module's realtime reading for that input.
func (s *EnergySensorsService) GetAll(ctx context.Context) ([]models.EnergySensor, error) {
	var modules struct {
		Modules []map[string]json.RawMessage `json:"modules"`
	}
	if err := s.g.query(ctx, "get_power_modules", nil, &modules); err != nil {
		return nil, err
	}
	var realtime map[string]json.RawMessage
	if err := s.g.query(ctx, "get_realtime_power", nil, &realtime); err != nil {
		return nil, err
	}

	var sensors []models.EnergySensor
	for _, m := range modules.Modules {
		var moduleID int
		if err := json.Unmarshal(m["id"], &moduleID); err != nil {
			return nil, client.NewParseError("invalid power module", err)
		}

		var readings []models.EnergyStatus
		if raw, ok := realtime[strconv.Itoa(moduleID)]; ok {
			if err := json.Unmarshal(raw, &readings); err != nil {
				return nil, client.NewParseError(fmt.Sprintf("invalid realtime power for module %d", moduleID), err)
			}
		}

		for i := 0; i < inputsPerModule; i++ {
			raw, ok := m["input"+strconv.Itoa(i)]
			if !ok {
				break
			}
			var name string
			if err := json.Unmarshal(raw, &name); err != nil || name == "" {
				continue
			}
			var inverted int
			if raw, ok := m["inverted"+strconv.Itoa(i)]; ok {
				if err := json.Unmarshal(raw, &inverted); err != nil {
					return nil, client.NewParseError(fmt.Sprintf("invalid inverted%d for power module %d", i, moduleID), err)
				}
			}

			sensor := models.EnergySensor{
				Base:     models.Base{ID: moduleID*inputsPerModule + i, LocalID: i, Name: name},
				Inverted: inverted == 1,
			}
			if i < len(readings) {
				r := readings[i]
				sensor.Status = &r
			}
			sensors = append(sensors, sensor)
		}
	}
	return sensors, nil
}

// GetByID returns a single energy sensor.
func (s *EnergySensorsService) GetByID(ctx context.Context, id int) (*models.EnergySensor, error) {
	sensors, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sensors {
		if sensors[i].ID == id {
			return &sensors[i], nil
		}
	}
	return nil, notFound("energy sensor", id)
}
