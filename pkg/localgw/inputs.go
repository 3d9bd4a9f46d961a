package localgw

import (
	"context"
	"encoding/json"

	"github.com/openmotics-go/openmotics/pkg/models"
)

// InputsService reads inputs.
type InputsService struct {
	g *Gateway
}

// GetAll returns every configured input with its last known status.
func (s *InputsService) GetAll(ctx context.Context) ([]models.Input, error) {
	configs, err := s.g.configurations(ctx, "get_input_configurations")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Status []json.RawMessage `json:"status"`
	}
	if err := s.g.query(ctx, "get_input_status", nil, &resp); err != nil {
		return nil, err
	}
	statuses, err := statusByID(resp.Status)
	if err != nil {
		return nil, err
	}

	inputs := make([]models.Input, 0, len(configs))
	for _, cfg := range configs {
		id, err := idOf(cfg)
		if err != nil {
			return nil, err
		}
		extra := map[string]any{}
		if st, ok := statuses[id]; ok {
			extra["status"] = st
		}
		in, err := decodeMerged[models.Input](cfg, extra)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// GetByID returns a single input.
func (s *InputsService) GetByID(ctx context.Context, id int) (*models.Input, error) {
	inputs, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		if inputs[i].ID == id {
			return &inputs[i], nil
		}
	}
	return nil, notFound("input", id)
}
