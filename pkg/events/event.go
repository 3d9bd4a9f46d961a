package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Event types published by the gateway and the cloud
const (
	TypeOutputChange          = "OUTPUT_CHANGE"
	TypeInputChange           = "INPUT_CHANGE"
	TypeShutterChange         = "SHUTTER_CHANGE"
	TypeSensorChange          = "SENSOR_CHANGE"
	TypeThermostatChange      = "THERMOSTAT_CHANGE"
	TypeThermostatGroupChange = "THERMOSTAT_GROUP_CHANGE"
	TypeVentilationChange     = "VENTILATION_CHANGE"
)

// DefaultTypes is the subscription used when none is given.
var DefaultTypes = []string{
	TypeOutputChange,
	TypeInputChange,
	TypeShutterChange,
	TypeSensorChange,
	TypeThermostatChange,
	TypeThermostatGroupChange,
	TypeVentilationChange,
}

// Message envelope types
const (
	envelopeEvent  = "EVENT"
	envelopeAction = "ACTION"
	envelopeError  = "ERROR"
	envelopePing   = "PING"
	envelopePong   = "PONG"
)

// Event is a single state change pushed by the server.
type Event struct {
	Type           string          `json:"type"`
	ID             int             `json:"id"`
	InstallationID int             `json:"installation_id,omitempty"`
	Data           json.RawMessage `json:"data"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// String returns "TYPE[id]".
func (e Event) String() string {
	return fmt.Sprintf("%s[%d]", e.Type, e.ID)
}

// key identifies the entity an event describes.
func (e Event) key() string {
	return fmt.Sprintf("%d/%s/%d", e.InstallationID, e.Type, e.ID)
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e)
	}
	return json.Unmarshal(e.Data, v)
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type eventBody struct {
	Type           string          `json:"type"`
	ID             *int            `json:"id"`
	InstallationID int             `json:"installation_id"`
	Data           json.RawMessage `json:"data"`
}

// parseMessage extracts an event from a raw frame. ok is false for frames that
// carry no event (acks, pings, errors).
func parseMessage(frame []byte) (ev Event, ok bool, err error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, false, fmt.Errorf("decode frame: %w", err)
	}

	body := frame
	switch env.Type {
	case envelopeEvent:
		body = env.Data
	case envelopeAction, envelopePing, envelopePong, envelopeError, "":
		return Event{}, false, nil
	}

	var b eventBody
	if err := json.Unmarshal(body, &b); err != nil {
		return Event{}, false, fmt.Errorf("decode event: %w", err)
	}
	if b.Type == "" {
		return Event{}, false, nil
	}

	ev = Event{
		Type:           b.Type,
		InstallationID: b.InstallationID,
		Data:           bytes.TrimSpace(b.Data),
	}
	if b.ID != nil {
		ev.ID = *b.ID
	} else {
		// the entity id sits inside the payload on some firmware
		var inner struct {
			ID int `json:"id"`
		}
		if len(b.Data) > 0 && json.Unmarshal(b.Data, &inner) == nil {
			ev.ID = inner.ID
		}
	}
	return ev, true, nil
}

type subscription struct {
	Type string           `json:"type"`
	Data subscriptionData `json:"data"`
}

type subscriptionData struct {
	Action          string   `json:"action"`
	Types           []string `json:"types"`
	InstallationIDs []int    `json:"installation_ids,omitempty"`
}

func newSubscription(types []string, installationIDs []int) subscription {
	if len(types) == 0 {
		types = DefaultTypes
	}
	return subscription{
		Type: envelopeAction,
		Data: subscriptionData{
			Action:          "set_subscription",
			Types:           types,
			InstallationIDs: installationIDs,
		},
	}
}
