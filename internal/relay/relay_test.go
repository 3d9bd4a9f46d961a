package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openmotics-go/openmotics/pkg/events"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail map[string]bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[topic] {
		return ErrPublishFailed
	}
	f.msgs = append(f.msgs, published{topic, qos, retained, payload})
	return nil
}

func TestTopic(t *testing.T) {
	r, err := New(&fakePublisher{}, Config{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tests := []struct {
		ev   events.Event
		want string
	}{
		{events.Event{Type: events.TypeOutputChange, ID: 3, InstallationID: 21}, "openmotics/21/output_change/3"},
		{events.Event{Type: events.TypeShutterChange, ID: 0}, "openmotics/local/shutter_change/0"},
	}
	for _, tt := range tests {
		if got := r.Topic(tt.ev); got != tt.want {
			t.Errorf("Topic(%v) = %q, want %q", tt.ev, got, tt.want)
		}
	}

	custom, _ := New(&fakePublisher{}, Config{TopicPrefix: "home/om"}, nil)
	if got := custom.Topic(events.Event{Type: "INPUT_CHANGE", ID: 1}); got != "home/om/local/input_change/1" {
		t.Errorf("Topic() = %q, want custom prefix", got)
	}
}

func TestNewRejectsQoS(t *testing.T) {
	if _, err := New(&fakePublisher{}, Config{QoS: 3}, nil); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("New(QoS 3) error = %v, want ErrInvalidQoS", err)
	}
}

func TestConnectNeedsBroker(t *testing.T) {
	if _, err := Connect(Config{}, nil); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestForward(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"openmotics/21/output_change/9": true}}
	r, err := New(pub, Config{QoS: 1, Retain: true}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := make(chan events.Event, 3)
	in <- events.Event{Type: events.TypeOutputChange, ID: 3, InstallationID: 21, Data: json.RawMessage(`{"id":3,"status":{"on":true}}`), ReceivedAt: at}
	in <- events.Event{Type: events.TypeOutputChange, ID: 9, InstallationID: 21, ReceivedAt: at}
	in <- events.Event{Type: events.TypeSensorChange, ID: 1, InstallationID: 21, ReceivedAt: at}
	close(in)

	n, err := r.Forward(context.Background(), in)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Forward() published %d, want 2", n)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(pub.msgs))
	}
	first := pub.msgs[0]
	if first.topic != "openmotics/21/output_change/3" || first.qos != 1 || !first.retained {
		t.Errorf("first message = %s qos %d retained %v", first.topic, first.qos, first.retained)
	}
	var msg Message
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("payload %s: %v", first.payload, err)
	}
	if msg.Type != events.TypeOutputChange || msg.ID != 3 || msg.InstallationID != 21 || !msg.ReceivedAt.Equal(at) {
		t.Errorf("message = %+v", msg)
	}
	if string(msg.Data) != `{"id":3,"status":{"on":true}}` {
		t.Errorf("Data = %s", msg.Data)
	}
	if pub.msgs[1].topic != "openmotics/21/sensor_change/1" {
		t.Errorf("second topic = %q", pub.msgs[1].topic)
	}
}

func TestForwardStopsOnCancel(t *testing.T) {
	r, _ := New(&fakePublisher{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan events.Event)

	done := make(chan error, 1)
	go func() {
		_, err := r.Forward(ctx, in)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Forward() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Forward() did not return after cancel")
	}
}

func TestStatusPayload(t *testing.T) {
	var status struct {
		Status   string `json:"status"`
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal([]byte(statusPayload("omctl-1", "online")), &status); err != nil {
		t.Fatalf("statusPayload() is not JSON: %v", err)
	}
	if status.Status != "online" || status.ClientID != "omctl-1" {
		t.Errorf("status = %+v", status)
	}
}
