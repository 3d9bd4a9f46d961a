package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmotics-go/openmotics/pkg/events"
)

const (
	// DefaultTopicPrefix is the first topic level of every published message
	DefaultTopicPrefix = "openmotics"

	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultQuiesce        = 250 // milliseconds
	maxQoS                = 2
)

var (
	// ErrConnectionFailed is returned when the broker cannot be reached.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Config describes the broker and how events are published.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883 or ssl://broker:8883
	Broker   string
	ClientID string // Random when empty
	Username string
	Password string
	TLS      *tls.Config

	TopicPrefix string
	QoS         byte

	// Retain keeps the last event of each topic on the broker, so that new
	// subscribers see the current state.
	Retain bool
}

// Message is the JSON payload published for each event.
type Message struct {
	Type           string          `json:"type"`
	ID             int             `json:"id"`
	InstallationID int             `json:"installation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// Relay republishes event stream events on an MQTT broker.
type Relay struct {
	pub    Publisher
	cfg    Config
	logger *zap.Logger
	close  func()
}

// New creates a relay on top of an existing publisher.
func New(pub Publisher, cfg Config, logger *zap.Logger) (*Relay, error) {
	if cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{pub: pub, cfg: cfg, logger: logger, close: func() {}}, nil
}

// Connect dials the broker and returns a relay publishing through it. An
// online status is published retained under <prefix>/relay/status, with an
// offline last will.
func Connect(cfg Config, logger *zap.Logger) (*Relay, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: broker URL is required", ErrConnectionFailed)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "omctl-" + uuid.NewString()
	}
	r, err := New(nil, cfg, logger)
	if err != nil {
		return nil, err
	}
	cfg = r.cfg

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS != nil {
		opts.SetTLSConfig(cfg.TLS)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetWill(r.statusTopic(), statusPayload(cfg.ClientID, "offline"), 1, true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		r.logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	r.pub = pahoPublisher{client}
	r.close = func() {
		_ = r.pub.Publish(r.statusTopic(), 1, true, []byte(statusPayload(cfg.ClientID, "offline")))
		client.Disconnect(defaultQuiesce)
	}
	if err := r.pub.Publish(r.statusTopic(), 1, true, []byte(statusPayload(cfg.ClientID, "online"))); err != nil {
		r.logger.Warn("failed to publish relay status", zap.Error(err))
	}
	r.logger.Info("connected to MQTT broker", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
	return r, nil
}

// Topic returns <prefix>/<installation>/<type>/<id> for an event. Events
// from a local gateway carry no installation and use "local".
func (r *Relay) Topic(ev events.Event) string {
	inst := "local"
	if ev.InstallationID > 0 {
		inst = strconv.Itoa(ev.InstallationID)
	}
	return strings.Join([]string{r.cfg.TopicPrefix, inst, strings.ToLower(ev.Type), strconv.Itoa(ev.ID)}, "/")
}

// Publish sends a single event.
func (r *Relay) Publish(ev events.Event) error {
	payload, err := json.Marshal(Message{
		Type:           ev.Type,
		ID:             ev.ID,
		InstallationID: ev.InstallationID,
		Data:           ev.Data,
		ReceivedAt:     ev.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return r.pub.Publish(r.Topic(ev), r.cfg.QoS, r.cfg.Retain, payload)
}

// Forward publishes every event received on in until in is closed or ctx
// is cancelled, and returns the number of events published. A failed
// publish is logged and skipped; the next event is still forwarded.
func (r *Relay) Forward(ctx context.Context, in <-chan events.Event) (int, error) {
	published := 0
	for {
		select {
		case <-ctx.Done():
			return published, ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return published, nil
			}
			if err := r.Publish(ev); err != nil {
				r.logger.Warn("failed to relay event", zap.Stringer("event", ev), zap.Error(err))
				continue
			}
			published++
			r.logger.Debug("relayed event", zap.String("topic", r.Topic(ev)))
		}
	}
}

// Close publishes the offline status and disconnects from the broker.
func (r *Relay) Close() {
	r.close()
}

func (r *Relay) statusTopic() string {
	return r.cfg.TopicPrefix + "/relay/status"
}

func statusPayload(clientID, status string) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}

type pahoPublisher struct {
	client pahomqtt.Client
}

func (p pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
