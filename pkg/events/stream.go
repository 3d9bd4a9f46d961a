package events

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openmotics-go/openmotics/internal/logging"
)

const (
	// DefaultBufferSize is the capacity of the events channel.
	DefaultBufferSize = 64
	// DefaultInitialInterval is the first reconnect delay.
	DefaultInitialInterval = time.Second
	// DefaultMaxInterval caps the reconnect delay.
	DefaultMaxInterval = time.Minute

	// SubprotocolPrefix carries the bearer token in Sec-WebSocket-Protocol.
	SubprotocolPrefix = "authorization.bearer."
)

// State is the connection state of a Stream.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// TokenProvider hands out bearer tokens for the handshake. *client.Client
// implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	InvalidateToken(ctx context.Context, stale string) (string, error)
}

// Config configures a Stream.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	Tokens TokenProvider

	// Dialer defaults to a GorillaDialer without TLS overrides.
	Dialer Dialer

	// Types to subscribe to; DefaultTypes when empty.
	Types []string

	// InstallationIDs scopes a cloud subscription.
	InstallationIDs []int

	BufferSize int

	// Backoff builds the reconnect policy. Defaults to exponential backoff
	// without jitter from one second up to a minute, retrying forever.
	Backoff func() backoff.BackOff

	// OnStateChange is called synchronously on every transition.
	OnStateChange func(State)

	Logger *zap.Logger
}

// Stream maintains a subscription to the event WebSocket, reconnecting until
// stopped, and delivers events in receive order.
type Stream struct {
	cfg    Config
	logger *zap.Logger
	events chan Event
	state  atomic.Int32

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	// last delivered payload per entity
	last map[string]string
	// resumed is set once a session has connected; seen holds the entities
	// heard from in the current session.
	resumed bool
	seen    map[string]bool

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewStream validates cfg and returns an idle stream.
func NewStream(cfg Config) (*Stream, error) {
	if cfg.URL == "" {
		return nil, errors.New("events: URL is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("events: token provider is required")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &GorillaDialer{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Backoff == nil {
		cfg.Backoff = defaultBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Stream{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, cfg.BufferSize),
		last:   make(map[string]string),
		sleep:  sleepContext,
		now:    time.Now,
	}, nil
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialInterval
	b.MaxInterval = DefaultMaxInterval
	// delays never shrink within a disconnect run
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// Events returns the delivery channel. It is closed when the stream stops.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// State returns the current connection state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

func (s *Stream) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.logger.Debug("Event stream state", zap.String("url", s.cfg.URL), zap.Stringer("state", st))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(st)
	}
}

// Start runs the stream in the background until ctx is cancelled or Stop is
// called.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("events: stream already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		err := s.run(ctx)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels a started stream and waits for it to finish. The events
// channel is closed on return.
func (s *Stream) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Err returns the error that ended a started stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run blocks, reconnecting with backoff, until ctx is cancelled or the
// backoff policy gives up. It closes the events channel on return.
func (s *Stream) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("events: stream already started")
	}
	s.started = true
	s.mu.Unlock()
	return s.run(ctx)
}

func (s *Stream) run(ctx context.Context) error {
	defer close(s.events)
	defer s.setState(StateDisconnected)

	b := s.cfg.Backoff()
	b.Reset()
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if first {
			s.setState(StateConnecting)
		} else {
			s.setState(StateReconnecting)
		}
		first = false

		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("events: giving up: %w", err)
		}
		s.logger.Warn("Event stream disconnected, reconnecting",
			zap.String("url", s.cfg.URL),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		s.setState(StateReconnecting)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// session dials, subscribes and reads until the connection drops. connected
// reports whether the handshake succeeded.
func (s *Stream) session(ctx context.Context) (connected bool, err error) {
	token, err := s.cfg.Tokens.AccessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("access token: %w", err)
	}

	conn, err := s.cfg.Dialer.Dial(ctx, s.cfg.URL, authHeader(token))
	if err != nil {
		if isUnauthorized(err) {
			if _, ierr := s.cfg.Tokens.InvalidateToken(ctx, token); ierr != nil {
				s.logger.Warn("Token refresh after rejected handshake failed", zap.Error(ierr))
			}
		}
		return false, err
	}
	logging.LogConnection(s.logger, s.cfg.URL, "connected")
	s.seen = make(map[string]bool)
	defer func() {
		s.resumed = true
		_ = conn.Close()
		logging.LogConnection(s.logger, s.cfg.URL, "closed")
	}()

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(newSubscription(s.cfg.Types, s.cfg.InstallationIDs)); err != nil {
		return true, fmt.Errorf("subscribe: %w", err)
	}
	s.setState(StateConnected)

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		logging.LogWebSocketMessage(s.logger, "received", 1, frame)
		if err := s.dispatch(ctx, frame); err != nil {
			return true, err
		}
	}
}

// dispatch parses a frame and delivers its event. After a reconnect the
// first frame per entity is dropped when it repeats the payload delivered
// before the drop; later frames always pass.
func (s *Stream) dispatch(ctx context.Context, frame []byte) error {
	ev, ok, err := parseMessage(frame)
	if err != nil {
		s.logger.Debug("Ignoring malformed event frame", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	key := ev.key()
	first := !s.seen[key]
	s.seen[key] = true
	if prev, ok := s.last[key]; ok && first && s.resumed && prev == string(ev.Data) {
		return nil
	}
	s.last[key] = string(ev.Data)
	ev.ReceivedAt = s.now()

	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func authHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Sec-WebSocket-Protocol", SubprotocolPrefix+base64.StdEncoding.EncodeToString([]byte(token)))
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
