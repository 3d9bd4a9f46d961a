package localgw

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/events"
)

const (
	// DefaultPort is the gateway's HTTPS port
	DefaultPort = 443

	// DefaultScheme is the gateway's URL scheme
	DefaultScheme = "https"

	// TokenLifetime is how long a login token is accepted by the gateway
	TokenLifetime = time.Hour

	// DefaultCacheDuration is how long configuration listings are reused
	DefaultCacheDuration = 30 * time.Second

	// WebSocketPath is the gateway's event endpoint
	WebSocketPath = "/ws_events"
)

// Option customises a Gateway.
type Option func(*options)

type options struct {
	port          int
	scheme        string
	verifyTLS     bool
	tlsConfig     *tls.Config
	timeout       time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
	cacheDuration time.Duration
	dialer        events.Dialer
}

// WithPort overrides the default port 443.
func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

// WithScheme selects "https" (default) or "http".
func WithScheme(scheme string) Option {
	return func(o *options) { o.scheme = scheme }
}

// WithTLS controls certificate verification. Gateways ship self-signed
// certificates, so verification is off unless enabled here.
func WithTLS(verify bool, cfg *tls.Config) Option {
	return func(o *options) {
		o.verifyTLS = verify
		o.tlsConfig = cfg
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the HTTP client. TLS settings from WithTLS are then
// left to the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the logger used for requests and the event stream.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCacheDuration sets how long configuration listings are cached
// (0 disables caching).
func WithCacheDuration(d time.Duration) Option {
	return func(o *options) { o.cacheDuration = d }
}

// WithDialer replaces the WebSocket dialer used by Subscribe.
func WithDialer(d events.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Gateway is a client for the HTTP API of an OpenMotics gateway on the local
// network.
type Gateway struct {
	Host string
	Port int

	Outputs       *OutputsService
	Lights        *LightsService
	Inputs        *InputsService
	Sensors       *SensorsService
	Shutters      *ShuttersService
	GroupActions  *GroupActionsService
	Thermostats   *ThermostatsService
	EnergySensors *EnergySensorsService

	client   *client.Client
	logger   *zap.Logger
	username string
	password string
	dialer   events.Dialer
	now      func() time.Time

	cacheDuration time.Duration
	cacheMutex    sync.RWMutex
	cache         map[string]cachedConfig

	streamsMu sync.Mutex
	streams   []*events.Stream
}

type cachedConfig struct {
	entries []json.RawMessage
	at      time.Time
}

// New creates a gateway client. No request is made until the first call.
func New(host, username, password string, opts ...Option) (*Gateway, error) {
	if host == "" {
		return nil, client.NewValidationError("gateway host is required")
	}
	o := options{
		port:          DefaultPort,
		scheme:        DefaultScheme,
		cacheDuration: DefaultCacheDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheme != "https" && o.scheme != "http" {
		return nil, client.NewValidationError(fmt.Sprintf("unsupported scheme %q", o.scheme))
	}
	if o.port <= 0 || o.port > 65535 {
		return nil, client.NewValidationError(fmt.Sprintf("invalid port %d", o.port))
	}

	g := &Gateway{
		Host:          host,
		Port:          o.port,
		username:      username,
		password:      password,
		dialer:        o.dialer,
		now:           time.Now,
		cacheDuration: o.cacheDuration,
		cache:         make(map[string]cachedConfig),
	}

	baseURL := fmt.Sprintf("%s://%s", o.scheme, net.JoinHostPort(host, strconv.Itoa(o.port)))
	g.client = client.NewClient(baseURL, client.TokenFunc(g.login))
	if o.httpClient != nil {
		g.client.HTTPClient = o.httpClient
	} else if o.scheme == "https" {
		g.client.SetTLS(o.verifyTLS, o.tlsConfig)
	}
	if o.timeout > 0 {
		g.client.SetTimeout(o.timeout)
	}
	if o.logger != nil {
		g.client.SetLogger(o.logger)
	}
	g.logger = g.client.Logger()

	g.Outputs = &OutputsService{g: g}
	g.Lights = &LightsService{g: g}
	g.Inputs = &InputsService{g: g}
	g.Sensors = &SensorsService{g: g}
	g.Shutters = &ShuttersService{g: g}
	g.GroupActions = &GroupActionsService{g: g}
	g.Thermostats = &ThermostatsService{
		Groups: &ThermostatGroupsService{g: g},
		Units:  &ThermostatUnitsService{g: g},
	}
	g.EnergySensors = &EnergySensorsService{g: g}
	return g, nil
}

// Client exposes the underlying connection for retry and timeout tuning.
func (g *Gateway) Client() *client.Client {
	return g.client
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Msg     string `json:"msg"`
}

// login exchanges the credentials for a session token.
func (g *Gateway) login(ctx context.Context) (*client.Token, error) {
	var resp loginResponse
	err := g.client.Do(ctx, &client.Request{
		Method:     http.MethodPost,
		Path:       "/login",
		Form:       url.Values{"username": {g.username}, "password": {g.password}},
		Idempotent: true,
		NoAuth:     true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.Success || resp.Token == "" {
		e := client.NewAuthError(0, "login rejected by gateway")
		e.VendorMessage = resp.Msg
		return nil, e
	}
	g.logger.Debug("Logged in to gateway", zap.String("host", g.Host))
	return &client.Token{Value: resp.Token, ExpiresAt: g.now().Add(TokenLifetime)}, nil
}

// envelope is the success/msg wrapper every action response carries.
type envelope struct {
	Success *bool  `json:"success"`
	Msg     string `json:"msg"`
}

// call POSTs form to /<action>, checks the envelope and decodes the body
// into out.
func (g *Gateway) call(ctx context.Context, action string, form url.Values, idempotent bool, out any) error {
	var body []byte
	if err := g.client.PostForm(ctx, "/"+action, form, idempotent, &body); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: %w", action, client.NewParseError("invalid response", err))
	}
	if env.Success != nil && !*env.Success {
		e := client.NewAPIError(http.StatusOK, env.Msg)
		e.Message = fmt.Sprintf("action %s failed", action)
		return e
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w", action, client.NewParseError("invalid response", err))
	}
	return nil
}

// query runs a read-only action, safe to repeat.
func (g *Gateway) query(ctx context.Context, action string, form url.Values, out any) error {
	return g.call(ctx, action, form, true, out)
}

// set runs an action that moves something to an absolute state. Repeating it
// has no further effect, so it is retried like a query.
func (g *Gateway) set(ctx context.Context, action string, form url.Values) error {
	return g.call(ctx, action, form, true, nil)
}

// fire runs an action whose effect accumulates, such as a toggle or a group
// action. It is never repeated after a request may have reached the gateway.
func (g *Gateway) fire(ctx context.Context, action string, form url.Values) error {
	return g.call(ctx, action, form, false, nil)
}

// ExecAction runs an arbitrary gateway action and returns the decoded body.
func (g *Gateway) ExecAction(ctx context.Context, action string, form url.Values) (map[string]any, error) {
	if action == "" {
		return nil, client.NewValidationError("action is required")
	}
	var out map[string]any
	if err := g.call(ctx, action, form, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Version returns the gateway firmware version.
func (g *Gateway) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
		Gateway string `json:"gateway"`
	}
	if err := g.query(ctx, "get_version", nil, &resp); err != nil {
		return "", err
	}
	if resp.Gateway != "" {
		return resp.Gateway, nil
	}
	return resp.Version, nil
}

// configurations returns the "config" entries of a listing action, served
// from cache while fresh.
func (g *Gateway) configurations(ctx context.Context, action string) ([]json.RawMessage, error) {
	if g.cacheDuration > 0 {
		g.cacheMutex.RLock()
		cached, ok := g.cache[action]
		g.cacheMutex.RUnlock()
		if ok && g.now().Sub(cached.at) < g.cacheDuration {
			return cached.entries, nil
		}
	}

	var resp struct {
		Config []json.RawMessage `json:"config"`
	}
	if err := g.query(ctx, action, nil, &resp); err != nil {
		return nil, err
	}

	if g.cacheDuration > 0 {
		g.cacheMutex.Lock()
		g.cache[action] = cachedConfig{entries: resp.Config, at: g.now()}
		g.cacheMutex.Unlock()
	}
	return resp.Config, nil
}

// InvalidateCache drops all cached configuration listings.
func (g *Gateway) InvalidateCache() {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()
	g.cache = make(map[string]cachedConfig)
}

// Subscribe opens the gateway event stream for the given event types (all
// types when none are given). The stream runs until ctx is cancelled, Stop is
// called on it, or the gateway is closed.
func (g *Gateway) Subscribe(ctx context.Context, types ...string) (*events.Stream, error) {
	wsURL, err := g.client.WebSocketURL(WebSocketPath)
	if err != nil {
		return nil, err
	}
	dialer := g.dialer
	if dialer == nil {
		dialer = &events.GorillaDialer{
			TLSConfig:        g.client.TLSConfig(),
			HandshakeTimeout: g.client.Timeout,
		}
	}
	stream, err := events.NewStream(events.Config{
		URL:    wsURL,
		Tokens: g.client,
		Dialer: dialer,
		Types:  types,
		Logger: g.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := stream.Start(ctx); err != nil {
		return nil, err
	}

	g.streamsMu.Lock()
	g.streams = append(g.streams, stream)
	g.streamsMu.Unlock()
	logging.LogConnection(g.logger, wsURL, "subscribed")
	return stream, nil
}

// Close stops every event stream and releases idle connections.
func (g *Gateway) Close() error {
	g.streamsMu.Lock()
	streams := g.streams
	g.streams = nil
	g.streamsMu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	g.client.Close()
	return nil
}

func notFound(kind string, id int) error {
	e := client.NewAPIError(http.StatusNotFound, "")
	e.Message = fmt.Sprintf("%s %d not found", kind, id)
	return e
}

// idOf reads the "id" of a configuration or status entry.
func idOf(entry json.RawMessage) (int, error) {
	var v struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(entry, &v); err != nil {
		return 0, client.NewParseError("invalid entry", err)
	}
	if v.ID == nil {
		return 0, client.NewParseError("entry without id", errors.New(string(entry)))
	}
	return *v.ID, nil
}

// decodeMerged decodes a configuration entry with extra fields overlaid.
func decodeMerged[T any](entry json.RawMessage, extra map[string]any) (T, error) {
	var rec T
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(entry, &fields); err != nil {
		return rec, client.NewParseError("invalid entry", err)
	}
	for k, v := range extra {
		data, err := json.Marshal(v)
		if err != nil {
			return rec, client.NewParseError("encode "+k, err)
		}
		fields[k] = data
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return rec, client.NewParseError("encode entry", err)
	}
	if err := json.Unmarshal(merged, &rec); err != nil {
		return rec, client.NewParseError("decode entry", err)
	}
	return rec, nil
}

// statusByID indexes a list of status objects by their id.
func statusByID(entries []json.RawMessage) (map[int]json.RawMessage, error) {
	out := make(map[int]json.RawMessage, len(entries))
	for _, e := range entries {
		id, err := idOf(e)
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, nil
}

func boolValue(b bool) string {
	return strconv.FormatBool(b)
}

func intValue(i int) string {
	return strconv.Itoa(i)
}

func clampLevel(v int) int {
	return max(0, min(100, v))
}
