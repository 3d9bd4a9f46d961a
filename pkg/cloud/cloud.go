package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/events"
)

const (
	// DefaultBaseURL is the OpenMotics cloud API root
	DefaultBaseURL = "https://api.openmotics.com/api/v1.1"

	// TokenPath is the OAuth2 token endpoint below the base URL
	TokenPath = "/authentication/oauth2/token"

	// WebSocketPath is the event endpoint below the base URL
	WebSocketPath = "/ws/events"
)

// Option customises a Cloud client.
type Option func(*options)

type options struct {
	baseURL        string
	installationID int
	timeout        time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
	dialer         events.Dialer
}

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithInstallationID selects the installation that scoped calls act on.
func WithInstallationID(id int) Option {
	return func(o *options) { o.installationID = id }
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the logger used for requests and the event stream.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDialer replaces the WebSocket dialer used by Subscribe.
func WithDialer(d events.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Cloud is a client for the OpenMotics cloud API.
type Cloud struct {
	Installations *InstallationsService
	Outputs       *OutputsService
	Lights        *LightsService
	Shutters      *ShuttersService
	Sensors       *SensorsService
	Inputs        *InputsService
	GroupActions  *GroupActionsService
	Thermostats   *ThermostatsService
	Ventilations  *VentilationsService
	EnergySensors *EnergySensorsService

	client *client.Client
	logger *zap.Logger
	dialer events.Dialer

	mu             sync.RWMutex
	installationID int

	streamsMu sync.Mutex
	streams   []*events.Stream
}

// New creates a cloud client. source supplies bearer tokens; use
// ClientCredentials for an OAuth2 client, or client.StaticToken.
func New(source client.TokenSource, opts ...Option) (*Cloud, error) {
	if source == nil {
		return nil, client.NewValidationError("token source is required")
	}
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	u, err := url.Parse(o.baseURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, client.NewValidationError(fmt.Sprintf("invalid base URL %q", o.baseURL))
	}

	if cred, ok := source.(*Credentials); ok && cred.TokenURL == "" {
		cred.TokenURL = o.baseURL + TokenPath
		if cred.HTTPClient == nil {
			cred.HTTPClient = o.httpClient
		}
	}

	c := &Cloud{
		client:         client.NewClient(o.baseURL, source),
		dialer:         o.dialer,
		installationID: o.installationID,
	}
	if o.httpClient != nil {
		c.client.HTTPClient = o.httpClient
	}
	if o.timeout > 0 {
		c.client.SetTimeout(o.timeout)
	}
	if o.logger != nil {
		c.client.SetLogger(o.logger)
	}
	c.logger = c.client.Logger()

	c.Installations = &InstallationsService{c: c}
	c.Outputs = &OutputsService{c: c}
	c.Lights = &LightsService{c: c}
	c.Shutters = &ShuttersService{c: c}
	c.Sensors = &SensorsService{c: c}
	c.Inputs = &InputsService{c: c}
	c.GroupActions = &GroupActionsService{c: c}
	c.Thermostats = &ThermostatsService{
		Groups: &ThermostatGroupsService{c: c},
		Units:  &ThermostatUnitsService{c: c},
	}
	c.Ventilations = &VentilationsService{c: c}
	c.EnergySensors = &EnergySensorsService{}
	return c, nil
}

// Client exposes the underlying connection for retry and timeout tuning.
func (c *Cloud) Client() *client.Client {
	return c.client
}

// InstallationID returns the installation scoped calls act on.
func (c *Cloud) InstallationID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.installationID
}

// SetInstallationID selects the installation scoped calls act on.
func (c *Cloud) SetInstallationID(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installationID = id
}

// scoped builds a path below the current installation.
func (c *Cloud) scoped(format string, args ...any) (string, error) {
	id := c.InstallationID()
	if id <= 0 {
		return "", client.NewValidationError("installation id is not set")
	}
	return fmt.Sprintf("/base/installations/%d", id) + fmt.Sprintf(format, args...), nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// get fetches path and unwraps the {"data": ...} envelope.
func get[T any](ctx context.Context, c *Cloud, path string, query url.Values) (T, error) {
	var env envelope[T]
	if err := c.client.Get(ctx, path, query, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}

// getScoped is get on an installation-scoped path.
func getScoped[T any](ctx context.Context, c *Cloud, query url.Values, format string, args ...any) (T, error) {
	path, err := c.scoped(format, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return get[T](ctx, c, path, query)
}

// post sends body as JSON to an installation-scoped path. idempotent marks
// requests that may be repeated after a transient failure.
func (c *Cloud) post(ctx context.Context, body any, idempotent bool, format string, args ...any) error {
	path, err := c.scoped(format, args...)
	if err != nil {
		return err
	}
	if body == nil {
		body = struct{}{}
	}
	return c.client.PostJSON(ctx, path, body, idempotent, nil)
}

func filterQuery(filter string) url.Values {
	if filter == "" {
		return nil
	}
	return url.Values{"filter": {filter}}
}

// Subscribe opens the cloud event stream for the current installation. The
// stream runs until ctx is cancelled, Stop is called on it, or the client is
// closed.
func (c *Cloud) Subscribe(ctx context.Context, types ...string) (*events.Stream, error) {
	wsURL, err := c.client.WebSocketURL(WebSocketPath)
	if err != nil {
		return nil, err
	}
	var ids []int
	if id := c.InstallationID(); id > 0 {
		ids = []int{id}
	}
	dialer := c.dialer
	if dialer == nil {
		dialer = &events.GorillaDialer{HandshakeTimeout: c.client.Timeout}
	}
	stream, err := events.NewStream(events.Config{
		URL:             wsURL,
		Tokens:          c.client,
		Dialer:          dialer,
		Types:           types,
		InstallationIDs: ids,
		Logger:          c.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := stream.Start(ctx); err != nil {
		return nil, err
	}

	c.streamsMu.Lock()
	c.streams = append(c.streams, stream)
	c.streamsMu.Unlock()
	logging.LogConnection(c.logger, wsURL, "subscribed")
	return stream, nil
}

// Close stops every event stream and releases idle connections.
func (c *Cloud) Close() error {
	c.streamsMu.Lock()
	streams := c.streams
	c.streams = nil
	c.streamsMu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	c.client.Close()
	return nil
}

func notFound(kind string, id int) error {
	e := client.NewAPIError(http.StatusNotFound, "")
	e.Message = fmt.Sprintf("%s %d not found", kind, id)
	return e
}
