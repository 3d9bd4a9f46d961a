package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/internal/version"
)

const (
	// DefaultTimeout is the default per-attempt request timeout
	DefaultTimeout = 8 * time.Second

	// DefaultMaxRetries is the default number of retries after the first attempt
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the default delay before the first retry
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	maxErrorBody = 200
)

// Client issues authenticated requests against a gateway API. It owns the
// HTTP connection pool and the bearer token; both live as long as the Client.
type Client struct {
	// BaseURL is the API root (e.g., "https://192.168.0.10:443")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retries for transient failures
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles the delay after every retry
	UseExponentialBackoff bool

	// Timeout bounds every single attempt (0 = no timeout)
	Timeout time.Duration

	// UserAgent is sent with every request
	UserAgent string

	tokens *tokenManager
	logger *zap.Logger

	tlsMu     sync.RWMutex
	tlsConfig *tls.Config

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for baseURL. source may be nil for APIs that
// need no authentication.
func NewClient(baseURL string, source TokenSource) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	c := &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Transport: transport},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		Timeout:               DefaultTimeout,
		UserAgent:             version.UserAgent(),
		logger:                logging.GetLogger(),
		sleep:                 sleepContext,
	}
	if source != nil {
		c.tokens = newTokenManager(source, c.refreshTimeout)
	}
	return c
}

// SetTimeout sets the per-attempt request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// SetLogger replaces the logger used for request logging. nil silences it.
func (c *Client) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	c.logger = l
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// SetTLS configures certificate verification. cfg may be nil; it is cloned
// and its InsecureSkipVerify is set from verify.
func (c *Client) SetTLS(verify bool, cfg *tls.Config) {
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	cfg.InsecureSkipVerify = !verify //nolint:gosec // gateways ship self-signed certificates

	transport, ok := c.HTTPClient.Transport.(*http.Transport)
	if !ok {
		transport = http.DefaultTransport.(*http.Transport).Clone()
		c.HTTPClient.Transport = transport
	}
	transport.TLSClientConfig = cfg

	c.tlsMu.Lock()
	c.tlsConfig = cfg
	c.tlsMu.Unlock()
}

// TLSConfig returns the configuration set by SetTLS, or nil.
func (c *Client) TLSConfig() *tls.Config {
	c.tlsMu.RLock()
	defer c.tlsMu.RUnlock()
	if c.tlsConfig == nil {
		return nil
	}
	return c.tlsConfig.Clone()
}

// Close releases idle connections and forgets the token.
func (c *Client) Close() {
	c.HTTPClient.CloseIdleConnections()
	if c.tokens != nil {
		c.tokens.reset()
	}
}

// AccessToken returns a valid access token, acquiring one if needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", NewAuthError(0, "client has no token source")
	}
	tok, err := c.tokens.get(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// InvalidateToken reports that stale was rejected and returns its
// replacement. Concurrent callers reporting the same token share one refresh.
func (c *Client) InvalidateToken(ctx context.Context, stale string) (string, error) {
	if c.tokens == nil {
		return "", NewAuthError(0, "client has no token source")
	}
	tok, err := c.tokens.refresh(ctx, stale)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// WebSocketURL maps path onto the base URL with a ws or wss scheme.
func (c *Client) WebSocketURL(path string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("invalid base URL %q: %v", c.BaseURL, err))
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", NewValidationError(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	return u.String(), nil
}

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Form is sent as application/x-www-form-urlencoded. Ignored when JSON is set.
	Form url.Values

	// JSON is marshalled as the request body.
	JSON any

	Header http.Header

	// Idempotent marks a POST as safe to repeat after a transient failure.
	// GET, HEAD, PUT, DELETE and OPTIONS are always idempotent.
	Idempotent bool

	// NoAuth skips the Authorization header (login requests).
	NoAuth bool
}

func (r *Request) idempotent() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return r.Idempotent
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a body-less POST. The request is not retried on transport errors.
func (c *Client) Post(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path}, out)
}

// PostForm issues a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, idempotent bool, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Form: form, Idempotent: idempotent}, out)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body any, idempotent bool, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, JSON: body, Idempotent: idempotent}, out)
}

// Do performs req, retrying transient failures, and decodes a 2xx body into
// out. A *string or *[]byte receives the raw body; nil discards it.
//
// A 401 response triggers exactly one token refresh followed by one repeat of
// the request; a second 401 is returned as an authentication error.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	if req == nil {
		return NewValidationError("nil request")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	var lastErr error
	currentDelay := c.RetryDelay
	refreshed := false

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := currentDelay
			if e, ok := asError(lastErr); ok && e.RetryAfter > 0 {
				wait = min(e.RetryAfter, c.MaxRetryDelay)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return ClassifyNetworkError(err, c.host())
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		token, err := c.requestToken(ctx, req)
		if err != nil {
			return err
		}

		err = c.attempt(ctx, req, body, contentType, token, attempt, out)
		if err != nil && token != "" && !refreshed && StatusCode(err) == http.StatusUnauthorized {
			refreshed = true
			c.logger.Debug("token rejected, refreshing", zap.String("path", req.Path))
			tok, rerr := c.tokens.refresh(ctx, token)
			if rerr != nil {
				return rerr
			}
			err = c.attempt(ctx, req, body, contentType, tok.Value, attempt, out)
		}
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't retry non-retryable errors
		if !IsRetryable(err) {
			return err
		}
		if !req.idempotent() && !safeToRepeat(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}

	return lastErr
}

// safeToRepeat reports whether err guarantees the gateway never acted on the request.
func safeToRepeat(err error) bool {
	e, ok := asError(err)
	if !ok {
		return false
	}
	switch e.Type {
	case ErrTypeConnectionRefused, ErrTypeDNS, ErrTypeRateLimit:
		return true
	}
	return false
}

func (c *Client) requestToken(ctx context.Context, req *Request) (string, error) {
	if req.NoAuth || c.tokens == nil {
		return "", nil
	}
	tok, err := c.tokens.get(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// attempt performs a single round trip
func (c *Client) attempt(ctx context.Context, req *Request, body []byte, contentType, token string, attempt int, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.endpoint(req.Path, req.Query), reader)
	if err != nil {
		return NewValidationError(fmt.Sprintf("failed to create %s request: %v", req.Method, err))
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return ClassifyNetworkError(err, c.host())
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}
	logging.LogRequest(c.logger, req.Method, req.Path, resp.StatusCode, time.Since(start), attempt)

	if err := checkResponse(resp, data); err != nil {
		return err
	}
	return decodeBody(data, out)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// refreshTimeout bounds a token refresh, which may itself retry.
func (c *Client) refreshTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 0
	}
	return c.Timeout * time.Duration(c.MaxRetries+1)
}

func encodeBody(req *Request) ([]byte, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
		return data, "application/json", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", nil
	}
}

// checkResponse maps a non-2xx status to an *Error.
func checkResponse(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	vendor := VendorMessage(body)
	switch {
	case status == http.StatusUnauthorized:
		e := NewAuthError(status, "token rejected by gateway")
		e.VendorMessage = vendor
		return e
	case status == http.StatusForbidden:
		e := NewAuthError(status, "access denied")
		e.VendorMessage = vendor
		return e
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(vendor, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	default:
		return NewAPIError(status, vendor)
	}
}

func decodeBody(body []byte, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *string:
		*v = string(body)
		return nil
	case *[]byte:
		*v = append((*v)[:0], body...)
		return nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return NewParseError("empty response body", nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewParseError("failed to parse JSON response", err)
	}
	return nil
}

// VendorMessage extracts the human-readable message from an error body.
// It understands {"msg"}, {"message"}, {"error": "..."} and
// {"error": {"message": "..."}}, and falls back to the trimmed raw text.
func VendorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		for _, key := range []string{"msg", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
		switch e := payload["error"].(type) {
		case string:
			return e
		case map[string]any:
			if s, ok := e["message"].(string); ok {
				return s
			}
		}
		return ""
	}

	text := string(trimmed)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
