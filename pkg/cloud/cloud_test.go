package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/events"
)

const apiPrefix = "/api/v1.1"

type recordedRequest struct {
	method string
	path   string
	query  url.Values
	body   string
}

type cannedReply struct {
	status int
	body   string
}

// fakeCloud serves the token endpoint and canned API replies.
type fakeCloud struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	token      string
	tokenCalls int
	requests   []recordedRequest
	replies    map[string]cannedReply
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	f := &fakeCloud{t: t, token: "cloud-1", replies: map[string]cannedReply{}}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCloud) baseURL() string {
	return f.srv.URL + apiPrefix
}

func (f *fakeCloud) reply(method, path, body string) {
	f.replyStatus(method, path, http.StatusOK, body)
}

func (f *fakeCloud) replyStatus(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[method+" "+path] = cannedReply{status: status, body: body}
}

func (f *fakeCloud) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		f.t.Fatal("no requests recorded")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeCloud) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.method == method && r.path == path {
			n++
		}
	}
	return n
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	if path == TokenPath {
		f.serveToken(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		f.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_token"}`)
		return
	}
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: path, query: r.URL.Query(), body: string(body)})
	rep, ok := f.replies[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		rep = cannedReply{status: http.StatusOK, body: `{"data":{}}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (f *fakeCloud) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("ParseForm() error = %v", err)
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	w.Header().Set("Content-Type", "application/json")
	if r.PostForm.Get("grant_type") != "client_credentials" || id != "app" || secret != "s3cret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"unknown client"}`)
		return
	}
	f.mu.Lock()
	f.tokenCalls++
	token := f.token
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func newTestCloud(t *testing.T, f *fakeCloud, opts ...Option) *Cloud {
	t.Helper()
	opts = append([]Option{WithBaseURL(f.baseURL()), WithInstallationID(21)}, opts...)
	c, err := New(ClientCredentials("app", "s3cret"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Client().SetRetry(2, time.Millisecond)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); !client.IsValidationError(err) {
		t.Errorf("New(nil) error = %v, want validation error", err)
	}
	if _, err := New(client.StaticToken("x"), WithBaseURL("ftp://example.com")); !client.IsValidationError(err) {
		t.Errorf("New(ftp) error = %v, want validation error", err)
	}

	c, err := New(client.StaticToken("x"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Client().BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.Client().BaseURL, DefaultBaseURL)
	}
	if c.InstallationID() != 0 {
		t.Errorf("InstallationID() = %d, want 0", c.InstallationID())
	}
}

func TestCredentialsTokenURLFollowsBaseURL(t *testing.T) {
	cred := ClientCredentials("app", "s3cret")
	if _, err := New(cred, WithBaseURL("https://example.com/api/v2/")); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if want := "https://example.com/api/v2" + TokenPath; cred.TokenURL != want {
		t.Errorf("TokenURL = %q, want %q", cred.TokenURL, want)
	}
}

func TestClientCredentialsToken(t *testing.T) {
	f := newFakeCloud(t)
	cred := &Credentials{ClientID: "app", ClientSecret: "s3cret", TokenURL: f.baseURL() + TokenPath}

	tok, err := cred.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.Value != "cloud-1" {
		t.Errorf("Value = %q, want %q", tok.Value, "cloud-1")
	}
	if d := time.Until(tok.ExpiresAt); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expires in %v, want about an hour", d)
	}
}

func TestClientCredentialsRejected(t *testing.T) {
	f := newFakeCloud(t)
	cred := &Credentials{ClientID: "app", ClientSecret: "wrong", TokenURL: f.baseURL() + TokenPath}

	_, err := cred.Token(context.Background())
	if !client.IsAuthError(err) {
		t.Fatalf("Token() error = %v, want auth error", err)
	}
	var ce *client.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *client.Error", err)
	}
	if ce.VendorMessage != "unknown client" {
		t.Errorf("VendorMessage = %q, want %q", ce.VendorMessage, "unknown client")
	}

	if _, err := ClientCredentials("", "").Token(context.Background()); !client.IsValidationError(err) {
		t.Errorf("Token() without credentials error = %v, want validation error", err)
	}
}

func TestTokenFetchedOnceAndReusedAcrossCalls(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestCloud(t, f)
	f.reply("GET", "/base/installations/21/sensors", `{"data":[]}`)

	for i := 0; i < 3; i++ {
		if _, err := c.Sensors.GetAll(context.Background()); err != nil {
			t.Fatalf("GetAll() error = %v", err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 1 {
		t.Errorf("token requests = %d, want 1", f.tokenCalls)
	}
}

func TestRotatedTokenIsRefreshed(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestCloud(t, f)
	f.reply("GET", "/base/installations/21/inputs", `{"data":[]}`)

	if _, err := c.Inputs.GetAll(context.Background()); err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	f.mu.Lock()
	f.token = "cloud-2"
	f.mu.Unlock()

	if _, err := c.Inputs.GetAll(context.Background()); err != nil {
		t.Fatalf("GetAll() after rotation error = %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 2 {
		t.Errorf("token requests = %d, want 2", f.tokenCalls)
	}
}

func TestScopedCallsNeedInstallation(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestCloud(t, f, WithInstallationID(0))

	if _, err := c.Outputs.GetAll(context.Background()); !client.IsValidationError(err) {
		t.Errorf("Outputs.GetAll() error = %v, want validation error", err)
	}
	if err := c.Shutters.Up(context.Background(), 1); !client.IsValidationError(err) {
		t.Errorf("Shutters.Up() error = %v, want validation error", err)
	}

	f.reply("GET", "/base/installations", `{"data":[{"id":21,"name":"Home","flags":{"ONLINE":true}}]}`)
	insts, err := c.Installations.GetAll(context.Background(), "")
	if err != nil {
		t.Fatalf("Installations.GetAll() error = %v", err)
	}
	if len(insts) != 1 || insts[0].ID != 21 || !insts[0].Online() {
		t.Errorf("installations = %+v, want one online installation 21", insts)
	}

	c.SetInstallationID(insts[0].ID)
	f.reply("GET", "/base/installations/21/outputs", `{"data":[]}`)
	if _, err := c.Outputs.GetAll(context.Background()); err != nil {
		t.Errorf("Outputs.GetAll() after SetInstallationID error = %v", err)
	}
}

func TestAPIErrorsCarryVendorMessage(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestCloud(t, f)
	f.replyStatus("GET", "/base/installations/21/outputs/9", http.StatusNotFound, `{"error":"output not found"}`)

	_, err := c.Outputs.GetByID(context.Background(), 9)
	if client.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("StatusCode(err) = %d, want 404 (err = %v)", client.StatusCode(err), err)
	}
	var ce *client.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *client.Error", err)
	}
	if ce.VendorMessage != "output not found" {
		t.Errorf("VendorMessage = %q, want %q", ce.VendorMessage, "output not found")
	}
}

func TestMalformedEnvelope(t *testing.T) {
	f := newFakeCloud(t)
	c := newTestCloud(t, f)
	f.reply("GET", "/base/installations/21/sensors", `{"data":`)

	if _, err := c.Sensors.GetAll(context.Background()); !client.IsParseError(err) {
		t.Errorf("GetAll() error = %v, want parse error", err)
	}
}

type subscribeConn struct {
	written chan []byte
	closed  chan struct{}
	once    sync.Once
}

func (c *subscribeConn) ReadMessage() ([]byte, error) {
	<-c.closed
	return nil, io.EOF
}

func (c *subscribeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.written <- data
	return nil
}

func (c *subscribeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type subscribeDialer struct {
	conn   *subscribeConn
	mu     sync.Mutex
	url    string
	header http.Header
}

func (d *subscribeDialer) Dial(_ context.Context, u string, header http.Header) (events.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
	d.header = header
	return d.conn, nil
}

func TestSubscribeScopesInstallation(t *testing.T) {
	f := newFakeCloud(t)
	dialer := &subscribeDialer{conn: &subscribeConn{written: make(chan []byte, 1), closed: make(chan struct{})}}
	c := newTestCloud(t, f, WithDialer(dialer))

	stream, err := c.Subscribe(context.Background(), events.TypeOutputChange)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	var sub struct {
		Type string `json:"type"`
		Data struct {
			Action          string   `json:"action"`
			Types           []string `json:"types"`
			InstallationIDs []int    `json:"installation_ids"`
		} `json:"data"`
	}
	select {
	case data := <-dialer.conn.written:
		if err := json.Unmarshal(data, &sub); err != nil {
			t.Fatalf("subscription %s: %v", data, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription written")
	}
	if sub.Data.Action != "set_subscription" {
		t.Errorf("action = %q, want set_subscription", sub.Data.Action)
	}
	if len(sub.Data.InstallationIDs) != 1 || sub.Data.InstallationIDs[0] != 21 {
		t.Errorf("installation_ids = %v, want [21]", sub.Data.InstallationIDs)
	}
	if len(sub.Data.Types) != 1 || sub.Data.Types[0] != events.TypeOutputChange {
		t.Errorf("types = %v, want [%s]", sub.Data.Types, events.TypeOutputChange)
	}

	dialer.mu.Lock()
	gotURL, header := dialer.url, dialer.header
	dialer.mu.Unlock()
	wantURL := "ws://" + strings.TrimPrefix(f.srv.URL, "http://") + apiPrefix + WebSocketPath
	if gotURL != wantURL {
		t.Errorf("dial URL = %q, want %q", gotURL, wantURL)
	}
	if !strings.HasPrefix(header.Get("Sec-WebSocket-Protocol"), events.SubprotocolPrefix) {
		t.Errorf("Sec-WebSocket-Protocol = %q, want bearer subprotocol", header.Get("Sec-WebSocket-Protocol"))
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case _, ok := <-stream.Events():
		if ok {
			t.Error("unexpected event after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
