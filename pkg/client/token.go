package client

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ExpirySkew is subtracted from a token's expiry when deciding whether it is
// still usable, so that a gateway with a slightly fast clock does not reject it.
const ExpirySkew = 20 * time.Second

// Token is a bearer access credential.
type Token struct {
	Value string

	// ExpiresAt is the moment the token stops being accepted.
	// The zero value means the token does not expire.
	ExpiresAt time.Time
}

// Valid reports whether the token can be used at the given moment.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(ExpirySkew).Before(t.ExpiresAt)
}

// String never reveals the token value.
func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	return "[REDACTED]"
}

// TokenSource acquires a fresh token. Implementations perform the login or
// client-credentials exchange; the client decides when to call them.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func(ctx context.Context) (*Token, error)

// Token calls f(ctx).
func (f TokenFunc) Token(ctx context.Context) (*Token, error) {
	return f(ctx)
}

type staticToken struct {
	tok *Token
}

func (s staticToken) Token(context.Context) (*Token, error) {
	return s.tok, nil
}

// StaticToken returns a TokenSource that always yields value. When value is a
// JWT carrying an exp claim, the expiry is taken from it; the signature is not
// verified.
func StaticToken(value string) TokenSource {
	return staticToken{tok: &Token{Value: value, ExpiresAt: TokenExpiry(value)}}
}

// TokenExpiry extracts the exp claim from a JWT without verifying it.
// It returns the zero time when value is not a JWT or has no exp claim.
func TokenExpiry(value string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// tokenManager holds the token of a single client. At most one refresh is in
// flight at a time and concurrent callers share its result.
type tokenManager struct {
	source  TokenSource
	timeout func() time.Duration
	now     func() time.Time

	mu    sync.Mutex
	token *Token

	group singleflight.Group
}

func newTokenManager(source TokenSource, timeout func() time.Duration) *tokenManager {
	return &tokenManager{
		source:  source,
		timeout: timeout,
		now:     time.Now,
	}
}

func (m *tokenManager) current() *Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// get returns a valid token, refreshing when the stored one is missing or expired.
func (m *tokenManager) get(ctx context.Context) (*Token, error) {
	tok := m.current()
	if tok.Valid(m.now()) {
		return tok, nil
	}
	stale := ""
	if tok != nil {
		stale = tok.Value
	}
	return m.refresh(ctx, stale)
}

// refresh replaces the token identified by stale. If another caller already
// replaced it, the newer token is returned without contacting the source.
func (m *tokenManager) refresh(ctx context.Context, stale string) (*Token, error) {
	m.mu.Lock()
	if m.token != nil && m.token.Value != stale && m.token.Valid(m.now()) {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	// The refresh outlives the caller that started it; others may be waiting on it.
	ch := m.group.DoChan("refresh", func() (any, error) {
		rctx := context.WithoutCancel(ctx)
		if d := m.timeout(); d > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, d)
			defer cancel()
		}

		tok, err := m.source.Token(rctx)
		if err != nil {
			return nil, err
		}
		if tok == nil || tok.Value == "" {
			return nil, NewAuthError(0, "token source returned an empty token")
		}

		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ClassifyNetworkError(ctx.Err(), "")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

// reset forgets the stored token.
func (m *tokenManager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
}
