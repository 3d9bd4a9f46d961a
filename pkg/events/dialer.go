package events

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20
)

// Conn is an open event connection.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives.
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens event connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// DialError is returned when the WebSocket handshake fails. StatusCode is zero
// when no HTTP response was received.
type DialError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dial %s: handshake status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dial %s: %v", e.URL, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// isUnauthorized reports whether err is a handshake rejected with 401.
func isUnauthorized(err error) bool {
	var de *DialError
	return errors.As(err, &de) && de.StatusCode == http.StatusUnauthorized
}

// GorillaDialer dials with gorilla/websocket and keeps the connection alive
// with pings.
type GorillaDialer struct {
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
	PingPeriod       time.Duration
	PongWait         time.Duration
}

// Dial opens the WebSocket. A rejected handshake returns a *DialError with
// the response status.
func (d *GorillaDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = writeWait
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
		TLSClientConfig:  d.TLSConfig,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		de := &DialError{URL: url, Err: err}
		if resp != nil {
			de.StatusCode = resp.StatusCode
			_ = resp.Body.Close()
		}
		return nil, de
	}

	wait := d.PongWait
	if wait <= 0 {
		wait = pongWait
	}
	period := d.PingPeriod
	if period <= 0 || period >= wait {
		period = (wait * 9) / 10
	}

	c := &gorillaConn{ws: ws, pongWait: wait, done: make(chan struct{})}
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(wait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wait))
	})
	go c.keepalive(period)
	return c, nil
}

type gorillaConn struct {
	ws       *websocket.Conn
	pongWait time.Duration
	once     sync.Once
	done     chan struct{}
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *gorillaConn) WriteJSON(v any) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *gorillaConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *gorillaConn) keepalive(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// WriteControl is safe alongside other writers
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
