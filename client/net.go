package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fantasyrpg/shared/protocol"
)

var ErrClosed = errors.New("net: closed")

// Net is a websocket connection to the game hub.
type Net struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	inCh      chan protocol.MsgEnvelope
	done      chan struct{}
	closeOnce sync.Once
	closed    bool

	// Observe, if set, sees every message Await skips.
	Observe func(protocol.MsgEnvelope)
}

// Dial connects with token passed both as bearer header and query param.
func Dial(ctx context.Context, wsURL, token string) (*Net, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
		u, err := neturl.Parse(wsURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		wsURL = u.String()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	c, resp, err := dialer.DialContext(ctx, wsURL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("ws dial: %s: %s", resp.Status, body)
		}
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	n := &Net{conn: c, inCh: make(chan protocol.MsgEnvelope, 128), done: make(chan struct{})}
	go n.reader()
	return n, nil
}

func (n *Net) reader() {
	defer close(n.inCh)
	for {
		_, data, err := n.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("[net] read:", err)
			}
			n.mu.Lock()
			n.closed = true
			n.mu.Unlock()
			return
		}
		var m protocol.MsgEnvelope
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		select {
		case n.inCh <- m:
		case <-n.done:
			return
		}
	}
}

// Inbox is closed when the connection ends.
func (n *Net) Inbox() <-chan protocol.MsgEnvelope { return n.inCh }

func (n *Net) Send(typ string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	return n.conn.WriteJSON(protocol.MsgEnvelope{Type: typ, Data: b})
}

// Await returns the next message of one of the given types. Error messages
// from the server are returned as errors.
func (n *Net) Await(ctx context.Context, types ...string) (protocol.MsgEnvelope, error) {
	for {
		select {
		case <-ctx.Done():
			return protocol.MsgEnvelope{}, ctx.Err()
		case m, ok := <-n.inCh:
			if !ok {
				return protocol.MsgEnvelope{}, ErrClosed
			}
			if m.Type == "Error" {
				var e protocol.Error
				_ = json.Unmarshal(m.Data, &e)
				return m, &ServerError{Code: e.Code, Message: e.Message}
			}
			for _, t := range types {
				if m.Type == t {
					return m, nil
				}
			}
			if n.Observe != nil {
				n.Observe(m)
			}
		}
	}
}

// Close ends the connection and stops the reader, even when nobody is
// draining Inbox.
func (n *Net) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		n.mu.Lock()
		if !n.closed {
			n.closed = true
			_ = n.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
		n.mu.Unlock()
		err = n.conn.Close()
	})
	return err
}

// ServerError is an Error message pushed by the hub.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string { return e.Code + ": " + e.Message }
