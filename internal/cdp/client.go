// Package cdp speaks just enough of the Chrome DevTools Protocol to watch a
// page's location: target discovery over HTTP and a JSON-RPC session over a
// websocket.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("cdp: connection closed")

// Target is one entry of the browser's /json/list.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// ListTargets returns the page targets the browser exposes at endpoint.
func ListTargets(ctx context.Context, client *http.Client, endpoint string) ([]Target, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/json/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build target request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list targets: unexpected status %s", resp.Status)
	}

	var all []Target
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("failed to decode targets: %w", err)
	}
	pages := all[:0]
	for _, target := range all {
		if target.Type == "page" && target.WebSocketDebuggerURL != "" {
			pages = append(pages, target)
		}
	}
	return pages, nil
}

// Event is an unsolicited protocol message.
type Event struct {
	Method string
	Params json.RawMessage
}

type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cdp: remote error %d: %s", e.Code, e.Message)
}

type request struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type envelope struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

// Conn is a session with one target.
type Conn struct {
	ws     *websocket.Conn
	nextID atomic.Int64
	events chan Event

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan envelope
	closed  chan struct{}
	once    sync.Once
	err     error
}

// Dial opens a session on a target's webSocketDebuggerUrl.
func Dial(ctx context.Context, wsURL string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}
	c := &Conn{
		ws:      ws,
		events:  make(chan Event, 64),
		pending: make(map[int64]chan envelope),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers protocol events in arrival order. It is closed with the connection.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Call sends method and decodes the result into result, which may be nil.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)
	reply := make(chan envelope, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(request{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	case msg := <-reply:
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Conn) Close() error {
	err := c.ws.Close()
	c.shutdown(ErrClosed)
	return err
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		var msg envelope
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.shutdown(err)
			return
		}
		if msg.ID != 0 {
			c.mu.Lock()
			reply, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}
		select {
		case c.events <- Event{Method: msg.Method, Params: msg.Params}:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) shutdown(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		close(c.closed)
		if cause != nil && !errors.Is(cause, ErrClosed) && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.WithError(cause).Debug("cdp: connection ended")
		}
	})
}
