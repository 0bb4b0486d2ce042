package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrServer wraps errors reported by the daemon.
var ErrServer = errors.New("server error")

// EventHandler is called when the server pushes an event.
type EventHandler func(msg Message)

// Client connects to an fxswitchd server over a Unix domain socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
	pending map[string]chan Message
	events  EventHandler
	done    chan struct{}
	once    sync.Once
}

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		pending: make(map[string]chan Message),
		done:    make(chan struct{}),
	}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	go c.readLoop()
	return c, nil
}

// OnEvent registers a handler for server-pushed events. Set it before the
// first request to avoid missing events.
func (c *Client) OnEvent(h EventHandler) {
	c.mu.Lock()
	c.events = h
	c.mu.Unlock()
}

// Done is closed when the connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Request sends a request and waits for the correlated response.
func (c *Client) Request(ctx context.Context, method string, data any) (Message, error) {
	msg, err := NewRequest(method, data)
	if err != nil {
		return Message{}, err
	}

	ch := make(chan Message, 1)
	c.mu.Lock()
	c.pending[msg.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	raw, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}
	raw = append(raw, '\n')

	if _, err := c.conn.Write(raw); err != nil {
		return Message{}, fmt.Errorf("write: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, fmt.Errorf("%w: %s", ErrServer, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, fmt.Errorf("connection closed")
	}
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	return call[PingResponse](ctx, c, MethodPing, nil)
}

// Status fetches the routing and boot state.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	return call[StatusResponse](ctx, c, MethodStatus, nil)
}

// Toggle moves the managed output to the other valid sink.
func (c *Client) Toggle(ctx context.Context) (SinkResponse, error) {
	return call[SinkResponse](ctx, c, MethodToggle, nil)
}

// SetOutput moves the managed output to the sink with description.
func (c *Client) SetOutput(ctx context.Context, description string) (SinkResponse, error) {
	return call[SinkResponse](ctx, c, MethodSetOutput, SetOutputRequest{Description: description})
}

// Boot asks the daemon to re-run the boot sequence.
func (c *Client) Boot(ctx context.Context) (BootResponse, error) {
	return call[BootResponse](ctx, c, MethodBoot, nil)
}

func call[T any](ctx context.Context, c *Client, method string, data any) (T, error) {
	var out T
	resp, err := c.Request(ctx, method, data)
	if err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", method, err)
	}
	return out, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer c.once.Do(func() { close(c.done) })
	for c.scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(c.scanner.Bytes(), &msg); err != nil {
			continue
		}

		switch msg.Type {
		case MsgTypeRes:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case MsgTypeEvt:
			c.mu.Lock()
			h := c.events
			c.mu.Unlock()
			if h != nil {
				h(msg)
			}
		}
	}
}
