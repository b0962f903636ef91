// Package rpcconn correlates JSON-RPC traffic on a single stream connection. It owns the
// receive loop, matches responses to requests by id, and keeps a log of notifications that
// tests can wait for.
package rpcconn

import (
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
)

type connConfig struct {
	logger framework.Logger
}

// Option is an optional setting for New.
type Option = helpers.ConfigOption[connConfig]

// WithLogger sets the logger that receives wire traffic and protocol warnings.
func WithLogger(logger framework.Logger) Option {
	return helpers.ConfigOptionFunc[connConfig](func(c *connConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	})
}

type pendingResponse struct {
	ch        chan jsonrpc.Message
	delivered bool
}

type notificationEntry struct {
	seq      int
	message  jsonrpc.Message
	consumed bool
}

// Conn is a JSON-RPC connection to a peer. It starts a goroutine that reads every inbound
// message; responses are held for AwaitResponse, and all messages with a method are added to
// a notification log for AwaitNotification. Nothing that arrives is discarded.
//
// All methods are safe to call from multiple goroutines.
type Conn struct {
	codec  jsonrpc.Codec
	logger framework.Logger

	lock          sync.Mutex
	lastID        int64
	pending       map[jsonrpc.ID]*pendingResponse
	completed     map[jsonrpc.ID]bool // true if the wait timed out before the response came
	notifications []*notificationEntry
	arrived       chan struct{}

	done      chan struct{}
	cause     error
	closeOnce sync.Once
}

// New starts a connection on a codec. The connection takes ownership of the codec.
func New(codec jsonrpc.Codec, options ...Option) (*Conn, error) {
	config := connConfig{logger: framework.NullLogger()}
	if err := helpers.ApplyOptions(&config, options...); err != nil {
		return nil, err
	}
	c := &Conn{
		codec:     codec,
		logger:    config.logger,
		pending:   make(map[jsonrpc.ID]*pendingResponse),
		completed: make(map[jsonrpc.ID]bool),
		arrived:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c, nil
}

// SendRequest sends a request with the next available id and returns that id. The response
// slot is registered before anything is written, so a fast response cannot be missed.
func (c *Conn) SendRequest(method string, params ldvalue.Value) (jsonrpc.ID, error) {
	c.lock.Lock()
	c.lastID++
	id := jsonrpc.NumberID(c.lastID)
	c.slotFor(id)
	c.lock.Unlock()

	if err := c.write(jsonrpc.NewRequest(id, method, params)); err != nil {
		c.lock.Lock()
		delete(c.pending, id)
		c.lock.Unlock()
		return jsonrpc.ID{}, err
	}
	return id, nil
}

// SendNotification sends a notification.
func (c *Conn) SendNotification(method string, params ldvalue.Value) error {
	return c.write(jsonrpc.NewNotification(method, params))
}

// Send writes a message exactly as given. If it is a request, its id is registered for
// AwaitResponse; a numeric id is also reserved so that SendRequest will never reuse it.
func (c *Conn) Send(m jsonrpc.Message) error {
	if m.Kind() == jsonrpc.KindRequest {
		c.lock.Lock()
		if n, ok := m.ID.Number(); ok && n > c.lastID {
			c.lastID = n
		}
		c.slotFor(m.ID)
		c.lock.Unlock()
	}
	return c.write(m)
}

// AwaitResponse waits for the response to a request. The response is removed from the
// connection once returned. If nothing arrives in time, or the connection ends first, it
// returns a *TimeoutError.
func (c *Conn) AwaitResponse(id jsonrpc.ID, timeout time.Duration) (jsonrpc.Message, error) {
	c.lock.Lock()
	slot := c.slotFor(id)
	c.lock.Unlock()

	result := helpers.TryReceiveUnlessClosed(slot.ch, c.done, timeout)

	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.pending, id)
	m, ok := result.Get()
	if !ok {
		select {
		case m, ok = <-slot.ch:
		default:
		}
	}
	c.completed[id] = !ok
	if ok {
		return m, nil
	}
	return jsonrpc.Message{}, c.timeoutError(fmt.Sprintf("response to request %s", id), timeout)
}

// AwaitNotification waits for the oldest unconsumed message with the given method, including
// ones that arrived before this call. The returned entry is marked consumed; entries for other
// methods are left in place.
func (c *Conn) AwaitNotification(method string, timeout time.Duration) (jsonrpc.Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	cursor := 0
	for {
		c.lock.Lock()
		for ; cursor < len(c.notifications); cursor++ {
			e := c.notifications[cursor]
			if !e.consumed && e.message.Method == method {
				e.consumed = true
				c.lock.Unlock()
				c.logger.Printf("matched notification #%d (%s)", e.seq, method)
				return e.message, nil
			}
		}
		arrived := c.arrived
		c.lock.Unlock()

		select {
		case <-arrived:
		case <-c.done:
			// The receive loop has exited, so the log can only have grown before done was closed.
			c.lock.Lock()
			grew := cursor < len(c.notifications)
			c.lock.Unlock()
			if !grew {
				return jsonrpc.Message{}, c.timeoutError(fmt.Sprintf("notification %q", method), timeout)
			}
		case <-deadline.C:
			return jsonrpc.Message{}, c.timeoutError(fmt.Sprintf("notification %q", method), timeout)
		}
	}
}

// UnconsumedNotifications returns the methods of logged messages that nobody has waited for yet,
// in arrival order.
func (c *Conn) UnconsumedNotifications() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	var ret []string
	for _, e := range c.notifications {
		if !e.consumed {
			ret = append(ret, e.message.Method)
		}
	}
	return ret
}

// Done returns a channel that is closed when the receive loop has stopped.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the reason the receive loop stopped, or nil if it is still running.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

// Close closes the codec and stops the connection. Any pending waits end immediately.
func (c *Conn) Close() error {
	c.terminate(ErrConnectionClosed)
	return c.codec.Close()
}

// slotFor must be called with the lock held.
func (c *Conn) slotFor(id jsonrpc.ID) *pendingResponse {
	slot, ok := c.pending[id]
	if !ok {
		slot = &pendingResponse{ch: make(chan jsonrpc.Message, 1)}
		c.pending[id] = slot
	}
	return slot
}

func (c *Conn) write(m jsonrpc.Message) error {
	if cause := c.Err(); cause != nil {
		return &jsonrpc.TransportError{Op: "write", Err: cause}
	}
	c.logger.Printf("send: %s", m.Encode())
	return c.codec.Write(m)
}

func (c *Conn) receiveLoop() {
	for {
		m, err := c.codec.Read()
		if err != nil {
			c.terminate(err)
			return
		}
		c.logger.Printf("recv: %s", m.Raw())
		if m.Kind() == jsonrpc.KindResponse {
			c.routeResponse(m)
		} else {
			c.logNotification(m)
		}
	}
}

func (c *Conn) routeResponse(m jsonrpc.Message) {
	if !m.ID.IsDefined() {
		c.logger.Printf("protocol warning: response without an id: %s", m.Raw())
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if timedOut, done := c.completed[m.ID]; done {
		if timedOut {
			c.logger.Printf("protocol warning: late response for id %s arrived after its wait timed out", m.ID)
		} else {
			c.logger.Printf("protocol violation: duplicate response for id %s", m.ID)
		}
		return
	}
	slot, known := c.pending[m.ID]
	if !known {
		c.logger.Printf("protocol warning: response for unknown id %s", m.ID)
		slot = c.slotFor(m.ID)
	}
	if slot.delivered {
		c.logger.Printf("protocol violation: duplicate response for id %s", m.ID)
		return
	}
	slot.delivered = true
	slot.ch <- m
}

func (c *Conn) logNotification(m jsonrpc.Message) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.notifications = append(c.notifications, &notificationEntry{seq: len(c.notifications) + 1, message: m})
	close(c.arrived)
	c.arrived = make(chan struct{})
}

func (c *Conn) terminate(cause error) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.done)
	})
}

func (c *Conn) timeoutError(what string, timeout time.Duration) *TimeoutError {
	select {
	case <-c.done:
		return &TimeoutError{What: what, Timeout: timeout, Closed: true, Cause: c.cause}
	default:
		return &TimeoutError{What: what, Timeout: timeout}
	}
}
