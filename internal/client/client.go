package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/projection"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// DefaultSendBuffer is the outbound queue length per client
	DefaultSendBuffer = 256
)

// Subscriber is the part of the hub a client needs
type Subscriber interface {
	Subscribe(key models.InningsKey, listener hub.Listener) func()
}

// registration is one Subscribe call. cancel is nil while the hub
// subscription is still being made.
type registration struct {
	gen    uint64
	cancel func()
}

// Client represents a WebSocket client following one or more innings
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan models.ServerMessage
	hub    Subscriber
	logger *slog.Logger
	meter  *metrics.Metrics

	// Active subscriptions and the last live event sent per innings
	subs      map[models.InningsKey]*registration
	lastEvent map[models.InningsKey]int
	nextGen   uint64
	subsMu    sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	connectedAt      time.Time
	messagesSent     int64
	messagesReceived int64
	lastMessageAt    time.Time
	mu               sync.Mutex
}

// NewClient creates a new client instance. bufferSize <= 0 uses
// DefaultSendBuffer.
func NewClient(id string, conn *websocket.Conn, h Subscriber, bufferSize int, logger *slog.Logger, m *metrics.Metrics) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.AddWSClients(1)
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan models.ServerMessage, bufferSize),
		hub:         h,
		logger:      logger.With("client", id),
		meter:       m,
		subs:        make(map[models.InningsKey]*registration),
		lastEvent:   make(map[models.InningsKey]int),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
}

// ReadPump reads client messages until the connection fails or ctx ends,
// then drops every subscription
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.unsubscribeAll()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg models.ClientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("unexpected close", "error", err)
				}
				return
			}

			c.updateReceived()
			c.handleClientMessage(msg)
		}
	}
}

// WritePump writes queued messages and pings to the connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}
			c.updateSent()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the write pump and closes the connection. Safe to call more
// than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.meter.AddWSClients(-1)
	})
}

// Done is closed once the client has been closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// TrySend queues a message without blocking. Returns false if the buffer is
// full or the client is closed.
func (c *Client) TrySend(msg models.ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Subscribe follows key. Subscribing twice to the same innings is a no-op.
func (c *Client) Subscribe(key models.InningsKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	c.subsMu.Lock()
	if _, ok := c.subs[key]; ok {
		c.subsMu.Unlock()
		return nil
	}
	c.nextGen++
	reg := &registration{gen: c.nextGen}
	c.subs[key] = reg
	c.subsMu.Unlock()

	unsubscribe := c.hub.Subscribe(key, func(state models.DerivedInningsState) {
		if c.current(key, reg) {
			c.deliver(key, state)
		}
	})

	c.subsMu.Lock()
	if c.subs[key] != reg {
		// unsubscribed, and possibly resubscribed, while we were registering
		c.subsMu.Unlock()
		unsubscribe()
		return nil
	}
	reg.cancel = unsubscribe
	c.subsMu.Unlock()

	c.logger.Info("subscribed", "innings", key.String())
	return nil
}

// current reports whether reg is still the live registration for key
func (c *Client) current(key models.InningsKey, reg *registration) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return c.subs[key] == reg
}

// Unsubscribe stops following key. A registration still in flight is
// cancelled by its own Subscribe call.
func (c *Client) Unsubscribe(key models.InningsKey) {
	c.subsMu.Lock()
	reg, ok := c.subs[key]
	var cancel func()
	if ok {
		cancel = reg.cancel
	}
	delete(c.subs, key)
	delete(c.lastEvent, key)
	c.subsMu.Unlock()

	if ok {
		if cancel != nil {
			cancel()
		}
		c.logger.Info("unsubscribed", "innings", key.String())
	}
}

// Subscriptions lists the innings the client follows, sorted
func (c *Client) Subscriptions() []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	out := make([]string, 0, len(c.subs))
	for key := range c.subs {
		out = append(out, key.String())
	}
	sort.Strings(out)
	return out
}

// GetStats returns connection statistics
func (c *Client) GetStats() models.ConnectionStats {
	subs := c.Subscriptions()

	c.mu.Lock()
	defer c.mu.Unlock()

	return models.ConnectionStats{
		ClientID:          c.ID,
		ConnectedAt:       c.connectedAt,
		MessagesSent:      c.messagesSent,
		MessagesReceived:  c.messagesReceived,
		LastMessageAt:     c.lastMessageAt,
		Subscriptions:     subs,
		BufferSize:        cap(c.send),
		BufferUtilization: float64(len(c.send)) / float64(cap(c.send)) * 100.0,
	}
}

// deliver runs on the hub's delivery goroutine for key. A client whose buffer
// is full is disconnected rather than allowed to stall.
func (c *Client) deliver(key models.InningsKey, state models.DerivedInningsState) {
	now := time.Now()
	if !c.TrySend(models.ServerMessage{Type: models.MessageTypeInningsUpdate, Payload: state, Timestamp: now}) {
		c.dropSlow(key)
		return
	}

	event, ok := projection.LiveEvent(state)
	if !ok {
		return
	}
	c.subsMu.Lock()
	last, seen := c.lastEvent[key]
	fresh := !seen || last != event.SequenceNumber
	if fresh {
		c.lastEvent[key] = event.SequenceNumber
	}
	c.subsMu.Unlock()

	if fresh && !c.TrySend(models.ServerMessage{Type: models.MessageTypeLiveEvent, Payload: event, Timestamp: now}) {
		c.dropSlow(key)
	}
}

func (c *Client) dropSlow(key models.InningsKey) {
	select {
	case <-c.done:
		return
	default:
	}
	c.logger.Warn("send buffer full, disconnecting", "innings", key.String())
	c.Close()
}

// handleClientMessage processes messages from the client
func (c *Client) handleClientMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeSubscribe:
		req, err := parseRequest(msg.Payload)
		if err != nil {
			c.sendError("invalid_subscription", err.Error())
			return
		}
		if err := c.Subscribe(req.Key()); err != nil {
			c.sendError("invalid_subscription", err.Error())
		}
	case models.MessageTypeUnsubscribe:
		if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
			c.unsubscribeAll()
			return
		}
		req, err := parseRequest(msg.Payload)
		if err != nil {
			c.sendError("invalid_subscription", err.Error())
			return
		}
		c.Unsubscribe(req.Key())
	case models.MessageTypeHeartbeat:
		c.sendHeartbeat()
	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func parseRequest(payload json.RawMessage) (models.SubscriptionRequest, error) {
	var req models.SubscriptionRequest
	if len(payload) == 0 {
		return req, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("failed to parse subscription: %w", err)
	}
	return req, nil
}

func (c *Client) unsubscribeAll() {
	c.subsMu.Lock()
	subs := c.subs
	var cancels []func()
	for _, reg := range subs {
		if reg.cancel != nil {
			cancels = append(cancels, reg.cancel)
		}
	}
	c.subs = make(map[models.InningsKey]*registration)
	c.lastEvent = make(map[models.InningsKey]int)
	c.subsMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// sendHeartbeat sends a heartbeat response
func (c *Client) sendHeartbeat() {
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeHeartbeat,
		Payload:   c.GetStats(),
		Timestamp: time.Now(),
	})
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.TrySend(models.ServerMessage{
		Type: models.MessageTypeError,
		Payload: models.ErrorMessage{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now(),
	})
}

func (c *Client) updateSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesSent++
	c.lastMessageAt = time.Now()
}

func (c *Client) updateReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesReceived++
	c.lastMessageAt = time.Now()
}
