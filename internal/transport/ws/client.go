package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/metrics"
	"github.com/vedran77/studychat/internal/service"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 16 * 1024
	sendBufSize    = 256
)

// Messaging is the part of the message service a connection drives.
type Messaging interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, input service.SendMessageInput) (*service.SendResult, error)
	Edit(ctx context.Context, userID, messageID uuid.UUID, input service.EditMessageInput) (*domain.Message, error)
	Delete(ctx context.Context, userID, messageID uuid.UUID) error
}

type Typing interface {
	SetTyping(userID, peerID uuid.UUID, isTyping bool) error
}

// Dispatcher holds what every connection needs to act on inbound events.
type Dispatcher struct {
	Messages  Messaging
	Typing    Typing
	Parser    domain.IntentParser
	RateRPS   float64
	RateBurst int
	Log       *zap.Logger
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	d      *Dispatcher
	log    *zap.Logger

	// watching is the set of peers whose presence this connection receives.
	watching map[uuid.UUID]bool

	limiter *rate.Limiter
	// inflight tracks assistant queries running off the read loop.
	inflight conc.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	send      chan []byte
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, peers []uuid.UUID, d *Dispatcher) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	conn.SetReadLimit(maxMessageSize)
	watching := make(map[uuid.UUID]bool, len(peers))
	for _, p := range peers {
		if p != userID && p != uuid.Nil {
			watching[p] = true
		}
	}
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		watching: watching,
		d:        d,
		log:      d.Log.With(zap.Stringer("user_id", userID)),
		limiter:  rate.NewLimiter(rate.Limit(d.RateRPS), d.RateBurst),
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBufSize),
	}
}

func (c *Client) watches(userID uuid.UUID) bool {
	return c.watching[userID]
}

// enqueue buffers data for the write pump without blocking.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops both pumps. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(c.cancel)
}

// ReadPump reads events from the WebSocket until the connection ends.
func (c *Client) ReadPump() {
	defer func() {
		c.close()
		c.hub.Unregister(c)
		if r := c.inflight.WaitAndRecover(); r != nil {
			c.log.Error("ws: assistant send panicked", zap.String("panic", r.String()))
		}
	}()

	for {
		var event Event
		err := wsjson.Read(c.ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.log.Debug("ws: client disconnected")
			} else {
				c.log.Warn("ws: read error", zap.Error(err))
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued events and keepalive pings to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("ws: write error", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ws: ping error", zap.Error(err))
				c.close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleEvent routes an incoming client event. The acting user is always the
// connection's identity.
func (c *Client) handleEvent(event *Event) {
	if !c.limiter.Allow() {
		metrics.InboundRateLimited.Inc()
		c.sendError("RATE_LIMITED", "Too many events, slow down", nonceOf(event.Payload))
		return
	}

	switch event.Type {
	case EventTypeMessageSend:
		var p MessageSendPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.send payload", "")
			return
		}
		if c.d.Parser.IsAssistantQuery(p.Content) {
			// the AI call may take seconds; keep reading meanwhile
			c.inflight.Go(func() { c.sendMessage(p) })
			return
		}
		c.sendMessage(p)

	case EventTypeMessageEdit:
		var p MessageEditPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.edit payload", "")
			return
		}
		_, err := c.d.Messages.Edit(c.ctx, c.userID, p.ID, service.EditMessageInput{Content: p.Content})
		if err != nil {
			c.sendServiceError("edit", err, p.Nonce)
		}

	case EventTypeMessageDelete:
		var p MessageDeletePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.delete payload", "")
			return
		}
		if err := c.d.Messages.Delete(c.ctx, c.userID, p.ID); err != nil {
			c.sendServiceError("delete", err, p.Nonce)
		}

	case EventTypeTyping:
		var p TypingInput
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid typing payload", "")
			return
		}
		if err := c.d.Typing.SetTyping(c.userID, p.PeerID, p.IsTyping); err != nil {
			c.sendServiceError("typing", err, "")
		}

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type, "")
	}
}

func (c *Client) sendMessage(p MessageSendPayload) {
	// a pending assistant answer is written even if this connection drops
	ctx := context.WithoutCancel(c.ctx)
	_, err := c.d.Messages.Send(ctx, c.userID, p.ReceiverID, service.SendMessageInput{
		Content: p.Content,
		Context: p.Context,
	})
	if err != nil {
		c.sendServiceError("send", err, p.Nonce)
	}
}

func (c *Client) sendServiceError(op string, err error, nonce string) {
	code, message := errorCode(err)
	if code == "INTERNAL" || code == "SEND_FAILED" {
		c.log.Error("ws: "+op+" failed", zap.Error(err))
	}
	c.sendError(code, message, nonce)
}

// errorCode maps service errors onto the codes the REST API uses.
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return "VALIDATION_ERROR", err.Error()
	case errors.Is(err, service.ErrForbidden):
		return "FORBIDDEN", err.Error()
	case errors.Is(err, service.ErrMessageNotFound):
		return "NOT_FOUND", "Message not found"
	case errors.Is(err, service.ErrSendFailed):
		return "SEND_FAILED", "Message could not be sent"
	default:
		return "INTERNAL", "Something went wrong"
	}
}

func nonceOf(payload json.RawMessage) string {
	var p struct {
		Nonce string `json:"nonce"`
	}
	_ = json.Unmarshal(payload, &p)
	return p.Nonce
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong, Timestamp: time.Now().UnixMilli()})
	c.enqueue(data)
}

func (c *Client) sendError(code, message, nonce string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message, Nonce: nonce})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}
