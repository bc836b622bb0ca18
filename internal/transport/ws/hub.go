package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/metrics"
	"go.uber.org/zap"
)

const relayPublishTimeout = 2 * time.Second

// Delivery is one outbound event and its audience: the users in To, or,
// when To is empty, the connections watching Subject.
type Delivery struct {
	To      []uuid.UUID     `json:"to,omitempty"`
	Subject uuid.UUID       `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

// Relay carries deliveries between nodes. Each node delivers what it
// receives to its own connections.
type Relay interface {
	Publish(ctx context.Context, d Delivery) error
	Run(ctx context.Context, deliver func(Delivery)) error
}

// Hub tracks the live connection of every user on this node. The map is
// written on connect and disconnect only; fan-out takes the read lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	relay Relay
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		log:     log,
	}
}

// SetRelay routes all fan-out through r (optional dependency).
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Register makes c the live connection of its user, closing any older one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	h.clients[c.userID] = c
	total := len(h.clients)
	h.mu.Unlock()

	if old != nil {
		h.log.Info("ws hub: connection replaced", zap.Stringer("user_id", c.userID))
		old.close()
	} else {
		metrics.ActiveConnections.Inc()
	}
	h.log.Info("ws hub: user connected", zap.Stringer("user_id", c.userID), zap.Int("total", total))

	h.broadcastPresence(c.userID, "online")
	h.presenceSnapshot(c)
}

// Unregister removes c if it is still the user's live connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.userID]
	if !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.userID)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
	h.log.Info("ws hub: user disconnected", zap.Stringer("user_id", c.userID), zap.Int("total", total))

	h.broadcastPresence(c.userID, "offline")
}

// IsOnline reports whether userID has a live connection on this node.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUsers pushes event to the live connections of userIDs.
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("ws hub: marshal error", zap.Error(err))
		return
	}
	h.publish(Delivery{To: userIDs, Data: data})
}

func (h *Hub) publish(d Delivery) {
	if h.relay == nil {
		h.Deliver(d)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, d); err != nil {
		h.log.Warn("ws hub: relay publish failed, delivering locally", zap.Error(err))
		h.Deliver(d)
	}
}

// Deliver hands d to the matching local connections. Offline recipients and
// full send buffers are delivery misses, not errors.
func (h *Hub) Deliver(d Delivery) {
	h.mu.RLock()
	var targets []*Client
	if len(d.To) == 0 {
		for id, c := range h.clients {
			if id != d.Subject && c.watches(d.Subject) {
				targets = append(targets, c)
			}
		}
	} else {
		targets = make([]*Client, 0, len(d.To))
		for _, id := range d.To {
			if c, ok := h.clients[id]; ok {
				targets = append(targets, c)
			} else if h.relay == nil {
				metrics.DeliveryMisses.WithLabelValues("offline").Inc()
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(d.Data) {
			metrics.DeliveryMisses.WithLabelValues("buffer_full").Inc()
			h.log.Warn("ws hub: send buffer full, dropping connection", zap.Stringer("user_id", c.userID))
			c.close()
		}
	}
}

// broadcastPresence sends online/offline to the connections watching userID.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	data, err := presenceEvent(userID, status)
	if err != nil {
		return
	}
	h.publish(Delivery{Subject: userID, Data: data})
}

// presenceSnapshot tells c which of its watched peers are already connected
// to this node.
func (h *Hub) presenceSnapshot(c *Client) {
	h.mu.RLock()
	var online []uuid.UUID
	for peer := range c.watching {
		if _, ok := h.clients[peer]; ok {
			online = append(online, peer)
		}
	}
	h.mu.RUnlock()

	for _, peer := range online {
		if data, err := presenceEvent(peer, "online"); err == nil {
			c.enqueue(data)
		}
	}
}

func presenceEvent(userID uuid.UUID, status string) ([]byte, error) {
	evt, err := NewEvent(EventTypePresence, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
