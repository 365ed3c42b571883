// Package fanout pushes committed state changes to the live subscribers
// of a room. Delivery is best-effort: a subscriber that cannot keep up
// has the notification dropped (its buffer is bounded and sends never
// block the committing operation). Within one room, notifications carry
// a sequence assigned in commit order; across rooms no ordering is
// guaranteed. A subscriber that connects after an event never receives
// it and reconciles via paging and unread counts.
package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"parley/pkg/locks"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/telemetry"
	"parley/pkg/utils"
)

// Subscriber is one live connection of one user. A user may hold many
// concurrent subscribers (one per connection).
type Subscriber struct {
	UserID string
	ConnID string

	ch     chan models.Notification
	hub    *Hub
	mu     sync.Mutex
	closed bool
	rooms  map[string]bool
}

// C is the notification stream for this connection.
func (s *Subscriber) C() <-chan models.Notification { return s.ch }

// Rooms returns a snapshot of the rooms this connection follows.
func (s *Subscriber) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

func (s *Subscriber) follows(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID]
}

// send hands n to the stream without blocking. The send happens under
// s.mu, the same mutex Unregister sets closed under, so a send can
// never race the channel close. Returns whether the notification was
// buffered and whether the stream is still open.
func (s *Subscriber) send(n models.Notification) (delivered, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.ch <- n:
		return true, true
	default:
		return false, true
	}
}

// Hub is the process-wide registry of live subscribers, keyed by
// (userID, connID). It owns no user identity: the directory does.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscriber // connID -> subscriber
	bufSize int

	// pub serializes publishes per room so delivery order within one
	// room matches sequence order; unrelated rooms do not contend.
	pub     *locks.Set
	seqMu   sync.Mutex
	roomSeq map[string]uint64

	delivered uint64
	dropped   uint64

	// sink receives a durable copy of every non-ephemeral notification
	// (wired to the outbox at startup; nil in tests that don't care).
	sink func(models.Notification)
}

// NewHub creates a hub whose subscribers buffer up to bufSize pending
// notifications each.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		subs:    make(map[string]*Subscriber),
		pub:     locks.NewSet(),
		roomSeq: make(map[string]uint64),
		bufSize: bufSize,
	}
}

// DefaultHub is the global hub used by the API layer. Replace at startup
// via SetDefaultHub if a differently tuned hub is needed.
var DefaultHub = NewHub(64)

// SetDefaultHub replaces the package default hub.
func SetDefaultHub(h *Hub) {
	if h != nil {
		DefaultHub = h
	}
}

// SetDurableSink registers a function receiving a durable copy of every
// published notification except ephemeral typing signals.
func (h *Hub) SetDurableSink(fn func(models.Notification)) {
	h.mu.Lock()
	h.sink = fn
	h.mu.Unlock()
}

// Register adds a live connection for userID and returns its subscriber.
func (h *Hub) Register(userID string) *Subscriber {
	s := &Subscriber{
		UserID: userID,
		ConnID: utils.GenConnID(),
		ch:     make(chan models.Notification, h.bufSize),
		hub:    h,
		rooms:  make(map[string]bool),
	}
	h.mu.Lock()
	h.subs[s.ConnID] = s
	h.mu.Unlock()
	logger.Debug("subscriber_registered", "user", userID, "conn", s.ConnID)
	return s
}

// Unregister removes a connection and closes its stream. The closed
// flag is flipped under the subscriber's mutex before the close, so an
// in-flight Publish either completes its send first or sees the flag.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	s, ok := h.subs[connID]
	if ok {
		delete(h.subs, connID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	logger.Debug("subscriber_unregistered", "user", s.UserID, "conn", connID)
}

// JoinRoom subscribes a connection to a room's notifications. Membership
// checks belong to the caller.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.RLock()
	s := h.subs[connID]
	h.mu.RUnlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	s.rooms[roomID] = true
	s.mu.Unlock()
}

// LeaveRoom unsubscribes a connection from a room.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.RLock()
	s := h.subs[connID]
	h.mu.RUnlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// Publish fans n out to the current subscribers of n.Room. It must be
// called only after the triggering write committed. The room's publish
// stripe is held across sequence assignment and delivery so order
// within a room matches publish (and therefore commit) order.
func (h *Hub) Publish(n models.Notification) {
	if n.TS == 0 {
		n.TS = time.Now().UTC().UnixNano()
	}

	unlock := h.pub.Lock(n.Room)
	defer unlock()

	h.seqMu.Lock()
	h.roomSeq[n.Room]++
	n.Seq = h.roomSeq[n.Room]
	h.seqMu.Unlock()

	h.mu.RLock()
	targets := make([]*Subscriber, 0, 8)
	for _, s := range h.subs {
		if s.follows(n.Room) {
			targets = append(targets, s)
		}
	}
	sink := h.sink
	h.mu.RUnlock()

	for _, s := range targets {
		delivered, open := s.send(n)
		switch {
		case delivered:
			atomic.AddUint64(&h.delivered, 1)
			telemetry.NotificationsDelivered.Inc()
		case open:
			// slow consumer: drop rather than block the commit path
			atomic.AddUint64(&h.dropped, 1)
			telemetry.NotificationsDropped.Inc()
			logger.Warn("notification_dropped", "room", n.Room, "conn", s.ConnID, "kind", string(n.Kind))
		}
	}

	if sink != nil && n.Kind != models.EventTyping {
		sink(n)
	}
}

// Delivered returns the count of notifications handed to subscriber
// buffers since start.
func (h *Hub) Delivered() uint64 { return atomic.LoadUint64(&h.delivered) }

// Dropped returns the count of notifications dropped on full buffers.
func (h *Hub) Dropped() uint64 { return atomic.LoadUint64(&h.dropped) }

// Subscribers returns the number of live connections.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish publishes on the default hub.
func Publish(n models.Notification) { DefaultHub.Publish(n) }
