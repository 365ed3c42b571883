// Package outbox journals committed notifications durably so offline
// integrations (push senders, indexers) can replay what live fan-out
// delivered best-effort. Producers enqueue into a bounded in-memory
// queue; a worker drains it and persists records under the "outbox:"
// namespace, partitioned by routing key. A cron sweeper expires records
// older than the configured TTL.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/store"
	"parley/pkg/telemetry"
)

// Routing keys partition the journal the way the notification consumers
// are partitioned: message traffic and everything else.
const (
	RouteMessage      = "chat.message"
	RouteNotification = "chat.notification"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("outbox queue full")

// Record is one journaled notification as persisted.
type Record struct {
	Route string              `json:"route"`
	TS    int64               `json:"ts"`
	Event models.Notification `json:"event"`
}

// Item wraps a pending record. The payload may be backed by a pooled
// ByteBuffer; the worker must call Done() exactly once per item.
type Item struct {
	Route   string
	TS      int64
	Payload []byte

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases the pooled buffer back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		it.Payload = nil
		itemPool.Put(it)
	})
}

var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer bounds the size of buffers returned to the pool so a
// single oversized event does not pin memory.
var maxPooledBuffer = 256 * 1024

// Queue is a bounded in-memory staging queue in front of the durable
// journal. Safe for concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	written  uint64
}

// NewQueue creates a bounded queue. Capacity must be > 0.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// DefaultQueue is the global queue wired as the fan-out durable sink. It
// can be replaced at startup via SetDefaultQueue.
var DefaultQueue = NewQueue(16 * 1024)

// SetDefaultQueue replaces the package default queue.
func SetDefaultQueue(q *Queue) {
	if q != nil {
		DefaultQueue = q
	}
}

// RouteFor maps an event kind onto its routing key.
func RouteFor(kind models.EventKind) string {
	switch kind {
	case models.EventMessageNew, models.EventMessageEdited, models.EventMessageDeleted:
		return RouteMessage
	default:
		return RouteNotification
	}
}

// TryEnqueue stages n for journaling. The notification is serialized
// into a pooled buffer so the caller's value is not retained. A full
// queue drops the record and returns ErrQueueFull; live delivery has
// already happened by then, so producers treat this as lossy telemetry.
func (q *Queue) TryEnqueue(n models.Notification) error {
	bb := bytebufferpool.Get()
	enc := json.NewEncoder(bb)
	rec := Record{Route: RouteFor(n.Kind), TS: n.TS, Event: n}
	if rec.TS == 0 {
		rec.TS = time.Now().UTC().UnixNano()
	}
	if err := enc.Encode(rec); err != nil {
		bytebufferpool.Put(bb)
		return err
	}

	it := itemPool.Get().(*Item)
	it.Route = rec.Route
	it.TS = rec.TS
	it.Payload = bb.B
	it.buf = bb
	it.once = sync.Once{}

	select {
	case q.ch <- it:
		telemetry.OutboxDepth.Set(float64(len(q.ch)))
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Sink adapts the queue to the fan-out durable-sink signature.
func (q *Queue) Sink(n models.Notification) {
	if err := q.TryEnqueue(n); err != nil {
		logger.Warn("outbox_enqueue_failed", "kind", string(n.Kind), "error", err)
	}
}

// RunWorker drains the queue and persists each record. It exits when
// ctx is cancelled or the queue is closed.
func (q *Queue) RunWorker(ctx context.Context) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			if err := persist(it); err != nil {
				logger.Error("outbox_persist_failed", "route", it.Route, "error", err)
			} else {
				atomic.AddUint64(&q.written, 1)
			}
			it.Done()
			telemetry.OutboxDepth.Set(float64(len(q.ch)))
		case <-ctx.Done():
			return
		}
	}
}

func persist(it *Item) error {
	key := recordKey(it.Route, it.TS, store.NextSeq())
	return store.SaveKey(key, it.Payload)
}

func recordKey(route string, ts int64, seq uint64) string {
	return fmt.Sprintf("outbox:%s:%020d-%06d", route, ts, seq)
}

// CloseAndDrain closes the queue and releases pending items.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the number of staged items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the count of records lost to a full queue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// Written returns the count of records persisted by the worker.
func (q *Queue) Written() uint64 { return atomic.LoadUint64(&q.written) }

// List returns journaled records for a routing key, oldest first.
func List(route string) ([]Record, error) {
	vals, err := store.ScanValues("outbox:" + route + ":")
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		var r Record
		if err := json.Unmarshal(v, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
