package progress

import (
	"context"
	"encoding/json"
	"sync"

	"ai-bookchat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// subscriberBuffer bounds each subscriber channel. A consumer that falls
	// further behind than this loses intermediate events, never the pipeline.
	subscriberBuffer = 16

	// redisChannel carries progress events between instances.
	redisChannel = "embedding_progress"
)

// Subscription is one listener on the bus, scoped to a single book.
type Subscription struct {
	ID     uuid.UUID
	BookID int64
	C      chan Event
}

// BusStats is a point-in-time snapshot for the ops surface.
type BusStats struct {
	Subscribers int   `json:"subscribers"`
	Books       int   `json:"books"`
	Dropped     int64 `json:"dropped"`
}

// Bus fans progress events out to websocket subscribers. All books share one
// bus; each subscription filters on its book id. Publishing never blocks:
// a full subscriber buffer drops the event. The bus keeps the latest event
// per book so late subscribers start from the current state, and enforces
// that the cumulative processed count never regresses within a run.
//
// When Redis is configured, events are mirrored across instances the same
// way the websocket hub mirrors notifications.
// runWatermark tracks the highest cumulative count seen for a run, keyed to
// its book so Forget can evict runs that never reach a terminal event.
type runWatermark struct {
	bookID    int64
	processed int
}

type Bus struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]*Subscription
	last       map[int64]Event
	watermarks map[uuid.UUID]runWatermark
	dropped    int64

	rdb        *redis.Client
	instanceID uuid.UUID
	logger     logger.ILogger
}

func NewBus(rdb *redis.Client, log logger.ILogger) *Bus {
	return &Bus{
		subs:       make(map[uuid.UUID]*Subscription),
		last:       make(map[int64]Event),
		watermarks: make(map[uuid.UUID]runWatermark),
		rdb:        rdb,
		instanceID: uuid.New(),
		logger:     log,
	}
}

// Subscribe registers a listener for one book. If the bus has already seen
// an event for that book, the subscription's channel is primed with it so
// the consumer doesn't wait for the next tick to learn the current state.
func (b *Bus) Subscribe(bookID int64) *Subscription {
	sub := &Subscription{
		ID:     uuid.New(),
		BookID: bookID,
		C:      make(chan Event, subscriberBuffer),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	if evt, ok := b.last[bookID]; ok {
		sub.C <- evt
	}
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("ProgressBus", "Subscriber registered", map[string]interface{}{"book_id": bookID, "subscription_id": sub.ID})
	}
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.C)
	}
	b.mu.Unlock()
}

// Publish delivers an event to local subscribers and mirrors it to other
// instances through Redis.
func (b *Bus) Publish(evt Event) {
	if !b.ingest(evt) {
		return
	}

	if b.rdb != nil {
		payload, _ := json.Marshal(envelope{InstanceID: b.instanceID.String(), Event: evt})
		b.rdb.Publish(context.Background(), redisChannel, payload)
	}
}

// Snapshot returns the latest event seen for a book.
func (b *Bus) Snapshot(bookID int64) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	evt, ok := b.last[bookID]
	return evt, ok
}

// Forget drops the retained snapshot and run watermarks for a book. Called
// when the book's embeddings are cleared so stale progress doesn't greet new
// subscribers.
func (b *Bus) Forget(bookID int64) {
	b.mu.Lock()
	delete(b.last, bookID)
	// Runs killed before their terminal event would pin their watermark
	// forever.
	for runID, wm := range b.watermarks {
		if wm.bookID == bookID {
			delete(b.watermarks, runID)
		}
	}
	b.mu.Unlock()
}

func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Subscribers: len(b.subs),
		Books:       len(b.last),
		Dropped:     b.dropped,
	}
}

// ingest applies the monotonic guard, updates the snapshot, and fans the
// event out to matching subscribers. It reports whether the event was
// accepted.
func (b *Bus) ingest(evt Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A cumulative count that moves backwards within a run means a publisher
	// bug. Log it and drop the event rather than confusing consumers.
	// Terminal events are exempt: a failure can land with a lower count than
	// the batches that completed before it.
	if wm, ok := b.watermarks[evt.RunID]; ok && evt.Processed < wm.processed && !evt.Terminal() {
		if b.logger != nil {
			b.logger.Warn("ProgressBus", "Dropping non-monotonic progress event", map[string]interface{}{
				"book_id":   evt.BookID,
				"run_id":    evt.RunID,
				"processed": evt.Processed,
				"watermark": wm.processed,
			})
		}
		return false
	}
	if evt.Terminal() {
		delete(b.watermarks, evt.RunID)
	} else {
		b.watermarks[evt.RunID] = runWatermark{bookID: evt.BookID, processed: evt.Processed}
	}

	b.last[evt.BookID] = evt

	for _, sub := range b.subs {
		if sub.BookID != evt.BookID {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			b.dropped++
			if b.logger != nil {
				b.logger.Warn("ProgressBus", "Subscriber buffer full, dropping event", map[string]interface{}{
					"book_id":         evt.BookID,
					"subscription_id": sub.ID,
				})
			}
		}
	}
	return true
}

type envelope struct {
	InstanceID string `json:"instance_id"`
	Event      Event  `json:"event"`
}

// Run consumes the Redis mirror channel and feeds foreign events into the
// local fan-out. It returns immediately when Redis is not configured.
func (b *Bus) Run() {
	if b.rdb == nil {
		return
	}

	ctx := context.Background()
	pubsub := b.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			if b.logger != nil {
				b.logger.Warn("ProgressBus", "Malformed progress payload from Redis", map[string]interface{}{"error": err.Error()})
			}
			continue
		}
		// Our own events were already delivered locally before publishing.
		if env.InstanceID == b.instanceID.String() {
			continue
		}
		b.ingest(env.Event)
	}
}
