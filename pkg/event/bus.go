package event

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSubscriberBuffer is the default channel depth per subscriber.
const DefaultSubscriberBuffer = 64

// Bus fans events out to subscribers. Dispatch stamps the sequence
// number and timestamp. All methods are safe for concurrent use; one
// bus is shared by every monitor loop in the process.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	nextSub     int
	buffer      int
	logger      *slog.Logger

	sequence atomic.Uint64
}

// Subscriber is one registered consumer of bus events.
type Subscriber struct {
	ID     string
	Events chan *Event
}

// NewBus creates a bus with the default per-subscriber buffer.
func NewBus(logger *slog.Logger) *Bus {
	return NewBusWithBuffer(logger, DefaultSubscriberBuffer)
}

// NewBusWithBuffer creates a bus with a custom per-subscriber buffer depth.
func NewBusWithBuffer(logger *slog.Logger, buffer int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		logger:      logger.With("component", "event_bus"),
	}
}

// Subscribe registers a new consumer and returns it. The caller owns
// draining Subscriber.Events until Unsubscribe.
func (b *Bus) Subscribe(id string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id == "" {
		b.nextSub++
		id = "sub-" + strconv.Itoa(b.nextSub)
	}
	sub := &Subscriber{
		ID:     id,
		Events: make(chan *Event, b.buffer),
	}
	b.subscribers[id] = sub
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.Events)
	}
}

// Dispatch stamps and delivers an event to all subscribers. A
// subscriber whose channel is full has the event dropped rather than
// blocking the playback thread.
func (b *Bus) Dispatch(e *Event) {
	if e == nil {
		return
	}
	e.Sequence = b.sequence.Add(1)
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Events <- e:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"subscriber", sub.ID,
				"event", string(e.Type))
		}
	}
}

// Close unsubscribes every consumer.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.Events)
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
