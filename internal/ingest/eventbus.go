package ingest

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// EventBus broadcasts DomainEvents to in-process subscribers (C6). Each
// subscriber gets an independent bounded channel; a subscriber that falls
// behind has its oldest undelivered event dropped to make room for the new
// one, and its lag counter incremented, so a slow consumer never blocks
// publishers. A ring buffer retains recent events for replay since a given
// event ID.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriberState
	nextID      uint64

	ringMu   sync.RWMutex
	ring     []domain.DomainEvent
	ringSize int
	ringHead int
}

// EventFilter restricts a subscription to a subset of event types; an empty
// filter matches everything.
type EventFilter struct {
	Types []domain.EventType
}

type subscriberState struct {
	mu     sync.Mutex
	ch     chan domain.DomainEvent
	filter EventFilter
	lag    atomic.Uint64
}

// NewEventBus creates an event bus whose replay ring buffer holds ringSize
// recent events. The capacity argument is not stored: each subscriber's
// channel capacity is the one passed to Subscribe.
func NewEventBus(capacity, ringSize int) *EventBus {
	if capacity <= 0 {
		capacity = 1000
	}
	return &EventBus{
		subscribers: make(map[uint64]*subscriberState),
		ring:        make([]domain.DomainEvent, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns its event channel, a
// cancel function to unregister it, and a lag accessor reporting how many
// events have been dropped for it so far.
func (eb *EventBus) Subscribe(filter EventFilter, capacity int) (<-chan domain.DomainEvent, func(), func() uint64) {
	if capacity <= 0 {
		capacity = 1000
	}
	state := &subscriberState{ch: make(chan domain.DomainEvent, capacity), filter: filter}

	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = state
	eb.mu.Unlock()

	cancel := func() {
		eb.mu.Lock()
		delete(eb.subscribers, id)
		eb.mu.Unlock()
	}
	lag := func() uint64 { return state.lag.Load() }
	return state.ch, cancel, lag
}

// ReplaySince returns buffered events published after lastEventID (or all
// buffered events if lastEventID is the zero UUID), matching filter.
func (eb *EventBus) ReplaySince(lastEventID uuid.UUID, filter EventFilter) []domain.DomainEvent {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []domain.DomainEvent
	found := lastEventID == uuid.Nil

	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.EventID == uuid.Nil {
			continue
		}
		if !found {
			if e.EventID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// Publish fans e out to every matching subscriber and records it in the
// replay ring. Publish itself never blocks: a full subscriber channel has its
// oldest entry evicted (incrementing that subscriber's lag counter) to make
// room for e.
func (eb *EventBus) Publish(e domain.DomainEvent) {
	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = e
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		if !matchesFilter(e, sub.filter) {
			continue
		}
		publishToSubscriber(sub, e)
	}
}

func publishToSubscriber(sub *subscriberState, e domain.DomainEvent) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for {
		select {
		case sub.ch <- e:
			return
		default:
		}
		select {
		case <-sub.ch:
			sub.lag.Add(1)
		default:
			// Channel drained concurrently by the subscriber; retry the send.
		}
	}
}

func matchesFilter(e domain.DomainEvent, f EventFilter) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.EventType {
			return true
		}
	}
	return false
}
