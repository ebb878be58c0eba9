package ingest

import (
	"sync"
	"time"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// DeadLetter is one entry in the dead-letter queue: a reading that exhausted
// its write retry budget.
type DeadLetter struct {
	Reading     domain.NormalizedReading
	ErrorText   string
	RecordedAt  time.Time
	RetryCount  int
}

// DLQ is a bounded, single-writer-guarded dead-letter queue. Inserting past
// capacity evicts the oldest entry.
type DLQ struct {
	mu       sync.Mutex
	entries  []DeadLetter
	capacity int
}

// NewDLQ builds an empty DLQ with the given bounded capacity.
func NewDLQ(capacity int) *DLQ {
	return &DLQ{capacity: capacity}
}

// Push appends an entry, evicting the oldest if the queue is at capacity.
func (q *DLQ) Push(entry DeadLetter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Len reports the current queue depth.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the current queue contents, holding the lock
// only long enough to copy — callers replaying the DLQ should call this
// once and then re-push any entries that still fail.
func (q *DLQ) Snapshot() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.entries))
	copy(out, q.entries)
	return out
}

// Remove drops entries whose Reading.SensorID+Timestamp match any of the
// given successfully-replayed entries.
func (q *DLQ) Remove(replayed []DeadLetter) {
	if len(replayed) == 0 {
		return
	}
	type dlqKey struct {
		sensorID  string
		timestamp int64
	}
	done := make(map[dlqKey]bool, len(replayed))
	key := func(d DeadLetter) dlqKey { return dlqKey{sensorID: d.Reading.SensorID.String(), timestamp: d.Reading.Timestamp} }
	for _, d := range replayed {
		done[key(d)] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.entries[:0]
	for _, e := range q.entries {
		if !done[key(e)] {
			remaining = append(remaining, e)
		}
	}
	q.entries = remaining
}
