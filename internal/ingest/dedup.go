package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Deduplicator tracks the last-seen timestamp per sensor. A reading is a
// duplicate if it arrives within dedupWindow of the last seen reading for
// that sensor and its own timestamp does not advance past it. The cache
// self-prunes once it grows past highWaterMark entries, evicting anything
// older than the window.
type Deduplicator struct {
	mu            sync.Mutex
	lastSeen      map[uuid.UUID]dedupEntry
	window        time.Duration
	highWaterMark int
}

type dedupEntry struct {
	timestamp int64 // reading timestamp, seconds since epoch
	seenAt    time.Time
}

// NewDeduplicator builds a deduplicator with the given window and
// self-pruning high-water mark.
func NewDeduplicator(window time.Duration, highWaterMark int) *Deduplicator {
	return &Deduplicator{
		lastSeen:      make(map[uuid.UUID]dedupEntry),
		window:        window,
		highWaterMark: highWaterMark,
	}
}

// Seen reports whether the reading at (sensorID, timestamp) is a duplicate of
// one already recorded within the dedup window, and records it as seen if
// not. now is injected for testability.
func (d *Deduplicator) Seen(sensorID uuid.UUID, timestamp int64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.lastSeen[sensorID]
	isDuplicate := ok &&
		now.Sub(entry.seenAt) < d.window &&
		timestamp <= entry.timestamp

	if !isDuplicate || timestamp > entry.timestamp {
		d.lastSeen[sensorID] = dedupEntry{timestamp: timestamp, seenAt: now}
	}

	if len(d.lastSeen) > d.highWaterMark {
		d.pruneLocked(now)
	}
	return isDuplicate
}

// Size reports how many sensors are currently tracked.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastSeen)
}

func (d *Deduplicator) pruneLocked(now time.Time) {
	for id, entry := range d.lastSeen {
		if now.Sub(entry.seenAt) >= d.window {
			delete(d.lastSeen, id)
		}
	}
}
