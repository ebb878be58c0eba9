package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// coldBucketWidth is the span of readings grouped into one archive file.
// A reading lands in the bucket covering its own timestamp; the file is
// flushed to disk, named with the bucket's actual observed min/max
// timestamps, once a reading arrives for the next bucket.
const coldBucketWidth = 24 * time.Hour

// ColdArchive is the append-only, file-per-range cold tier: readings past
// warm_retention_days are written to directory-of-JSON-files storage,
// grouped by day, rather than kept queryable. query_range must fail with
// ErrNotYetImplemented for any window overlapping this tier.
type ColdArchive struct {
	dir string
	log zerolog.Logger

	mu         sync.Mutex
	bucketKey  int64
	pending    []domain.NormalizedReading
	minSeen    int64
	maxSeen    int64
}

// NewColdArchive creates a cold archive rooted at dir, creating it if
// necessary.
func NewColdArchive(dir string, log zerolog.Logger) (*ColdArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cold archive dir: %w", err)
	}
	return &ColdArchive{dir: dir, log: log.With().Str("component", "cold-archive").Logger()}, nil
}

// Write appends a reading to the in-memory batch for its bucket, flushing
// the previous bucket to disk when the reading belongs to a later one.
func (a *ColdArchive) Write(r domain.NormalizedReading) error {
	bucket := r.Timestamp / int64(coldBucketWidth.Seconds())

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) > 0 && bucket != a.bucketKey {
		if err := a.flushLocked(); err != nil {
			return err
		}
	}

	if len(a.pending) == 0 {
		a.bucketKey = bucket
		a.minSeen = r.Timestamp
		a.maxSeen = r.Timestamp
	} else {
		if r.Timestamp < a.minSeen {
			a.minSeen = r.Timestamp
		}
		if r.Timestamp > a.maxSeen {
			a.maxSeen = r.Timestamp
		}
	}
	a.pending = append(a.pending, r)
	return nil
}

// Flush forces the current batch to disk, regardless of bucket completion.
// Called on shutdown so no pending readings are lost.
func (a *ColdArchive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *ColdArchive) flushLocked() error {
	if len(a.pending) == 0 {
		return nil
	}

	name := fmt.Sprintf("readings_%d_%d_%s.json", a.minSeen, a.maxSeen, uuid.New().String())
	path := filepath.Join(a.dir, name)

	data, err := json.Marshal(a.pending)
	if err != nil {
		return fmt.Errorf("marshal cold batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cold archive file %s: %w", name, err)
	}

	a.log.Info().Str("file", name).Int("count", len(a.pending)).Msg("cold archive batch flushed")
	a.pending = nil
	return nil
}
