package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []domain.NormalizedReading
	fail    func(domain.NormalizedReading) bool
}

func (f *fakeWriter) WriteReading(_ context.Context, r domain.NormalizedReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil && f.fail(r) {
		return errors.New("simulated write failure")
	}
	f.written = append(f.written, r)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

type fakeBus struct {
	mu        sync.Mutex
	published []domain.DomainEvent
}

func (b *fakeBus) Publish(e domain.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func testReading(sensor string, ts int64) domain.NormalizedReading {
	return domain.NewReading(domain.SensorID("safecast", sensor), ts, 37.4, 141.0, 0.2, 0, domain.QualityValid, "safecast")
}

func TestPipelineDeduplicatesWithinWindow(t *testing.T) {
	// Scenario 2 from the spec.
	writer := &fakeWriter{}
	bus := &fakeBus{}
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	cfg.BatchTimeout = 10 * time.Millisecond
	cfg.DedupWindow = 60 * time.Second

	p := New(cfg, writer, bus, zerolog.Nop())

	now := time.Now().UTC()
	r := testReading("dup-sensor", now.Unix())
	assert.False(t, p.dedup.Seen(r.SensorID, r.Timestamp, now))
	assert.True(t, p.dedup.Seen(r.SensorID, r.Timestamp, now.Add(30*time.Second)))
}

func TestPipelineWriteBatchOpensCircuitBreakerAndFillsDLQ(t *testing.T) {
	// Scenario 5 from the spec.
	writer := &fakeWriter{fail: func(domain.NormalizedReading) bool { return true }}
	cfg := DefaultConfig()
	cfg.CircuitBreakerThreshold = 5

	p := New(cfg, writer, &fakeBus{}, zerolog.Nop())

	batch := make([]domain.NormalizedReading, 5)
	for i := range batch {
		batch[i] = testReading("breaker-sensor", int64(i))
	}
	p.writeBatch(batch)
	assert.Equal(t, CircuitOpen, p.breaker.State())
	require.Equal(t, 5, p.dlq.Len())

	second := make([]domain.NormalizedReading, 10)
	for i := range second {
		second[i] = testReading("breaker-sensor-2", int64(i))
	}
	p.writeBatch(second)
	assert.Equal(t, 15, p.dlq.Len())
}

func TestPipelineCircuitBreakerRecoversAfterResetTimeout(t *testing.T) {
	writer := &fakeWriter{}
	cfg := DefaultConfig()
	cfg.CircuitBreakerReset = 1 * time.Millisecond

	p := New(cfg, writer, &fakeBus{}, zerolog.Nop())
	p.breaker.RecordFailure(time.Now())
	p.breaker.RecordFailure(time.Now())
	p.breaker.RecordFailure(time.Now())
	p.breaker.RecordFailure(time.Now())
	p.breaker.RecordFailure(time.Now())
	require.Equal(t, CircuitOpen, p.breaker.State())

	time.Sleep(5 * time.Millisecond)
	assert.True(t, p.breaker.Allow(time.Now()))
	p.breaker.RecordSuccess()
	assert.Equal(t, CircuitClosed, p.breaker.State())
}

func TestPipelineReplayDLQRemovesSucceeded(t *testing.T) {
	writer := &fakeWriter{}
	p := New(DefaultConfig(), writer, &fakeBus{}, zerolog.Nop())

	p.dlq.Push(DeadLetter{Reading: testReading("replay-sensor", 1), ErrorText: "boom"})
	require.Equal(t, 1, p.dlq.Len())

	succeeded, failed := p.ReplayDLQ(context.Background())
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, p.dlq.Len())
	assert.Equal(t, 1, writer.count())
}

func TestPipelineStats(t *testing.T) {
	p := New(DefaultConfig(), &fakeWriter{}, &fakeBus{}, zerolog.Nop())
	p.dlq.Push(DeadLetter{Reading: testReading("stats-sensor", 1)})
	stats := p.Stats()
	assert.Equal(t, 1, stats.DLQDepth)
	assert.Equal(t, CircuitClosed, stats.CircuitState)
}
