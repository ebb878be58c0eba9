package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
	"github.com/tworjaga/cherenkov-engine/internal/ingest/sources"
)

// Writer is the storage-facing seam the pipeline writes through. It is
// satisfied by the tiered storage facade in internal/storage; the pipeline
// depends only on this narrow interface to avoid an import cycle and to keep
// the retry/circuit-breaker logic testable against a fake.
type Writer interface {
	WriteReading(ctx context.Context, r domain.NormalizedReading) error
}

// Publisher is the event-bus-facing seam; satisfied by *EventBus.
type Publisher interface {
	Publish(e domain.DomainEvent)
}

// Config holds the pipeline's tunables, all with the defaults from the
// configuration surface.
type Config struct {
	ChannelBufferSize       int
	BatchSize               int
	BatchTimeout            time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerReset     time.Duration
	DLQMaxSize              int
	DedupWindow             time.Duration
	DedupHighWaterMark      int
}

// DefaultConfig returns the pipeline defaults enumerated in the
// configuration surface.
func DefaultConfig() Config {
	return Config{
		ChannelBufferSize:       10000,
		BatchSize:               100,
		BatchTimeout:            1 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerReset:     30 * time.Second,
		DLQMaxSize:              10000,
		DedupWindow:             60 * time.Second,
		DedupHighWaterMark:      10000,
	}
}

// Stats is a snapshot of pipeline health, returned by the admin port.
type Stats struct {
	DLQDepth       int
	CircuitState   CircuitState
	DedupCacheSize int
}

// Pipeline fans in N source adapters into a single durable stream of tiered
// storage writes (C3), enforcing backpressure, deduplication, retries,
// circuit breaking, and a dead-letter queue.
type Pipeline struct {
	cfg     Config
	writer  Writer
	bus     Publisher
	log     zerolog.Logger
	dedup   *Deduplicator
	breaker *CircuitBreaker
	dlq     *DLQ
	queue   chan domain.NormalizedReading
	batcher *Batcher[domain.NormalizedReading]

	wg sync.WaitGroup
}

// New builds a Pipeline ready to Run.
func New(cfg Config, writer Writer, bus Publisher, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		writer:  writer,
		bus:     bus,
		log:     log,
		dedup:   NewDeduplicator(cfg.DedupWindow, cfg.DedupHighWaterMark),
		breaker: NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerReset),
		dlq:     NewDLQ(cfg.DLQMaxSize),
		queue:   make(chan domain.NormalizedReading, cfg.ChannelBufferSize),
	}
	p.batcher = NewBatcher(cfg.BatchSize, cfg.BatchTimeout, p.writeBatch)
	return p
}

// Run starts every registered adapter as an independent polling task and the
// single writer loop, blocking until ctx is cancelled and every adapter task
// and the writer have finished.
func (p *Pipeline) Run(ctx context.Context) {
	client := sources.NewHTTPClient()

	for _, src := range sources.Registry {
		p.wg.Add(1)
		go p.runAdapter(ctx, src, client)
	}

	p.wg.Add(1)
	go p.runWriter(ctx)

	p.wg.Wait()
}

// runAdapter polls one source on its own interval until ctx is cancelled,
// pushing each normalized reading onto the bounded intake queue. A full queue
// blocks the send, which is the pipeline's only backpressure point: it
// naturally slows this adapter's next poll, never the writer.
func (p *Pipeline) runAdapter(ctx context.Context, src sources.Source, client *http.Client) {
	defer p.wg.Done()

	log := p.log.With().Str("source", src.Name).Logger()
	ticker := time.NewTicker(src.PollInterval)
	defer ticker.Stop()

	poll := func() {
		fetchCtx, cancel := context.WithTimeout(ctx, sources.DefaultTimeout)
		defer cancel()
		readings, err := src.Fetch(fetchCtx, client, log)
		if err != nil {
			log.Warn().Err(err).Msg("adapter fetch failed")
			return
		}
		for _, r := range readings {
			if err := r.Validate(); err != nil {
				log.Debug().Err(err).Msg("rejecting reading failing invariants")
				continue
			}
			select {
			case p.queue <- r:
			case <-ctx.Done():
				return
			}
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (p *Pipeline) runWriter(ctx context.Context) {
	defer p.wg.Done()
	maintenance := time.NewTicker(5 * time.Minute)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			p.batcher.Stop()
			return
		case r, ok := <-p.queue:
			if !ok {
				p.batcher.Stop()
				return
			}
			if p.dedup.Seen(r.SensorID, r.Timestamp, time.Now().UTC()) {
				continue
			}
			p.batcher.Add(r)
		case <-maintenance.C:
			p.log.Debug().
				Int("dlq_depth", p.dlq.Len()).
				Str("circuit_state", string(p.breaker.State())).
				Int("dedup_cache_size", p.dedup.Size()).
				Msg("pipeline maintenance tick")
		}
	}
}

// writeBatch is the Batcher flush callback: it attempts each reading's write
// under the circuit breaker, retrying transient failures with linear
// backoff, and shunts final failures (or an open breaker) to the DLQ. It
// never panics: the inner loop's only failure mode is a returned error.
func (p *Pipeline) writeBatch(batch []domain.NormalizedReading) {
	ctx := context.Background()
	now := time.Now()

	if !p.breaker.Allow(now) {
		for _, r := range batch {
			p.dlq.Push(DeadLetter{Reading: r, ErrorText: "circuit breaker open", RecordedAt: now})
		}
		return
	}

	for _, r := range batch {
		if err := p.writeWithRetry(ctx, r); err != nil {
			p.breaker.RecordFailure(now)
			p.dlq.Push(DeadLetter{Reading: r, ErrorText: err.Error(), RecordedAt: now, RetryCount: 3})
			continue
		}
		p.breaker.RecordSuccess()
		if p.bus != nil {
			p.bus.Publish(domain.NewDomainEvent(domain.EventNewReading, r.SensorID.String(), map[string]any{
				"sensor_id":    r.SensorID.String(),
				"dose_rate":    r.DoseRateMicrosieverts,
				"quality_flag": string(r.QualityFlag),
				"latitude":     r.Latitude,
				"longitude":    r.Longitude,
				"source":       r.Source,
			}, r.Timestamp))
		}
	}
}

func (p *Pipeline) writeWithRetry(ctx context.Context, r domain.NormalizedReading) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := p.writer.WriteReading(ctx, r); err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
			continue
		}
		return nil
	}
	return fmt.Errorf("write failed after 3 attempts: %w", lastErr)
}

// ReplayDLQ re-attempts writes for every dead-lettered entry, removing
// whichever succeed.
func (p *Pipeline) ReplayDLQ(ctx context.Context) (succeeded, failed int) {
	snapshot := p.dlq.Snapshot()
	var replayed []DeadLetter
	for _, entry := range snapshot {
		if err := p.writer.WriteReading(ctx, entry.Reading); err != nil {
			failed++
			continue
		}
		replayed = append(replayed, entry)
		succeeded++
	}
	p.dlq.Remove(replayed)
	return succeeded, failed
}

// Stats reports pipeline health for the admin port.
func (p *Pipeline) Stats() Stats {
	return Stats{
		DLQDepth:       p.dlq.Len(),
		CircuitState:   p.breaker.State(),
		DedupCacheSize: p.dedup.Size(),
	}
}
