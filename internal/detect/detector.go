// Package detect implements the streaming anomaly detector (C7): per-sensor
// online statistics via Welford's algorithm, z-score thresholding, emission
// rate-limiting, and idle-sensor retirement.
package detect

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
)

// Config controls the detector's thresholds, per spec.md §4.6.
type Config struct {
	MinSamples        int
	WarningThreshold  float64
	CriticalThreshold float64
	Cooldown          time.Duration
	IdleRetire        time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSamples:        30,
		WarningThreshold:  3.0,
		CriticalThreshold: 5.0,
		Cooldown:          60 * time.Second,
		IdleRetire:        24 * time.Hour,
	}
}

// EventSource is the subset of the event bus the detector consumes from.
type EventSource interface {
	Subscribe(filter ingest.EventFilter, capacity int) (<-chan domain.DomainEvent, func(), func() uint64)
}

// Publisher is the subset of the event bus the detector publishes to.
type Publisher interface {
	Publish(e domain.DomainEvent)
}

// AnomalyStore persists a detected anomaly to the warm-tier audit log.
type AnomalyStore interface {
	StoreAnomaly(ctx context.Context, a domain.Anomaly) error
}

// CorrelationNotifier is the C8 seam: on every emission, the detector asks
// the correlation engine to evaluate the sensor for cross-source clustering.
type CorrelationNotifier interface {
	NotifyAnomaly(a domain.Anomaly, r domain.NormalizedReading)
}

type sensorState struct {
	mu         sync.Mutex
	stats      welford
	lastUpdate time.Time
	lastEmit   time.Time
}

// Detector maintains one online aggregate per sensor and emits
// AnomalyDetected events when a reading's z-score crosses threshold.
type Detector struct {
	cfg        Config
	publisher  Publisher
	store      AnomalyStore
	correlator CorrelationNotifier
	log        zerolog.Logger

	mu    sync.Mutex
	state map[uuid.UUID]*sensorState
}

// New builds a detector. correlator may be nil if no correlation engine is
// wired (the detector still functions, it just skips the C8 notification).
func New(cfg Config, publisher Publisher, store AnomalyStore, correlator CorrelationNotifier, log zerolog.Logger) *Detector {
	return &Detector{
		cfg:        cfg,
		publisher:  publisher,
		store:      store,
		correlator: correlator,
		log:        log.With().Str("component", "detector").Logger(),
		state:      make(map[uuid.UUID]*sensorState),
	}
}

// Run subscribes to NewReading events and processes them until ctx is
// cancelled. It also runs the idle-retirement sweep on a one-hour ticker.
func (d *Detector) Run(ctx context.Context, source EventSource) {
	events, cancel, _ := source.Subscribe(ingest.EventFilter{Types: []domain.EventType{domain.EventNewReading}}, 1000)
	defer cancel()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			d.handleEvent(ctx, e)
		case <-ticker.C:
			d.retireIdle(time.Now())
		}
	}
}

func (d *Detector) handleEvent(ctx context.Context, e domain.DomainEvent) {
	r, ok := readingFromPayload(e)
	if !ok {
		return
	}
	d.Observe(ctx, r)
}

// Observe feeds a single reading through the detector. It is exported
// directly so the pipeline can call it inline as well as via the bus.
func (d *Detector) Observe(ctx context.Context, r domain.NormalizedReading) {
	state := d.stateFor(r.SensorID)

	state.mu.Lock()
	now := time.Unix(r.Timestamp, 0)
	state.lastUpdate = now

	if r.QualityFlag == domain.QualityValid {
		state.stats.update(r.DoseRateMicrosieverts)
	}

	if state.stats.count < int64(d.cfg.MinSamples) {
		state.mu.Unlock()
		return
	}

	z := state.stats.zScore(r.DoseRateMicrosieverts)
	mean := state.stats.mean

	var severity domain.Severity
	switch {
	case math.Abs(z) >= d.cfg.CriticalThreshold:
		severity = domain.SeverityCritical
	case math.Abs(z) >= d.cfg.WarningThreshold:
		severity = domain.SeverityWarning
	default:
		state.mu.Unlock()
		return
	}

	if !state.lastEmit.IsZero() && now.Sub(state.lastEmit) < d.cfg.Cooldown {
		state.mu.Unlock()
		return
	}
	state.lastEmit = now
	state.mu.Unlock()

	anomaly := domain.Anomaly{
		AnomalyID:  uuid.New(),
		SensorID:   r.SensorID,
		DetectedAt: r.Timestamp,
		DoseRate:   r.DoseRateMicrosieverts,
		Baseline:   mean,
		ZScore:     z,
		Severity:   severity,
		Algorithm:  "welford-zscore",
	}

	if d.store != nil {
		if err := d.store.StoreAnomaly(ctx, anomaly); err != nil {
			d.log.Warn().Err(err).Str("sensor_id", r.SensorID.String()).Msg("failed to persist anomaly")
		}
	}

	if d.publisher != nil {
		d.publisher.Publish(domain.NewDomainEvent(domain.EventAnomalyDetected, r.SensorID.String(), map[string]any{
			"anomaly_id": anomaly.AnomalyID.String(),
			"z_score":    z,
			"severity":   string(severity),
			"dose_rate":  r.DoseRateMicrosieverts,
			"baseline":   mean,
		}, r.Timestamp))
	}

	if d.correlator != nil {
		d.correlator.NotifyAnomaly(anomaly, r)
	}
}

// ActiveSensorCount reports how many sensors currently have a live
// accumulator, for metrics scraping.
func (d *Detector) ActiveSensorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.state)
}

func (d *Detector) stateFor(sensorID uuid.UUID) *sensorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.state[sensorID]
	if !ok {
		s = &sensorState{}
		d.state[sensorID] = s
	}
	return s
}

// retireIdle discards per-sensor accumulators that haven't been updated
// within IdleRetire, to bound memory across a long-running process.
func (d *Detector) retireIdle(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, s := range d.state {
		s.mu.Lock()
		idle := now.Sub(s.lastUpdate)
		s.mu.Unlock()
		if idle > d.cfg.IdleRetire {
			delete(d.state, id)
		}
	}
}

// readingFromPayload reconstructs the minimal NormalizedReading fields the
// detector needs from a NewReading event's payload. The pipeline is
// expected to populate these keys when it publishes the event.
func readingFromPayload(e domain.DomainEvent) (domain.NormalizedReading, bool) {
	sensorIDStr, _ := e.Payload["sensor_id"].(string)
	sensorID, err := uuid.Parse(sensorIDStr)
	if err != nil {
		return domain.NormalizedReading{}, false
	}
	doseRate, _ := e.Payload["dose_rate"].(float64)
	qualityStr, _ := e.Payload["quality_flag"].(string)

	return domain.NormalizedReading{
		SensorID:              sensorID,
		Timestamp:             e.Timestamp,
		DoseRateMicrosieverts: doseRate,
		QualityFlag:           domain.QualityFlag(qualityStr),
	}, true
}
