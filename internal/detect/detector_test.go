package detect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

type fakePublisher struct {
	published []domain.DomainEvent
}

func (f *fakePublisher) Publish(e domain.DomainEvent) {
	f.published = append(f.published, e)
}

type fakeAnomalyStore struct {
	stored []domain.Anomaly
}

func (f *fakeAnomalyStore) StoreAnomaly(_ context.Context, a domain.Anomaly) error {
	f.stored = append(f.stored, a)
	return nil
}

type fakeCorrelator struct {
	notified []domain.Anomaly
}

func (f *fakeCorrelator) NotifyAnomaly(a domain.Anomaly, _ domain.NormalizedReading) {
	f.notified = append(f.notified, a)
}

func reading(sensor uuid.UUID, ts int64, dose float64) domain.NormalizedReading {
	return domain.NewReading(sensor, ts, 37.4, 141.0, dose, 0, domain.QualityValid, "safecast")
}

func TestDetectorSuppressesUntilMinSamples(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeAnomalyStore{}
	d := New(Config{MinSamples: 30, WarningThreshold: 3, CriticalThreshold: 5, Cooldown: time.Minute, IdleRetire: 24 * time.Hour}, pub, store, nil, zerolog.Nop())

	sensor := uuid.New()
	base := time.Now().Unix()
	for i := 0; i < 29; i++ {
		d.Observe(context.Background(), reading(sensor, base+int64(i), 0.1))
	}
	assert.Empty(t, pub.published, "should not emit before min_samples observations")
}

func TestDetectorEmitsWarningAndCriticalByZScore(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeAnomalyStore{}
	cooldown := time.Millisecond
	d := New(Config{MinSamples: 5, WarningThreshold: 2, CriticalThreshold: 4, Cooldown: cooldown, IdleRetire: 24 * time.Hour}, pub, store, nil, zerolog.Nop())

	sensor := uuid.New()
	base := time.Now().Unix()
	// Build a tight baseline around 0.1 so a later spike reads as an outlier.
	// The spike is folded into the aggregate before it is scored, so with n
	// samples its z-score is at most (n-1)/sqrt(n): 20 baseline readings plus
	// the spike give z ≈ 4.36, above the critical threshold of 4.
	for i := 0; i < 20; i++ {
		d.Observe(context.Background(), reading(sensor, base+int64(i), 0.1))
		time.Sleep(2 * time.Millisecond)
	}

	d.Observe(context.Background(), reading(sensor, base+100, 50.0))
	require.NotEmpty(t, pub.published)
	require.Len(t, store.stored, 1)
	assert.Equal(t, domain.SeverityCritical, store.stored[0].Severity)
}

func TestDetectorRateLimitsPerSensor(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeAnomalyStore{}
	d := New(Config{MinSamples: 3, WarningThreshold: 1, CriticalThreshold: 2, Cooldown: time.Hour, IdleRetire: 24 * time.Hour}, pub, store, nil, zerolog.Nop())

	sensor := uuid.New()
	base := time.Now().Unix()
	d.Observe(context.Background(), reading(sensor, base, 0.1))
	d.Observe(context.Background(), reading(sensor, base+1, 0.1))
	d.Observe(context.Background(), reading(sensor, base+2, 0.1))

	d.Observe(context.Background(), reading(sensor, base+3, 10.0))
	d.Observe(context.Background(), reading(sensor, base+4, 10.0))

	assert.Len(t, store.stored, 1, "cooldown should suppress the second emission")
}

func TestDetectorIgnoresInvalidQualityReadingsForBaseline(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeAnomalyStore{}
	d := New(Config{MinSamples: 3, WarningThreshold: 3, CriticalThreshold: 5, Cooldown: time.Minute, IdleRetire: 24 * time.Hour}, pub, store, nil, zerolog.Nop())

	sensor := uuid.New()
	base := time.Now().Unix()
	d.Observe(context.Background(), reading(sensor, base, 0.1))
	d.Observe(context.Background(), reading(sensor, base+1, 0.1))

	suspect := reading(sensor, base+2, 999.0)
	suspect.QualityFlag = domain.QualitySuspect
	d.Observe(context.Background(), suspect)

	state := d.stateFor(sensor)
	state.mu.Lock()
	count := state.stats.count
	state.mu.Unlock()
	assert.Equal(t, int64(2), count, "suspect-quality readings must not pollute the baseline")
}

func TestDetectorNotifiesCorrelatorOnEmission(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeAnomalyStore{}
	corr := &fakeCorrelator{}
	d := New(Config{MinSamples: 2, WarningThreshold: 1, CriticalThreshold: 2, Cooldown: time.Millisecond, IdleRetire: 24 * time.Hour}, pub, store, corr, zerolog.Nop())

	sensor := uuid.New()
	base := time.Now().Unix()
	d.Observe(context.Background(), reading(sensor, base, 0.1))
	d.Observe(context.Background(), reading(sensor, base+1, 0.1))
	d.Observe(context.Background(), reading(sensor, base+2, 50.0))

	require.Len(t, corr.notified, 1)
}

func TestRetireIdleDropsStaleSensorState(t *testing.T) {
	d := New(DefaultConfig(), nil, nil, nil, zerolog.Nop())
	sensor := uuid.New()
	d.Observe(context.Background(), reading(sensor, time.Now().Add(-48*time.Hour).Unix(), 0.1))

	d.mu.Lock()
	d.state[sensor].lastUpdate = time.Now().Add(-48 * time.Hour)
	d.mu.Unlock()

	d.retireIdle(time.Now())

	d.mu.Lock()
	_, exists := d.state[sensor]
	d.mu.Unlock()
	assert.False(t, exists)
}
