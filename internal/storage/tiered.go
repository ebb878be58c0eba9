package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/database"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// ErrNotYetImplemented is returned by any query touching the cold tier. The
// cold tier is append-only today; cold-range queries are a known gap, not a
// silent empty result.
var ErrNotYetImplemented = errors.New("storage: cold tier queries are not yet implemented")

// ErrDroppedNoTier is returned by WriteReading when a reading is older than
// every enabled tier's retention and must be dropped.
var ErrDroppedNoTier = errors.New("storage: reading older than all enabled tiers, dropped")

// Config controls tier routing.
type Config struct {
	HotRetention     time.Duration
	WarmRetention    time.Duration
	EnableColdArchive bool
}

// TierHealth reports a per-tier up/down probe used by the admin health port.
type TierHealth struct {
	Hot   bool
	Warm  bool
	Cold  bool
	Cache bool
}

// Tiered is the C4 facade: it owns write-time age routing across hot, warm,
// and cold, cache population/invalidation, and the tier-level read
// primitives the query layer composes into get_sensor_latest/query_range/
// query_geo. Hot and warm both live in the same Postgres pool as separate
// tables (internal/database); cold is directory-of-JSON-files on local
// disk; the cache sits in front of hot/warm reads.
type Tiered struct {
	db    *database.DB
	cold  *ColdArchive
	cache Cache
	cfg   Config
	log   zerolog.Logger
}

// New builds the tiered facade. cold may be nil when cold archiving is
// disabled; cache may be nil, in which case reads always fall through to
// the tiers.
func New(db *database.DB, cold *ColdArchive, cache Cache, cfg Config, log zerolog.Logger) *Tiered {
	return &Tiered{
		db:    db,
		cold:  cold,
		cache: cache,
		cfg:   cfg,
		log:   log.With().Str("component", "tiered-storage").Logger(),
	}
}

// WriteReading routes a reading to hot, warm, or cold storage by age and
// invalidates any cached entries for its sensor. It implements the ingest
// pipeline's Writer seam.
func (t *Tiered) WriteReading(ctx context.Context, r domain.NormalizedReading) error {
	age := time.Since(time.Unix(r.Timestamp, 0))

	var err error
	switch {
	case age <= t.cfg.HotRetention:
		err = retryWithBackoff(ctx, func() error { return t.db.UpsertHotReading(ctx, r) })
	case age <= t.cfg.WarmRetention:
		err = retryWithBackoff(ctx, func() error { return t.db.UpsertWarmReading(ctx, r) })
	case t.cfg.EnableColdArchive && t.cold != nil:
		err = t.cold.Write(r)
	default:
		t.log.Warn().
			Str("sensor_id", r.SensorID.String()).
			Int64("timestamp", r.Timestamp).
			Msg("reading older than all enabled tiers, dropped")
		return ErrDroppedNoTier
	}
	if err != nil {
		return err
	}

	t.invalidateSensor(ctx, r.SensorID)
	return nil
}

func (t *Tiered) invalidateSensor(ctx context.Context, sensorID uuid.UUID) {
	if t.cache == nil {
		return
	}
	id := sensorID.String()
	if err := t.cache.Delete(ctx, sensorLatestKey(id)); err != nil {
		t.log.Warn().Err(err).Msg("cache invalidation failed, reads may be briefly stale")
	}
	if err := t.cache.InvalidatePrefix(ctx, "query:"); err != nil {
		t.log.Warn().Err(err).Msg("query cache invalidation failed")
	}
}

// SensorLatest implements get_sensor_latest: cache, then hot, then warm.
// On a hot-tier hit the result is cached with a 60s TTL.
func (t *Tiered) SensorLatest(ctx context.Context, sensorID uuid.UUID) (domain.NormalizedReading, bool, error) {
	id := sensorID.String()

	if t.cache != nil {
		if raw, ok, err := t.cache.Get(ctx, sensorLatestKey(id)); err == nil && ok {
			var r domain.NormalizedReading
			if jsonErr := json.Unmarshal(raw, &r); jsonErr == nil {
				return r, true, nil
			}
		}
	}

	r, err := t.db.HotLatest(ctx, sensorID)
	if err == nil {
		t.cachePut(ctx, sensorLatestKey(id), r, sensorLatestTTL)
		return r, true, nil
	}
	if !errors.Is(err, database.ErrNoRows) {
		return domain.NormalizedReading{}, false, fmt.Errorf("hot tier: %w", err)
	}

	r, err = t.db.WarmLatest(ctx, sensorID)
	if err == nil {
		return r, true, nil
	}
	if errors.Is(err, database.ErrNoRows) {
		return domain.NormalizedReading{}, false, nil
	}
	return domain.NormalizedReading{}, false, fmt.Errorf("warm tier: %w", err)
}

func (t *Tiered) cachePut(ctx context.Context, key string, r domain.NormalizedReading, ttl time.Duration) {
	if t.cache == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, key, raw, ttl); err != nil {
		t.log.Warn().Err(err).Msg("cache populate failed")
	}
}

// HotRange returns the raw-resolution hot-tier slice of [start, end].
func (t *Tiered) HotRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	return t.db.HotRange(ctx, start, end)
}

// WarmRange returns the raw-resolution warm-tier slice of [start, end].
func (t *Tiered) WarmRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	return t.db.WarmRange(ctx, start, end)
}

// ColdRange always fails: the cold tier is append-only today.
func (t *Tiered) ColdRange(_ context.Context, _, _ int64) ([]domain.NormalizedReading, error) {
	return nil, ErrNotYetImplemented
}

// HotByCellPrefix and WarmByBoundingBox feed query_geo's two-leg candidate
// fetch ahead of the exact haversine filter.
func (t *Tiered) HotByCellPrefix(ctx context.Context, cellPrefix string, start, end int64) ([]domain.NormalizedReading, error) {
	return t.db.HotByCellPrefix(ctx, cellPrefix, start, end)
}

func (t *Tiered) WarmByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64, start, end int64) ([]domain.NormalizedReading, error) {
	return t.db.WarmByBoundingBox(ctx, minLat, maxLat, minLon, maxLon, start, end)
}

// StoreEvent implements store_event: warm tier only, audit log.
func (t *Tiered) StoreEvent(ctx context.Context, e domain.DomainEvent) error {
	return t.db.StoreEvent(ctx, e)
}

// InsertAnomaly records a detected anomaly in the warm-tier audit table.
func (t *Tiered) InsertAnomaly(ctx context.Context, a domain.Anomaly) error {
	return t.db.InsertAnomaly(ctx, a)
}

// GetAnomalies implements get_anomalies(since, limit) from the warm-tier
// audit table.
func (t *Tiered) GetAnomalies(ctx context.Context, since int64, limit int) ([]domain.Anomaly, error) {
	return t.db.GetAnomalies(ctx, since, limit)
}

// ListSensors implements list_sensors: the union of every sensor_id seen in
// the hot or warm tier.
func (t *Tiered) ListSensors(ctx context.Context) ([]uuid.UUID, error) {
	hot, err := t.db.HotDistinctSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("hot tier: %w", err)
	}
	warm, err := t.db.WarmDistinctSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm tier: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(hot)+len(warm))
	var out []uuid.UUID
	for _, id := range append(hot, warm...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// HealthCheck implements health_check. Hot and warm share one Postgres pool,
// so a single database probe sets both; cold is reported up whenever an
// archive is configured; the cache is probed separately.
func (t *Tiered) HealthCheck(ctx context.Context) TierHealth {
	h := TierHealth{}

	if err := t.db.HealthCheck(ctx); err == nil {
		h.Hot = true
		h.Warm = true
	}

	h.Cold = t.cold != nil

	if t.cache != nil {
		h.Cache = t.cache.HealthCheck(ctx) == nil
	}

	return h
}

// EnforceRetention prunes hot/warm rows that have aged out, delegating to
// the database package's sweep.
func (t *Tiered) EnforceRetention(ctx context.Context, now time.Time) (database.RetentionResult, error) {
	return t.db.EnforceRetention(ctx, now, t.cfg.HotRetention, t.cfg.WarmRetention)
}
