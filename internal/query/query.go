package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
	"github.com/tworjaga/cherenkov-engine/internal/storage"
)

// maxClockSkew bounds how far into the future a reading's timestamp may
// sit before write_reading rejects it.
const maxClockSkew = 60 * time.Second

// Aggregation is the requested bucket granularity for query_range.
type Aggregation string

const (
	AggregationRaw    Aggregation = "raw"
	AggregationMinute Aggregation = "minute"
	Aggregation5Min   Aggregation = "5min"
	AggregationHour   Aggregation = "hour"
	AggregationDay    Aggregation = "day"
)

var bucketWidthSeconds = map[Aggregation]int64{
	AggregationMinute: 60,
	Aggregation5Min:   300,
	AggregationHour:   3600,
	AggregationDay:    86400,
}

// RangePoint is one row of a query_range result: either a raw reading
// (count=1) or an aggregated bucket.
type RangePoint struct {
	SensorID  uuid.UUID `json:"sensor_id"`
	Timestamp int64     `json:"timestamp_at_bucket_start"`
	Count     int       `json:"count"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Avg       float64   `json:"avg"`
}

// GeoResult is one row of a query_geo result: the latest reading for a
// sensor found within the search radius.
type GeoResult struct {
	Reading    domain.NormalizedReading `json:"reading"`
	DistanceKM float64                  `json:"distance_km"`
}

// Health is the aggregated health_check response.
type Health struct {
	Hot      bool `json:"hot"`
	Warm     bool `json:"warm"`
	Cold     bool `json:"cold"`
	Cache    bool `json:"cache"`
	Degraded bool `json:"degraded"`
}

// Storage is the tier-routing facade the query layer composes into
// write_reading/get_sensor_latest/query_range/query_geo. *storage.Tiered
// satisfies this in production; tests supply a fake.
type Storage interface {
	WriteReading(ctx context.Context, r domain.NormalizedReading) error
	SensorLatest(ctx context.Context, sensorID uuid.UUID) (domain.NormalizedReading, bool, error)
	HotRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error)
	WarmRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error)
	ColdRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error)
	HotByCellPrefix(ctx context.Context, cellPrefix string, start, end int64) ([]domain.NormalizedReading, error)
	WarmByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64, start, end int64) ([]domain.NormalizedReading, error)
	StoreEvent(ctx context.Context, e domain.DomainEvent) error
	InsertAnomaly(ctx context.Context, a domain.Anomaly) error
	GetAnomalies(ctx context.Context, since int64, limit int) ([]domain.Anomaly, error)
	ListSensors(ctx context.Context) ([]uuid.UUID, error)
	HealthCheck(ctx context.Context) storage.TierHealth
}

// Service is the query layer (C5): the single entry point the HTTP API,
// the ingestion pipeline (write_reading), and the anomaly/correlation
// engines (store_event) all call through.
type Service struct {
	storage Storage
	cache   storage.Cache
	log     zerolog.Logger

	hotRetention  time.Duration
	warmRetention time.Duration
}

// New builds the query layer over the tiered storage facade.
func New(tiered Storage, cache storage.Cache, hotRetention, warmRetention time.Duration, log zerolog.Logger) *Service {
	return &Service{
		storage:       tiered,
		cache:         cache,
		hotRetention:  hotRetention,
		warmRetention: warmRetention,
		log:           log.With().Str("component", "query").Logger(),
	}
}

// WriteReading routes a normalized reading to its tier. It is the seam the
// ingestion pipeline's Writer interface satisfies.
func (s *Service) WriteReading(ctx context.Context, r domain.NormalizedReading) error {
	if time.Unix(r.Timestamp, 0).After(time.Now().Add(maxClockSkew)) {
		return fmt.Errorf("%w: reading timestamp %d is more than %s in the future", ErrInvalidInput, r.Timestamp, maxClockSkew)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.storage.WriteReading(ctx, r); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// GetSensorLatest returns the most recent reading for a sensor across
// cache, hot, and warm tiers in that order.
func (s *Service) GetSensorLatest(ctx context.Context, sensorID uuid.UUID) (domain.NormalizedReading, error) {
	r, ok, err := s.storage.SensorLatest(ctx, sensorID)
	if err != nil {
		return domain.NormalizedReading{}, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	if !ok {
		return domain.NormalizedReading{}, ErrNotFound
	}
	return r, nil
}

// QueryRange implements query_range: cache → hot slice → warm slice (if
// the window straddles the hot cutoff) → concatenate, sort, cache, return.
func (s *Service) QueryRange(ctx context.Context, sensorIDs []uuid.UUID, startTS, endTS int64, agg Aggregation) ([]RangePoint, error) {
	if endTS < startTS {
		return nil, fmt.Errorf("%w: end_ts before start_ts", ErrInvalidInput)
	}

	cacheKey := rangeCacheKey(sensorIDs, startTS, endTS, agg)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			var cached []RangePoint
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	now := time.Now()
	hotCutoff := now.Add(-s.hotRetention).Unix()
	warmCutoff := now.Add(-s.warmRetention).Unix()

	var all []domain.NormalizedReading

	hotStart := startTS
	if hotCutoff > hotStart {
		hotStart = hotCutoff
	}
	if hotStart <= endTS {
		hot, err := s.storage.HotRange(ctx, hotStart, endTS)
		if err != nil {
			s.log.Warn().Err(err).Msg("hot tier range query failed, returning partial result")
		} else {
			all = append(all, hot...)
		}
	}

	if startTS < hotCutoff && endTS > warmCutoff {
		warmStart := startTS
		if warmCutoff > warmStart {
			warmStart = warmCutoff
		}
		warmEnd := endTS
		if hotCutoff < warmEnd {
			warmEnd = hotCutoff
		}
		if warmStart <= warmEnd {
			warm, err := s.storage.WarmRange(ctx, warmStart, warmEnd)
			if err != nil {
				s.log.Warn().Err(err).Msg("warm tier range query failed, returning partial result")
			} else {
				all = append(all, warm...)
			}
		}
	}

	if startTS < warmCutoff {
		if _, err := s.storage.ColdRange(ctx, startTS, warmCutoff); errors.Is(err, storage.ErrNotYetImplemented) {
			return nil, ErrNotYetImplemented
		}
	}

	all = filterBySensor(all, sensorIDs)
	points := aggregate(all, agg)

	if s.cache != nil {
		if raw, err := json.Marshal(points); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, queryResultCacheTTL)
		}
	}
	return points, nil
}

const queryResultCacheTTL = 300 * time.Second

func filterBySensor(readings []domain.NormalizedReading, sensorIDs []uuid.UUID) []domain.NormalizedReading {
	if len(sensorIDs) == 0 {
		return readings
	}
	wanted := make(map[uuid.UUID]struct{}, len(sensorIDs))
	for _, id := range sensorIDs {
		wanted[id] = struct{}{}
	}
	out := readings[:0:0]
	for _, r := range readings {
		if _, ok := wanted[r.SensorID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// aggregate buckets readings by sensor and calendar-aligned bucket width,
// producing {timestamp_at_bucket_start, count, min, max, avg}. Raw
// aggregation passes readings through with count=1.
func aggregate(readings []domain.NormalizedReading, agg Aggregation) []RangePoint {
	if agg == "" || agg == AggregationRaw {
		points := make([]RangePoint, len(readings))
		for i, r := range readings {
			points[i] = RangePoint{
				SensorID: r.SensorID, Timestamp: r.Timestamp, Count: 1,
				Min: r.DoseRateMicrosieverts, Max: r.DoseRateMicrosieverts, Avg: r.DoseRateMicrosieverts,
			}
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
		return points
	}

	width := bucketWidthSeconds[agg]
	if width == 0 {
		width = bucketWidthSeconds[AggregationHour]
	}

	type key struct {
		sensor uuid.UUID
		bucket int64
	}
	buckets := make(map[key]*RangePoint)
	order := make([]key, 0)

	for _, r := range readings {
		bucketStart := (r.Timestamp / width) * width
		k := key{sensor: r.SensorID, bucket: bucketStart}
		p, ok := buckets[k]
		if !ok {
			p = &RangePoint{SensorID: r.SensorID, Timestamp: bucketStart, Min: r.DoseRateMicrosieverts, Max: r.DoseRateMicrosieverts}
			buckets[k] = p
			order = append(order, k)
		}
		p.Count++
		p.Avg += r.DoseRateMicrosieverts
		if r.DoseRateMicrosieverts < p.Min {
			p.Min = r.DoseRateMicrosieverts
		}
		if r.DoseRateMicrosieverts > p.Max {
			p.Max = r.DoseRateMicrosieverts
		}
	}

	points := make([]RangePoint, 0, len(order))
	for _, k := range order {
		p := buckets[k]
		if p.Count > 0 {
			p.Avg /= float64(p.Count)
		}
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points
}

// QueryGeo implements query_geo: geohash-prefix candidate fetch from hot,
// bounding-box candidate fetch from warm, exact haversine filter, one
// latest reading per sensor inside the radius.
func (s *Service) QueryGeo(ctx context.Context, centerLat, centerLon, radiusKM float64, startTS, endTS int64) ([]GeoResult, error) {
	if radiusKM <= 0 {
		return nil, fmt.Errorf("%w: radius_km must be positive", ErrInvalidInput)
	}

	prefix := Geohash(centerLat, centerLon, 4)
	hotCandidates, err := s.storage.HotByCellPrefix(ctx, prefix, startTS, endTS)
	if err != nil {
		s.log.Warn().Err(err).Msg("hot geo candidate fetch failed")
	}

	minLat, maxLat, minLon, maxLon := BoundingBox(centerLat, centerLon, radiusKM)
	warmCandidates, err := s.storage.WarmByBoundingBox(ctx, minLat, maxLat, minLon, maxLon, startTS, endTS)
	if err != nil {
		s.log.Warn().Err(err).Msg("warm geo candidate fetch failed")
	}

	latest := make(map[uuid.UUID]domain.NormalizedReading)
	for _, r := range append(hotCandidates, warmCandidates...) {
		if HaversineKM(centerLat, centerLon, r.Latitude, r.Longitude) > radiusKM {
			continue
		}
		if existing, ok := latest[r.SensorID]; !ok || r.Timestamp > existing.Timestamp {
			latest[r.SensorID] = r
		}
	}

	results := make([]GeoResult, 0, len(latest))
	for _, r := range latest {
		results = append(results, GeoResult{
			Reading:    r,
			DistanceKM: HaversineKM(centerLat, centerLon, r.Latitude, r.Longitude),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].DistanceKM < results[j].DistanceKM })
	return results, nil
}

// StoreEvent implements store_event: warm tier only (audit log).
func (s *Service) StoreEvent(ctx context.Context, e domain.DomainEvent) error {
	if err := s.storage.StoreEvent(ctx, e); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// StoreAnomaly persists a detected anomaly to the warm-tier audit table.
func (s *Service) StoreAnomaly(ctx context.Context, a domain.Anomaly) error {
	if err := s.storage.InsertAnomaly(ctx, a); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// GetAnomalies implements get_anomalies(since, limit): anomalies detected
// at or after since, newest first, capped at limit.
func (s *Service) GetAnomalies(ctx context.Context, since int64, limit int) ([]domain.Anomaly, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	anomalies, err := s.storage.GetAnomalies(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return anomalies, nil
}

// ListSensors implements list_sensors: every sensor_id with at least one
// reading in the hot or warm tier.
func (s *Service) ListSensors(ctx context.Context) ([]uuid.UUID, error) {
	sensors, err := s.storage.ListSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return sensors, nil
}

// HealthCheck implements health_check: probes each tier and the cache
// independently.
func (s *Service) HealthCheck(ctx context.Context) Health {
	th := s.storage.HealthCheck(ctx)
	h := Health{Hot: th.Hot, Warm: th.Warm, Cold: th.Cold, Cache: th.Cache}
	h.Degraded = !h.Hot || !h.Warm
	return h
}

func rangeCacheKey(sensorIDs []uuid.UUID, startTS, endTS int64, agg Aggregation) string {
	h := sha256.New()
	for _, id := range sensorIDs {
		h.Write(id[:])
	}
	fmt.Fprintf(h, "|%d|%d|%s", startTS, endTS, agg)
	return "query:" + hex.EncodeToString(h.Sum(nil))
}
