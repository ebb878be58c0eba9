package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// UpsertWarmReading writes a single reading into the warm tier.
func (db *DB) UpsertWarmReading(ctx context.Context, r domain.NormalizedReading) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO radiation_readings_warm
			(sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sensor_id, bucket, timestamp) DO UPDATE SET
			dose_rate = EXCLUDED.dose_rate,
			uncertainty = EXCLUDED.uncertainty,
			quality_flag = EXCLUDED.quality_flag
	`,
		r.SensorID, r.Bucket, r.Timestamp, r.Latitude, r.Longitude,
		r.DoseRateMicrosieverts, r.Uncertainty, string(r.QualityFlag), r.Source, r.CellID,
	)
	return err
}

// WarmLatest returns the most recent reading for a sensor in the warm tier.
func (db *DB) WarmLatest(ctx context.Context, sensorID uuid.UUID) (domain.NormalizedReading, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_warm
		WHERE sensor_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`, sensorID)
	return scanReading(row)
}

// WarmRange returns raw-resolution readings for a time window. The query
// layer is responsible for any bucket aggregation requested by the caller —
// this keeps count/min/max/avg semantics in one place instead of splitting
// them between SQL and Go.
func (db *DB) WarmRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_warm
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// WarmByBoundingBox returns warm-tier candidates inside a lat/lon bounding
// box and time window, feeding query_geo's second leg.
func (db *DB) WarmByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64, start, end int64) ([]domain.NormalizedReading, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_warm
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
			AND timestamp >= $5 AND timestamp <= $6
		ORDER BY timestamp ASC
	`, minLat, maxLat, minLon, maxLon, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// PruneWarmOlderThan deletes warm-tier rows older than the cutoff, called by
// the retention sweep. The rows are deleted, not copied to the cold archive.
func (db *DB) PruneWarmOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM radiation_readings_warm WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertAnomaly records an anomaly in the warm tier's audit table.
func (db *DB) InsertAnomaly(ctx context.Context, a domain.Anomaly) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO anomalies (anomaly_id, sensor_id, severity, z_score, dose_rate, baseline, algorithm, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (anomaly_id) DO NOTHING
	`, a.AnomalyID, a.SensorID, string(a.Severity), a.ZScore, a.DoseRate, a.Baseline, a.Algorithm, a.DetectedAt)
	return err
}

// GetAnomalies returns anomalies detected at or after since, newest first,
// capped at limit rows.
func (db *DB) GetAnomalies(ctx context.Context, since int64, limit int) ([]domain.Anomaly, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT anomaly_id, sensor_id, severity, z_score, dose_rate, baseline, algorithm, detected_at
		FROM anomalies
		WHERE detected_at >= $1
		ORDER BY detected_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Anomaly
	for rows.Next() {
		var a domain.Anomaly
		var severity string
		if err := rows.Scan(&a.AnomalyID, &a.SensorID, &severity, &a.ZScore, &a.DoseRate, &a.Baseline, &a.Algorithm, &a.DetectedAt); err != nil {
			return nil, err
		}
		a.Severity = domain.Severity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}

// WarmDistinctSensors returns every sensor_id with at least one warm-tier
// reading, feeding list_sensors alongside HotDistinctSensors' hot-tier twin.
func (db *DB) WarmDistinctSensors(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `SELECT DISTINCT sensor_id FROM radiation_readings_warm`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// StoreEvent persists a domain event to the warm-tier audit log. Duplicate
// event_id inserts are ignored — event delivery may be at-least-once.
func (db *DB) StoreEvent(ctx context.Context, e domain.DomainEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO domain_events (event_id, event_type, aggregate_id, payload, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID, string(e.EventType), e.AggregateID, payload, e.Timestamp)
	return err
}
