package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

// UpsertHotReading writes a single reading into the hot tier. A conflict on
// the (sensor_id, bucket, timestamp) primary key updates dose_rate,
// uncertainty and quality_flag of the existing row in place, so re-delivery
// still leaves exactly one row per key.
func (db *DB) UpsertHotReading(ctx context.Context, r domain.NormalizedReading) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO radiation_readings_hot
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

// HotLatest returns the most recent reading for a sensor in the hot tier.
func (db *DB) HotLatest(ctx context.Context, sensorID uuid.UUID) (domain.NormalizedReading, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_hot
		WHERE sensor_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`, sensorID)
	return scanReading(row)
}

// HotRange returns raw-resolution readings for a sensor-agnostic time window,
// used by query_range's hot-tier slice. Results are ordered by timestamp.
func (db *DB) HotRange(ctx context.Context, start, end int64) ([]domain.NormalizedReading, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_hot
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// HotByCellPrefix returns hot-tier candidates within a geohash cell prefix
// and time window, feeding query_geo before the exact haversine filter.
func (db *DB) HotByCellPrefix(ctx context.Context, cellPrefix string, start, end int64) ([]domain.NormalizedReading, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT sensor_id, bucket, timestamp, latitude, longitude, dose_rate, uncertainty, quality_flag, source, cell_id
		FROM radiation_readings_hot
		WHERE left(cell_id, 4) = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`, cellPrefix, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// HotDistinctSensors returns every sensor_id with at least one hot-tier
// reading, feeding list_sensors alongside its warm-tier twin,
// WarmDistinctSensors.
func (db *DB) HotDistinctSensors(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `SELECT DISTINCT sensor_id FROM radiation_readings_hot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

func scanUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PruneHotOlderThan deletes hot-tier rows older than the cutoff, called by
// the retention sweep. The rows are deleted, not copied to the warm tier.
func (db *DB) PruneHotOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM radiation_readings_hot WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanReading(row pgx.Row) (domain.NormalizedReading, error) {
	var r domain.NormalizedReading
	var qf string
	err := row.Scan(&r.SensorID, &r.Bucket, &r.Timestamp, &r.Latitude, &r.Longitude,
		&r.DoseRateMicrosieverts, &r.Uncertainty, &qf, &r.Source, &r.CellID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NormalizedReading{}, ErrNoRows
	}
	if err != nil {
		return domain.NormalizedReading{}, err
	}
	r.QualityFlag = domain.QualityFlag(qf)
	return r, nil
}

func scanReadings(rows pgx.Rows) ([]domain.NormalizedReading, error) {
	var out []domain.NormalizedReading
	for rows.Next() {
		var r domain.NormalizedReading
		var qf string
		if err := rows.Scan(&r.SensorID, &r.Bucket, &r.Timestamp, &r.Latitude, &r.Longitude,
			&r.DoseRateMicrosieverts, &r.Uncertainty, &qf, &r.Source, &r.CellID); err != nil {
			return nil, err
		}
		r.QualityFlag = domain.QualityFlag(qf)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ErrNoRows is returned by single-row lookups that found nothing in this
// tier. It is a tier-local signal — callers translate it into the query
// layer's typed not-found error once all tiers have been exhausted.
var ErrNoRows = errors.New("database: no matching row in this tier")
