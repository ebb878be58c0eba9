package database

import "context"

// schemaSQL creates the hot and warm tier tables plus the audit tables, per
// the warm schema contract: primary key (sensor_id, bucket, timestamp) with
// secondary indexes on timestamp and on the lat/lon bounding box.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS radiation_readings_hot (
	sensor_id uuid NOT NULL,
	bucket bigint NOT NULL,
	timestamp bigint NOT NULL,
	latitude double precision NOT NULL,
	longitude double precision NOT NULL,
	dose_rate double precision NOT NULL,
	uncertainty double precision NOT NULL DEFAULT 0,
	quality_flag text NOT NULL,
	source text NOT NULL,
	cell_id text NOT NULL,
	PRIMARY KEY (sensor_id, bucket, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_hot_timestamp ON radiation_readings_hot (timestamp);
CREATE INDEX IF NOT EXISTS idx_hot_latlon ON radiation_readings_hot (latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_hot_cell_prefix ON radiation_readings_hot (left(cell_id, 4), timestamp);

CREATE TABLE IF NOT EXISTS radiation_readings_warm (
	sensor_id uuid NOT NULL,
	bucket bigint NOT NULL,
	timestamp bigint NOT NULL,
	latitude double precision NOT NULL,
	longitude double precision NOT NULL,
	dose_rate double precision NOT NULL,
	uncertainty double precision NOT NULL DEFAULT 0,
	quality_flag text NOT NULL,
	source text NOT NULL,
	cell_id text NOT NULL,
	PRIMARY KEY (sensor_id, bucket, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_warm_timestamp ON radiation_readings_warm (timestamp);
CREATE INDEX IF NOT EXISTS idx_warm_latlon ON radiation_readings_warm (latitude, longitude);

CREATE TABLE IF NOT EXISTS anomalies (
	anomaly_id uuid PRIMARY KEY,
	sensor_id uuid NOT NULL,
	severity text NOT NULL,
	z_score double precision NOT NULL,
	dose_rate double precision NOT NULL DEFAULT 0,
	baseline double precision NOT NULL DEFAULT 0,
	algorithm text NOT NULL DEFAULT '',
	detected_at bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomalies_sensor ON anomalies (sensor_id, detected_at);

CREATE TABLE IF NOT EXISTS domain_events (
	event_id uuid PRIMARY KEY,
	event_type text NOT NULL,
	aggregate_id text NOT NULL,
	payload jsonb,
	timestamp bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_domain_events_timestamp ON domain_events (timestamp);
`

// InitSchema applies the full schema on a fresh database. It checks whether
// the "radiation_readings_hot" table exists as a proxy for whether the
// schema has already been loaded.
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'radiation_readings_hot')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh database detected — applying schema")
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	db.log.Info().Msg("schema applied successfully")
	return nil
}
