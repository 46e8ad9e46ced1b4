package pgstore

// schema is applied statement by statement by EnsureSchema.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS activities (
	activity_id    TEXT PRIMARY KEY,
	owner_id       BIGINT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	activity_type  TEXT NOT NULL DEFAULT 'ride',
	date           TIMESTAMPTZ,
	distance       DOUBLE PRECISION NOT NULL DEFAULT 0,
	active_time    DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_time   DOUBLE PRECISION,
	elevation_gain DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_work     BIGINT,
	max_power      INTEGER,
	average_power  INTEGER,
	data           BYTEA,
	data_key       TEXT NOT NULL DEFAULT '',
	laps_data      BYTEA,
	last_modified  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS activities_owner_date_idx ON activities (owner_id, date)`,
	`CREATE TABLE IF NOT EXISTS historical_stats (
	user_id            BIGINT NOT NULL,
	period_type        TEXT NOT NULL,
	period_id          TEXT NOT NULL,
	distance           DOUBLE PRECISION NOT NULL DEFAULT 0,
	moving_time        DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_time       DOUBLE PRECISION NOT NULL DEFAULT 0,
	elevation_gain     DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_work         BIGINT NOT NULL DEFAULT 0,
	activity_count     INTEGER NOT NULL DEFAULT 0,
	max_distance       DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_moving_time    DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_elevation_gain DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_power          INTEGER NOT NULL DEFAULT 0,
	max_speed          DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_updated       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, period_type, period_id)
)`,
	`CREATE TABLE IF NOT EXISTS user_power_curves (
	user_id    BIGINT PRIMARY KEY,
	curves     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}
