package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the DDL for the tracker's tables, applied idempotently at
// startup. The partial unique index on trips is the storage-level backstop
// for the one-active-trip-per-vehicle rule the service enforces.
const schema = `
CREATE TABLE IF NOT EXISTS trips (
	trip_id           UUID PRIMARY KEY,
	route_id          TEXT NOT NULL,
	vehicle_id        TEXT NOT NULL,
	state             TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	ended_at          TIMESTAMPTZ,
	end_reason        TEXT NOT NULL DEFAULT '',
	current_stop_seq  INTEGER NOT NULL DEFAULT -1,
	auto_end_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	boarding_count    INTEGER NOT NULL DEFAULT 0,
	unknown_count     INTEGER NOT NULL DEFAULT 0,
	last_activity_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS trips_one_active_per_vehicle
	ON trips (vehicle_id) WHERE state = 'active';

CREATE INDEX IF NOT EXISTS trips_route_started
	ON trips (route_id, started_at DESC);

CREATE TABLE IF NOT EXISTS trip_boardings (
	trip_id       UUID NOT NULL REFERENCES trips (trip_id) ON DELETE CASCADE,
	passenger_key TEXT NOT NULL,
	ticket_status TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	boarded_at    TIMESTAMPTZ NOT NULL,
	boarded_seq   INTEGER NOT NULL,
	alighted_at   TIMESTAMPTZ,
	alighted_seq  INTEGER,
	fare          DOUBLE PRECISION,
	PRIMARY KEY (trip_id, passenger_key)
);

CREATE TABLE IF NOT EXISTS trip_stop_arrivals (
	trip_id    UUID NOT NULL REFERENCES trips (trip_id) ON DELETE CASCADE,
	sequence   INTEGER NOT NULL,
	stop_name  TEXT NOT NULL,
	arrived_at TIMESTAMPTZ NOT NULL,
	missed_gap BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (trip_id, sequence)
);

-- Enrollment tables. Writes happen in the registration system; the tracker
-- only reads them.
CREATE TABLE IF NOT EXISTS passengers (
	passenger_key      TEXT PRIMARY KEY,
	display_name       TEXT NOT NULL DEFAULT '',
	face_signature_ref TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS season_tickets (
	ticket_id       BIGSERIAL PRIMARY KEY,
	passenger_key   TEXT NOT NULL REFERENCES passengers (passenger_key) ON DELETE CASCADE,
	valid_from      TIMESTAMPTZ NOT NULL,
	valid_to        TIMESTAMPTZ NOT NULL,
	eligible_routes TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS season_tickets_passenger
	ON season_tickets (passenger_key, valid_to DESC);

-- Schedule tables, authored by the route tooling.
CREATE TABLE IF NOT EXISTS routes (
	route_id        TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	ticket_required BOOLEAN,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS route_stops (
	route_id  TEXT NOT NULL REFERENCES routes (route_id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	sequence  INTEGER NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (route_id, sequence)
);

CREATE TABLE IF NOT EXISTS departures (
	route_id                   TEXT NOT NULL REFERENCES routes (route_id) ON DELETE CASCADE,
	time_of_day                TEXT NOT NULL,
	estimated_duration_minutes INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (route_id, time_of_day)
);
`

// EnsureSchema applies the schema. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
