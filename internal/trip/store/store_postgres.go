package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sanjeevantech/bustrack/internal/ticket"
	"github.com/sanjeevantech/bustrack/internal/trip/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// PostgresStore persists trips across restarts. A partial unique index on
// (vehicle_id) WHERE state = 'active' backs the one-active-trip-per-vehicle
// invariant at the storage layer as well.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new trip.
func (s *PostgresStore) Create(ctx context.Context, trip *models.Trip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create trip: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trips (
			trip_id, route_id, vehicle_id, state, started_at, ended_at,
			end_reason, current_stop_seq, auto_end_eligible, boarding_count,
			unknown_count, last_activity_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		trip.ID.String(), trip.RouteID.String(), trip.VehicleID.String(),
		string(trip.State), trip.StartedAt, trip.EndedAt,
		string(trip.EndReason), trip.CurrentStopSeq, trip.AutoEndEligible,
		trip.BoardingCount, trip.UnknownCount, trip.LastActivityAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert trip: %w", err)
	}
	if err := writeChildren(ctx, tx, trip); err != nil {
		return err
	}
	return tx.Commit()
}

// Update persists the full aggregate in one transaction.
func (s *PostgresStore) Update(ctx context.Context, trip *models.Trip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update trip: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE trips SET
			state = $2, ended_at = $3, end_reason = $4, current_stop_seq = $5,
			auto_end_eligible = $6, boarding_count = $7, unknown_count = $8,
			last_activity_at = $9
		WHERE trip_id = $1
	`,
		trip.ID.String(), string(trip.State), trip.EndedAt,
		string(trip.EndReason), trip.CurrentStopSeq, trip.AutoEndEligible,
		trip.BoardingCount, trip.UnknownCount, trip.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	if err := writeChildren(ctx, tx, trip); err != nil {
		return err
	}
	return tx.Commit()
}

func writeChildren(ctx context.Context, tx *sql.Tx, trip *models.Trip) error {
	for _, b := range trip.Boardings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trip_boardings (
				trip_id, passenger_key, ticket_status, confidence,
				boarded_at, boarded_seq, alighted_at, alighted_seq, fare
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (trip_id, passenger_key) DO UPDATE SET
				alighted_at = EXCLUDED.alighted_at,
				alighted_seq = EXCLUDED.alighted_seq,
				fare = EXCLUDED.fare
		`,
			trip.ID.String(), b.PassengerKey.String(), string(b.TicketStatus),
			b.Confidence, b.BoardedAt, b.BoardedSeq, b.AlightedAt,
			b.AlightedSeq, b.Fare,
		)
		if err != nil {
			return fmt.Errorf("upsert boarding: %w", err)
		}
	}
	for _, a := range trip.StopArrivals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trip_stop_arrivals (trip_id, sequence, stop_name, arrived_at, missed_gap)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (trip_id, sequence) DO NOTHING
		`, trip.ID.String(), a.Sequence, a.StopName, a.At, a.MissedGap)
		if err != nil {
			return fmt.Errorf("insert stop arrival: %w", err)
		}
	}
	return nil
}

// FindByID returns the trip aggregate.
func (s *PostgresStore) FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	return s.findOne(ctx, `WHERE trip_id = $1`, tripID.String())
}

// FindActiveByVehicle returns the vehicle's active trip.
func (s *PostgresStore) FindActiveByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	return s.findOne(ctx, `WHERE vehicle_id = $1 AND state = 'active'`, vehicleID.String())
}

// FindActiveByRoute returns the newest active trip on the route.
func (s *PostgresStore) FindActiveByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error) {
	return s.findOne(ctx, `WHERE route_id = $1 AND state = 'active' ORDER BY started_at DESC LIMIT 1`, routeID.String())
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Trip, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trip_id, route_id, vehicle_id, state, started_at, ended_at,
			end_reason, current_stop_seq, auto_end_eligible, boarding_count,
			unknown_count, last_activity_at
		FROM trips `+where, arg)

	trip, err := scanTrip(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var trip models.Trip
	var tripID, routeID, vehicleID, state, endReason string
	var endedAt sql.NullTime
	err := row.Scan(&tripID, &routeID, &vehicleID, &state, &trip.StartedAt,
		&endedAt, &endReason, &trip.CurrentStopSeq, &trip.AutoEndEligible,
		&trip.BoardingCount, &trip.UnknownCount, &trip.LastActivityAt)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trip: %w", err)
	}

	parsed, err := id.ParseTripID(tripID)
	if err != nil {
		return nil, err
	}
	trip.ID = parsed
	trip.RouteID = id.RouteID(routeID)
	trip.VehicleID = id.VehicleID(vehicleID)
	trip.State = models.State(state)
	trip.EndReason = models.EndReason(endReason)
	if endedAt.Valid {
		trip.EndedAt = &endedAt.Time
	}
	trip.Boardings = make(map[id.PassengerKey]*models.Boarding)
	return &trip, nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, trip *models.Trip) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT passenger_key, ticket_status, confidence, boarded_at,
			boarded_seq, alighted_at, alighted_seq, fare
		FROM trip_boardings
		WHERE trip_id = $1
		ORDER BY boarded_at
	`, trip.ID.String())
	if err != nil {
		return fmt.Errorf("query boardings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Boarding
		var key, status string
		var alightedAt sql.NullTime
		var alightedSeq sql.NullInt64
		var fare sql.NullFloat64
		if err := rows.Scan(&key, &status, &b.Confidence, &b.BoardedAt,
			&b.BoardedSeq, &alightedAt, &alightedSeq, &fare); err != nil {
			return fmt.Errorf("scan boarding: %w", err)
		}
		b.PassengerKey = id.PassengerKey(key)
		b.TicketStatus = ticket.Status(status)
		if alightedAt.Valid {
			b.AlightedAt = &alightedAt.Time
		}
		if alightedSeq.Valid {
			seq := int(alightedSeq.Int64)
			b.AlightedSeq = &seq
		}
		if fare.Valid {
			f := fare.Float64
			b.Fare = &f
		}
		trip.Boardings[b.PassengerKey] = &b
	}
	if err := rows.Err(); err != nil {
		return err
	}

	arrivalRows, err := s.db.QueryContext(ctx, `
		SELECT sequence, stop_name, arrived_at, missed_gap
		FROM trip_stop_arrivals
		WHERE trip_id = $1
		ORDER BY sequence
	`, trip.ID.String())
	if err != nil {
		return fmt.Errorf("query stop arrivals: %w", err)
	}
	defer arrivalRows.Close()

	for arrivalRows.Next() {
		var a models.StopArrival
		if err := arrivalRows.Scan(&a.Sequence, &a.StopName, &a.At, &a.MissedGap); err != nil {
			return fmt.Errorf("scan stop arrival: %w", err)
		}
		trip.StopArrivals = append(trip.StopArrivals, a)
	}
	return arrivalRows.Err()
}

// Recent lists trips by start time descending.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*models.Trip, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, route_id, vehicle_id, state, started_at, ended_at,
			end_reason, current_stop_seq, auto_end_eligible, boarding_count,
			unknown_count, last_activity_at
		FROM trips
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, trip := range trips {
		if err := s.loadChildren(ctx, trip); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
