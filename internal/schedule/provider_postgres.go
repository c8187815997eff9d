package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// PostgresProvider reads route and departure definitions from the schedule
// tables maintained by the route-authoring tooling.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider wraps an open database handle.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Route returns the route definition for routeID with its ordered stops.
func (p *PostgresProvider) Route(ctx context.Context, routeID id.RouteID) (*Route, error) {
	var r Route
	var routeStr string
	var ticketRequired sql.NullBool
	err := p.db.QueryRowContext(ctx, `
		SELECT route_id, name, ticket_required
		FROM routes
		WHERE route_id = $1 AND is_active
	`, routeID.String()).Scan(&routeStr, &r.Name, &ticketRequired)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find route: %w: %w", sentinel.ErrUnavailable, err)
	}
	r.ID = id.RouteID(routeStr)
	if ticketRequired.Valid {
		r.TicketRequired = &ticketRequired.Bool
	}

	stops, err := p.routeStops(ctx, routeID)
	if err != nil {
		return nil, err
	}
	r.Stops = stops
	return &r, nil
}

func (p *PostgresProvider) routeStops(ctx context.Context, routeID id.RouteID) ([]Stop, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name, sequence, latitude, longitude
		FROM route_stops
		WHERE route_id = $1
		ORDER BY sequence
	`, routeID.String())
	if err != nil {
		return nil, fmt.Errorf("query stops: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.Name, &s.Sequence, &s.Location.Latitude, &s.Location.Longitude); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// Snapshot returns all active routes and the departure table.
func (p *PostgresProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT route_id FROM routes WHERE is_active ORDER BY route_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var routeIDs []id.RouteID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan route id: %w", err)
		}
		routeIDs = append(routeIDs, id.RouteID(s))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	for _, rid := range routeIDs {
		r, err := p.Route(ctx, rid)
		if err != nil {
			return nil, err
		}
		snap.Routes = append(snap.Routes, *r)
	}

	depRows, err := p.db.QueryContext(ctx, `
		SELECT route_id, time_of_day, estimated_duration_minutes
		FROM departures
		ORDER BY route_id, time_of_day
	`)
	if err != nil {
		return nil, fmt.Errorf("query departures: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var d Departure
		var routeStr string
		var minutes int
		if err := depRows.Scan(&routeStr, &d.TimeOfDay, &minutes); err != nil {
			return nil, fmt.Errorf("scan departure: %w", err)
		}
		d.RouteID = id.RouteID(routeStr)
		d.EstimatedDuration = time.Duration(minutes) * time.Minute
		snap.Departures = append(snap.Departures, d)
	}
	return snap, depRows.Err()
}
