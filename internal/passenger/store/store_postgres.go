package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/sanjeevantech/bustrack/internal/passenger/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// PostgresDirectory reads the enrollment tables maintained by the
// registration system.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory wraps an open database handle.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// FindPassenger resolves a passenger by key.
func (d *PostgresDirectory) FindPassenger(ctx context.Context, key id.PassengerKey) (*models.Passenger, error) {
	var p models.Passenger
	var keyStr string
	err := d.db.QueryRowContext(ctx, `
		SELECT passenger_key, display_name, face_signature_ref, created_at
		FROM passengers
		WHERE passenger_key = $1
	`, key.String()).Scan(&keyStr, &p.DisplayName, &p.FaceSignatureRef, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find passenger: %w: %w", sentinel.ErrUnavailable, err)
	}
	p.Key = id.PassengerKey(keyStr)
	return &p, nil
}

// ActiveTicket returns the most recent season ticket for the passenger. The
// schema allows historical tickets; only the newest window matters here.
func (d *PostgresDirectory) ActiveTicket(ctx context.Context, key id.PassengerKey) (*models.SeasonTicket, error) {
	var t models.SeasonTicket
	var keyStr string
	var routes pq.StringArray
	err := d.db.QueryRowContext(ctx, `
		SELECT passenger_key, valid_from, valid_to, eligible_routes
		FROM season_tickets
		WHERE passenger_key = $1
		ORDER BY valid_to DESC
		LIMIT 1
	`, key.String()).Scan(&keyStr, &t.ValidFrom, &t.ValidTo, &routes)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find season ticket: %w: %w", sentinel.ErrUnavailable, err)
	}
	t.PassengerKey = id.PassengerKey(keyStr)
	for _, r := range routes {
		t.EligibleRoutes = append(t.EligibleRoutes, id.RouteID(r))
	}
	return &t, nil
}
