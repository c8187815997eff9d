package store

import (
	"context"
	"sync"

	"github.com/sanjeevantech/bustrack/internal/passenger/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// InMemoryDirectory holds the passenger directory in memory. Used in tests
// and single-node pilots; production points at Postgres.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	passengers map[id.PassengerKey]*models.Passenger
	tickets    map[id.PassengerKey]*models.SeasonTicket
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		passengers: make(map[id.PassengerKey]*models.Passenger),
		tickets:    make(map[id.PassengerKey]*models.SeasonTicket),
	}
}

// Seed loads a passenger and optionally a ticket. Test helper; the tracker
// itself never writes to the directory.
func (d *InMemoryDirectory) Seed(p *models.Passenger, t *models.SeasonTicket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passengers[p.Key] = p
	if t != nil {
		d.tickets[p.Key] = t
	}
}

// FindPassenger resolves a passenger by key.
func (d *InMemoryDirectory) FindPassenger(ctx context.Context, key id.PassengerKey) (*models.Passenger, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.passengers[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ActiveTicket returns the passenger's season ticket, if any.
func (d *InMemoryDirectory) ActiveTicket(ctx context.Context, key id.PassengerKey) (*models.SeasonTicket, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tickets[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	cp.EligibleRoutes = append([]id.RouteID(nil), t.EligibleRoutes...)
	return &cp, nil
}
