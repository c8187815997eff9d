package schedule

import (
	"context"
	"sort"
	"sync"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// InMemoryProvider serves a fixed schedule from memory.
type InMemoryProvider struct {
	mu         sync.RWMutex
	routes     map[id.RouteID]*Route
	departures []Departure
}

// NewInMemoryProvider creates an empty provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{routes: make(map[id.RouteID]*Route)}
}

// SetRoute loads or replaces a route definition. Stops are normalized to
// sequence order.
func (p *InMemoryProvider) SetRoute(r Route) {
	sort.Slice(r.Stops, func(i, j int) bool { return r.Stops[i].Sequence < r.Stops[j].Sequence })
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[r.ID] = &r
}

// SetDepartures replaces the departure table.
func (p *InMemoryProvider) SetDepartures(deps []Departure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.departures = append([]Departure(nil), deps...)
}

// Route returns the route definition for routeID.
func (p *InMemoryProvider) Route(ctx context.Context, routeID id.RouteID) (*Route, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r, ok := p.routes[routeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	cp.Stops = append([]Stop(nil), r.Stops...)
	return &cp, nil
}

// Snapshot returns all routes and departures.
func (p *InMemoryProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := &Snapshot{Departures: append([]Departure(nil), p.departures...)}
	for _, r := range p.routes {
		cp := *r
		cp.Stops = append([]Stop(nil), r.Stops...)
		snap.Routes = append(snap.Routes, cp)
	}
	sort.Slice(snap.Routes, func(i, j int) bool { return snap.Routes[i].ID < snap.Routes[j].ID })
	return snap, nil
}
