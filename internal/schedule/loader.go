package schedule

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a schedule snapshot from a JSON file. Used to seed the
// in-memory provider on deployments that run without a database.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse schedule file %s: %w", path, err)
	}
	for i, r := range snap.Routes {
		if r.ID.IsNil() {
			return nil, fmt.Errorf("schedule file %s: route %d has no route_id", path, i)
		}
	}
	return &snap, nil
}

// SeedProvider loads the snapshot into an in-memory provider.
func SeedProvider(p *InMemoryProvider, snap *Snapshot) {
	for _, r := range snap.Routes {
		p.SetRoute(r)
	}
	p.SetDepartures(snap.Departures)
}
