package watermark

import (
	"context"
	"sync"
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// InMemoryStore keeps watermarks in a map guarded by a single mutex. Device
// fleets are small (a handful of boards per vehicle), so striping is not
// worth the complexity here.
type InMemoryStore struct {
	mu         sync.Mutex
	watermarks map[id.DeviceID]time.Time
}

// NewInMemoryStore creates an empty watermark store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{watermarks: make(map[id.DeviceID]time.Time)}
}

// Admit checks and advances the device watermark.
func (s *InMemoryStore) Admit(ctx context.Context, device id.DeviceID, ts time.Time, skew time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.watermarks[device]
	if ok && ts.Before(current.Add(-skew)) {
		return false, nil
	}
	if !ok || ts.After(current) {
		s.watermarks[device] = ts
	}
	return true, nil
}

// Last returns the current watermark for the device.
func (s *InMemoryStore) Last(ctx context.Context, device id.DeviceID) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.watermarks[device]
	return ts, ok, nil
}
