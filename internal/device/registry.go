// Package device tracks the onboard boards through their periodic
// heartbeats. The registry is presence data: it answers "which devices are
// alive and what firmware do they run", nothing more. Trip state never
// depends on it.
package device

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mssola/useragent"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Heartbeat is one check-in from a board.
type Heartbeat struct {
	DeviceID  id.DeviceID
	VehicleID id.VehicleID
	// UserAgent is the firmware identification string sent with the
	// heartbeat, e.g. "bustrack-cam/1.4 (ESP32-S3)".
	UserAgent string
	RemoteIP  string
	At        time.Time
}

// Device is the registry's view of one board.
type Device struct {
	ID              id.DeviceID  `json:"device_id"`
	VehicleID       id.VehicleID `json:"vehicle_id"`
	Firmware        string       `json:"firmware,omitempty"`
	FirmwareVersion string       `json:"firmware_version,omitempty"`
	Platform        string       `json:"platform,omitempty"`
	RemoteIP        string       `json:"remote_ip,omitempty"`
	FirstSeenAt     time.Time    `json:"first_seen_at"`
	LastSeenAt      time.Time    `json:"last_seen_at"`
	HeartbeatCount  int          `json:"heartbeat_count"`
}

// Registry keeps the device fleet in memory. Presence data does not survive
// a restart and does not need to: boards heartbeat every few minutes and the
// registry rebuilds itself.
type Registry struct {
	mu      sync.RWMutex
	devices map[id.DeviceID]*Device
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		devices: map[id.DeviceID]*Device{},
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record applies a heartbeat and returns the updated device view.
func (r *Registry) Record(hb Heartbeat) *Device {
	at := hb.At
	if at.IsZero() {
		at = r.clock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[hb.DeviceID]
	if !ok {
		d = &Device{ID: hb.DeviceID, FirstSeenAt: at}
		r.devices[hb.DeviceID] = d
		r.logger.Info("device registered",
			"device_id", hb.DeviceID,
			"vehicle_id", hb.VehicleID,
		)
	}
	d.VehicleID = hb.VehicleID
	d.RemoteIP = hb.RemoteIP
	d.LastSeenAt = at
	d.HeartbeatCount++
	if hb.UserAgent != "" {
		ua := useragent.New(hb.UserAgent)
		name, version := ua.Browser()
		d.Firmware = name
		d.FirmwareVersion = version
		d.Platform = ua.Platform()
	}

	snapshot := *d
	return &snapshot
}

// List returns all known devices ordered by ID.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		snapshot := *d
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Silent returns devices that have not checked in within the window,
// ordered by how long they have been quiet.
func (r *Registry) Silent(window time.Duration) []*Device {
	cutoff := r.clock().Add(-window)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Device
	for _, d := range r.devices {
		if d.LastSeenAt.Before(cutoff) {
			snapshot := *d
			out = append(out, &snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.Before(out[j].LastSeenAt) })
	return out
}
