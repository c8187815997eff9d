// Package watermark tracks the latest processed timestamp per device so
// replayed or badly reordered reports cannot corrupt trip state.
package watermark

import (
	"context"
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Store admits or rejects event timestamps per device. Implementations must
// serialize Admit calls per device key.
type Store interface {
	// Admit checks ts against the device's watermark. An event older than
	// the watermark by more than skew is rejected (returns false) and the
	// watermark is left untouched. Otherwise the watermark advances to the
	// maximum of ts and its current value and Admit returns true.
	Admit(ctx context.Context, device id.DeviceID, ts time.Time, skew time.Duration) (bool, error)

	// Last returns the current watermark for the device and whether one
	// exists.
	Last(ctx context.Context, device id.DeviceID) (time.Time, bool, error)
}
