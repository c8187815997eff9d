// Package dedupe collapses repeated detections of the same passenger into a
// single boarding. A bounded cache with expiry, never a blocking wait.
package dedupe

import (
	"context"
	"time"
)

// Cache records recently seen keys for a cooldown window.
type Cache interface {
	// SeenAndRecord atomically checks whether key was recorded within the
	// window and records it if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string, window time.Duration) (bool, error)

	// Forget drops key so the next detection counts again. Used when a
	// recorded boarding failed to apply downstream.
	Forget(ctx context.Context, key string) error
}
