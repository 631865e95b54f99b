package locator

import (
	"context"
	"errors"
	"time"
)

// Fix is one position observation.
type Fix struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	ObservedAt time.Time
}

// Options bounds one acquisition attempt.
type Options struct {
	// Timeout is the acquisition budget; ErrTimeout past it.
	Timeout time.Duration
	// MaximumAge is the oldest cached fix the caller will accept. Zero means
	// only a fresh fix will do.
	MaximumAge time.Duration
	// HighAccuracy requests the most precise source available.
	HighAccuracy bool
}

var (
	// ErrPermissionDenied means the platform refused position access. Callers
	// should treat it as terminal; retrying will not change the answer.
	ErrPermissionDenied = errors.New("locator: permission denied")
	// ErrTimeout means no fix arrived within Options.Timeout.
	ErrTimeout = errors.New("locator: acquisition timed out")
)

// Locator produces position fixes.
type Locator interface {
	Acquire(ctx context.Context, opts Options) (Fix, error)
}
