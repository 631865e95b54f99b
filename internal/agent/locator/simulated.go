package locator

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulated is a Locator for dev runs: it random-walks around a base point
// and honors MaximumAge with an internal fix cache, so the agent loop can be
// exercised without real positioning hardware.
type Simulated struct {
	mu   sync.Mutex
	rng  *rand.Rand
	now  func() time.Time
	lat  float64
	lon  float64
	last *Fix
}

func NewSimulated(baseLat, baseLon float64, seed int64) *Simulated {
	return &Simulated{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
		lat: baseLat,
		lon: baseLon,
	}
}

func (s *Simulated) Acquire(ctx context.Context, opts Options) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.last != nil && opts.MaximumAge > 0 && now.Sub(s.last.ObservedAt) <= opts.MaximumAge {
		return *s.last, nil
	}

	// Steps of up to ~10m in either axis.
	const step = 0.0001
	s.lat += (s.rng.Float64()*2 - 1) * step
	s.lon += (s.rng.Float64()*2 - 1) * step

	accuracy := 20.0 + s.rng.Float64()*30
	if opts.HighAccuracy {
		accuracy = 5.0 + s.rng.Float64()*10
	}

	fix := Fix{
		Latitude:   s.lat,
		Longitude:  s.lon,
		Accuracy:   accuracy,
		ObservedAt: now,
	}
	s.last = &fix
	return fix, nil
}

// SetNowForTest overrides the simulated clock.
func (s *Simulated) SetNowForTest(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
