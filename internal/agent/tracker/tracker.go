package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fieldtrace/presence-api/internal/agent/apiclient"
	"github.com/fieldtrace/presence-api/internal/agent/locator"
)

// State is the tracker lifecycle position.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingPermission State = "awaiting_permission"
	// StateTracking means the capture loop is running on its interval.
	StateTracking State = "tracking"
	// StateDenied is terminal: position access was refused and the loop will
	// not retry on its own.
	StateDenied  State = "denied"
	StateStopped State = "stopped"
)

// TickStatus labels the most recent capture attempt.
type TickStatus string

const (
	TickNone      TickStatus = ""
	TickCapturing TickStatus = "capturing"
	TickSent      TickStatus = "sent"
	TickError     TickStatus = "error"
)

// Sender delivers one fix upstream. *apiclient.Client satisfies it.
type Sender interface {
	SendSample(ctx context.Context, subjectID string, fix locator.Fix) (apiclient.Sample, error)
}

// Config parametrizes one capture loop.
type Config struct {
	SubjectID string

	// Interval between capture ticks.
	Interval time.Duration
	// AcquireTimeout bounds one position acquisition.
	AcquireTimeout time.Duration
	// MaxFixAge is the oldest cached fix a tick will accept.
	MaxFixAge time.Duration

	Logger *log.Logger
}

// Status is a point-in-time snapshot of the loop.
type Status struct {
	State      State
	Tick       TickStatus
	LastFix    *locator.Fix
	LastSentAt time.Time
	LastError  string
}

// Tracker runs the capture loop: an immediate tick on start, then one tick
// per interval until Stop. A failed tick records an error and the loop keeps
// going; only a permission refusal ends it.
type Tracker struct {
	loc  locator.Locator
	send Sender
	cfg  Config

	mu         sync.Mutex
	state      State
	tick       TickStatus
	lastFix    *locator.Fix
	lastSentAt time.Time
	lastErr    error
	inFlight   bool

	// wg tracks tick goroutines so Stop can wait them out; deniedC carries a
	// permission refusal from a tick back to the loop.
	wg      sync.WaitGroup
	deniedC chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func New(loc locator.Locator, send Sender, cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Tracker{
		loc:     loc,
		send:    send,
		cfg:     cfg,
		state:   StateIdle,
		deniedC: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the capture loop. It returns immediately; the loop runs until
// Stop, ctx cancellation or a permission refusal.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return errors.New("tracker already started")
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.state = StateAwaitingPermission
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

// Stop halts the loop. Pending ticks are dropped; an in-flight tick is
// abandoned via context cancellation. Stop blocks until the loop goroutine
// and any in-flight tick have exited and is safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	<-t.done
}

// Status returns a consistent snapshot of the loop.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		State:      t.state,
		Tick:       t.tick,
		LastSentAt: t.lastSentAt,
	}
	if t.lastFix != nil {
		fix := *t.lastFix
		s.LastFix = &fix
	}
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
	}
	return s
}

// Done is closed when the loop has exited, whether by Stop, context
// cancellation or a permission refusal.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	defer func() {
		t.mu.Lock()
		if t.state != StateDenied {
			t.state = StateStopped
		}
		t.mu.Unlock()
	}()
	// Runs before the state defer: a still-running tick may yet flip the state
	// to denied, and Stop promises no tick survives it.
	defer t.wg.Wait()

	// First capture happens immediately and synchronously; it doubles as the
	// permission check.
	t.beginTick()
	if denied := t.runTick(ctx); denied {
		return
	}
	if ctx.Err() != nil {
		return
	}
	t.setState(StateTracking)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.deniedC:
			return
		case <-ticker.C:
			if !t.beginTick() {
				// The previous capture is still running; skip this tick rather
				// than stacking a second one behind it.
				t.cfg.Logger.Printf("tracker: capture still in flight, skipping tick")
				continue
			}
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				if t.runTick(ctx) {
					select {
					case t.deniedC <- struct{}{}:
					default:
					}
				}
			}()
		}
	}
}

// beginTick claims the single tick slot. It reports false when a capture is
// already in flight.
func (t *Tracker) beginTick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight {
		return false
	}
	t.inFlight = true
	t.tick = TickCapturing
	return true
}

// runTick performs one capture+send attempt and reports whether position
// access was refused. The caller must have claimed the tick slot via
// beginTick.
func (t *Tracker) runTick(ctx context.Context) (denied bool) {
	defer func() {
		t.mu.Lock()
		t.inFlight = false
		t.mu.Unlock()
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, t.cfg.AcquireTimeout)
	fix, err := t.loc.Acquire(acquireCtx, locator.Options{
		Timeout:      t.cfg.AcquireTimeout,
		MaximumAge:   t.cfg.MaxFixAge,
		HighAccuracy: true,
	})
	cancel()
	if err != nil {
		if errors.Is(err, locator.ErrPermissionDenied) {
			t.cfg.Logger.Printf("tracker: position access denied, stopping")
			t.mu.Lock()
			t.state = StateDenied
			t.tick = TickError
			t.lastErr = err
			t.mu.Unlock()
			return true
		}
		t.failTick("acquire position", err)
		return false
	}

	t.mu.Lock()
	t.lastFix = &fix
	t.mu.Unlock()

	if _, err := t.send.SendSample(ctx, t.cfg.SubjectID, fix); err != nil {
		t.failTick("send sample", err)
		return false
	}

	t.mu.Lock()
	t.tick = TickSent
	t.lastSentAt = time.Now()
	t.lastErr = nil
	t.mu.Unlock()
	return false
}

func (t *Tracker) failTick(what string, err error) {
	t.cfg.Logger.Printf("tracker: %s: %v", what, err)
	t.mu.Lock()
	t.tick = TickError
	t.lastErr = err
	t.mu.Unlock()
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}
