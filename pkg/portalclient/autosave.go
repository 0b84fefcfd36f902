package portalclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAutosaveInterval is how often the wizard form is saved while the user is on steps 1 and 2.
const DefaultAutosaveInterval = 30 * time.Second

const autosaveTimeout = 10 * time.Second

// Autosaver periodically saves the wizard's draft. Failures are logged and
// counted; they never reach the caller.
type Autosaver struct {
	w        *Wizard
	interval time.Duration
	log      zerolog.Logger

	saves    atomic.Int64
	failures atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutosaver creates an autosaver for w. A non-positive interval means DefaultAutosaveInterval.
func NewAutosaver(w *Wizard, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		w:        w,
		interval: interval,
		log:      w.c.log.With().Str("component", "autosave").Logger(),
	}
}

// Start begins ticking until ctx ends or Stop is called. Starting twice is a no-op.
func (a *Autosaver) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.tick(ctx)
			}
		}
	}(a.done)
}

// Stop halts ticking and waits for an in-flight save.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (a *Autosaver) Saves() int64    { return a.saves.Load() }
func (a *Autosaver) Failures() int64 { return a.failures.Load() }

func (a *Autosaver) tick(ctx context.Context) {
	step := a.w.Step()
	if step != StepPersonalInfo && step != StepFinancialDetails {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, autosaveTimeout)
	defer cancel()

	if err := a.w.SaveDraft(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		a.failures.Add(1)
		a.log.Warn().Err(err).Int("step", step).Msg("autosave failed")
		return
	}
	a.saves.Add(1)
	a.log.Debug().Int("step", step).Msg("draft autosaved")
}
