package reaper

import (
	"context"
	"fmt"
	"time"

	"fundingportal/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Retention is how long expired or revoked sessions are kept before deletion.
const Retention = 24 * time.Hour

const runTimeout = 4 * time.Minute

// SessionPurger deletes sessions that expired or were revoked before cutoff.
type SessionPurger interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper periodically removes stale session rows.
type Reaper struct {
	sessions SessionPurger
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger
	cron     *cron.Cron
}

func New(sessions SessionPurger, m *metrics.Metrics, log zerolog.Logger, now func() time.Time) *Reaper {
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		sessions: sessions,
		metrics:  m,
		now:      now,
		log:      log.With().Str("component", "reaper").Logger(),
	}
}

// RunOnce deletes every session that expired or was revoked more than Retention ago.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-Retention)
	n, err := r.sessions.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	r.metrics.ObserveSessionsPurged(n)
	return n, nil
}

// Start schedules RunOnce. Overlapping runs are skipped.
func (r *Reaper) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("session purge failed")
			return
		}
		r.log.Info().Int64("deleted", n).Msg("purged stale sessions")
	})
	if err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	r.cron = c
	c.Start()
	r.log.Info().Str("schedule", schedule).Msg("session reaper started")
	return nil
}

// Stop halts scheduling and waits for a running purge to finish or ctx to end.
func (r *Reaper) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
