package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
	"github.com/couchcryptid/vigil-feed-service/internal/store"
)

// DefaultSnapshotInterval is the time between snapshot refreshes.
const DefaultSnapshotInterval = 5 * time.Minute

// Reconciler periodically replaces the store with a fresh snapshot.
type Reconciler struct {
	fetcher  SnapshotFetcher
	session  *session.Session
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// NewReconciler creates a Reconciler. A nil clock uses the real one.
func NewReconciler(f SnapshotFetcher, s *session.Session, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Reconciler{
		fetcher:  f,
		session:  s,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a snapshot has been installed.
func (r *Reconciler) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no snapshot installed yet")
	}
	return nil
}

// Run refreshes once immediately and then on every tick until ctx is
// cancelled. Failed refreshes are logged and leave the store as it was.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started", "interval", r.interval)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	_ = r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			_ = r.Refresh(ctx)
		}
	}
}

// Refresh fetches one snapshot and installs it. Nothing is applied unless
// all three parts arrived.
func (r *Reconciler) Refresh(ctx context.Context) error {
	start := r.clock.Now()

	snap, err := r.fetcher.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.metrics.SnapshotRefreshes.WithLabelValues("error").Inc()
		r.logger.Error("snapshot refresh failed, keeping previous state", "error", err)
		return err
	}

	var res store.ReplaceResult
	err = r.session.Do(ctx, func(m *session.Model) error {
		res = m.Store.ReplaceAll(snap.Events, snap.Points, snap.Stats)
		return nil
	})
	if err != nil {
		return err
	}

	for _, rej := range res.Rejected {
		r.logger.Warn("snapshot record rejected", "error", rej)
	}
	r.metrics.SnapshotRejected.Add(float64(len(res.Rejected)))
	r.metrics.SnapshotRefreshes.WithLabelValues("success").Inc()
	r.metrics.SnapshotDuration.Observe(r.clock.Since(start).Seconds())
	r.ready.Store(true)

	r.logger.Info("snapshot installed",
		"events", res.Events,
		"points", res.Points,
		"rejected", len(res.Rejected),
		"stats_trusted", res.StatsTrusted,
	)
	return nil
}
