package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
	"github.com/couchcryptid/vigil-feed-service/internal/store"
)

// Reducer applies pushed messages to the session one at a time.
type Reducer struct {
	normalizer Normalizer
	session    *session.Session
	relay      Relay
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewReducer creates a Reducer. relay may be nil.
func NewReducer(n Normalizer, s *session.Session, relay Relay, logger *slog.Logger, metrics *observability.Metrics) *Reducer {
	return &Reducer{
		normalizer: n,
		session:    s,
		relay:      relay,
		logger:     logger,
		metrics:    metrics,
	}
}

// HandleMessage parses, validates, and applies one raw payload. The upsert
// and the arc append happen in the same mutation, and the call returns only
// after both are visible, so callers that invoke it sequentially get strict
// arrival order. A rejected payload returns a *domain.ValidationError and
// changes nothing.
func (r *Reducer) HandleMessage(ctx context.Context, data []byte) error {
	msg, err := domain.ParseStreamMessage(data)
	if err != nil {
		r.reject(err, nil)
		return err
	}
	rec, err := r.normalizer.Normalize(ctx, msg)
	if err != nil {
		r.reject(err, &msg)
		return err
	}

	var res store.UpsertResult
	err = r.session.Do(ctx, func(m *session.Model) error {
		var uerr error
		res, uerr = m.Store.UpsertStreamed(rec)
		if uerr != nil {
			return uerr
		}
		m.Arcs.Push(rec.Arc)
		return nil
	})
	if err != nil {
		if domain.IsValidation(err) {
			r.reject(err, &msg)
		}
		return err
	}

	r.metrics.StreamMessages.WithLabelValues("accepted").Inc()
	r.logger.Debug("stream record applied",
		"id", rec.Event.ID,
		"severity", rec.Event.Severity,
		"country", rec.Point.Country,
		"inserted", res.Inserted,
		"evicted", res.Evicted,
	)

	if r.relay != nil {
		if err := r.relay.Publish(ctx, rec); err != nil {
			r.metrics.RelayErrors.Inc()
			r.logger.Warn("relay publish failed", "error", err, "id", rec.Event.ID)
		}
	}
	return nil
}

func (r *Reducer) reject(err error, msg *domain.StreamMessage) {
	r.metrics.StreamMessages.WithLabelValues("rejected").Inc()
	attrs := []any{"error", err}
	if msg != nil {
		attrs = append(attrs, "dst_ip", msg.DstIP, "severity", msg.Severity)
	}
	r.logger.Warn("stream message rejected", attrs...)
}
