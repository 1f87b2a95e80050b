// Package session serializes every mutation of the view model through one
// consumer goroutine and publishes immutable frames for readers.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/projector"
	"github.com/couchcryptid/vigil-feed-service/internal/store"
)

// ErrStopped is returned by Do once the session has stopped consuming.
var ErrStopped = errors.New("session stopped")

// DefaultArcCapacity is how many arcs the globe keeps.
const DefaultArcCapacity = 30

// Model is the mutable state a mutation may touch. It is only reachable from
// inside Do.
type Model struct {
	Store  *store.Store
	Arcs   *store.Ring[domain.Arc]
	Filter projector.Filter
}

// Frame is the last completed state, safe to share between readers.
type Frame struct {
	State  store.State
	Arcs   []domain.Arc
	Filter projector.Filter
}

// Options configures a Session.
type Options struct {
	StreamCapacity int
	ArcCapacity    int
	FeedLimit      int
	QueueSize      int
}

type mutation struct {
	fn   func(*Model) error
	done chan error
}

// Session owns the store, the arc buffer, and the filter. Producers submit
// mutations with Do; Run applies them one at a time in submission order.
type Session struct {
	model     Model
	feedLimit int
	queue     chan mutation
	stopped   chan struct{}
	current   atomic.Pointer[Frame]
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a session with an empty store.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if opts.ArcCapacity < 1 {
		opts.ArcCapacity = DefaultArcCapacity
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	s := &Session{
		model: Model{
			Store: store.New(opts.StreamCapacity),
			Arcs:  store.NewRing[domain.Arc](opts.ArcCapacity),
		},
		feedLimit: opts.FeedLimit,
		queue:     make(chan mutation, opts.QueueSize),
		stopped:   make(chan struct{}),
		logger:    logger,
		metrics:   metrics,
	}
	s.publish()
	return s
}

// Run applies queued mutations until ctx is cancelled. It must be started
// exactly once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopping", "reason", ctx.Err())
			return nil
		case m := <-s.queue:
			err := m.fn(&s.model)
			s.publish()
			m.done <- err
		}
	}
}

// Do submits fn and waits until it has been applied. The error is whatever
// fn returned, or a context/stop error if it never ran. A mutation that
// returns an error still publishes, so fn must leave the model consistent.
func (s *Session) Do(ctx context.Context, fn func(*Model) error) error {
	m := mutation{fn: fn, done: make(chan error, 1)}
	select {
	case s.queue <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case err := <-m.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		// Run may have applied it just before exiting.
		select {
		case err := <-m.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Frame returns the most recently completed state.
func (s *Session) Frame() *Frame {
	return s.current.Load()
}

// View projects the current frame through its filter.
func (s *Session) View() projector.View {
	return s.ViewOf(s.Frame())
}

// ViewOf projects f through its own filter. Callers that also read fields
// of f use it to keep the projection and those fields from one frame.
func (s *Session) ViewOf(f *Frame) projector.View {
	return projector.Project(f.State, f.Filter, s.feedLimit)
}

// ToggleFilter flips the active severity and returns the new selection.
func (s *Session) ToggleFilter(ctx context.Context, sev domain.Severity) (projector.Filter, error) {
	var out projector.Filter
	err := s.Do(ctx, func(m *Model) error {
		m.Filter = m.Filter.Toggle(sev)
		out = m.Filter
		return nil
	})
	return out, err
}

// ClearFilter removes any active severity.
func (s *Session) ClearFilter(ctx context.Context) error {
	return s.Do(ctx, func(m *Model) error {
		m.Filter = m.Filter.Clear()
		return nil
	})
}

func (s *Session) publish() {
	f := &Frame{
		State:  s.model.Store.State(),
		Arcs:   s.model.Arcs.Items(),
		Filter: s.model.Filter,
	}
	s.current.Store(f)
	if s.metrics != nil {
		s.metrics.StoreEvents.Set(float64(len(f.State.Events)))
		s.metrics.StorePoints.Set(float64(len(f.State.Points)))
		s.metrics.ArcBufferSize.Set(float64(len(f.Arcs)))
	}
}

// ViewFiltered projects the current frame through f, leaving the session
// filter untouched.
func (s *Session) ViewFiltered(f projector.Filter) projector.View {
	return projector.Project(s.Frame().State, f, s.feedLimit)
}
