package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
)

// --- mocks ---

type mockFetcher struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	errs  []error
	calls int
}

func (m *mockFetcher) FetchSnapshot(_ context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.Snapshot{}, m.errs[i]
	}
	if i < len(m.snaps) {
		return m.snaps[i], nil
	}
	return m.snaps[len(m.snaps)-1], nil
}

func (m *mockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRelay struct {
	mu   sync.Mutex
	recs []domain.StreamRecord
	err  error
}

func (m *mockRelay) Publish(_ context.Context, rec domain.StreamRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return m.err
}

// --- helpers ---

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// startSession runs a session until the test ends.
func startSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Options{}, slog.Default(), newTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func newNormalizer() *domain.Normalizer {
	return domain.NewNormalizer(domain.DefaultOrigin, nil, domain.NewClassifier(), slog.Default())
}

// pushPayload builds a raw stream message.
func pushPayload(t *testing.T, id, severity string, lat, lon float64) []byte {
	t.Helper()
	msg := map[string]any{
		"id":      id,
		"lat":     lat,
		"lon":     lon,
		"country": "Germany",
		"dst_ip":  "93.184.216.34",
	}
	if severity != "" {
		msg["severity"] = severity
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func point(id string, sev domain.Severity) domain.GeoPoint {
	return domain.GeoPoint{ID: id, Lat: 10, Lng: 20, Severity: sev, Title: "event " + id, Country: "France"}
}

func event(id string, sev domain.Severity) domain.Event {
	return domain.Event{ID: id, Title: "event " + id, Source: "reuters", Severity: sev}
}

// sampleSnapshot returns n events with matching points, cycling through
// the severities, plus consistent stats.
func sampleSnapshot(n int) domain.Snapshot {
	sevs := domain.Severities()
	stats := domain.NewStats()
	var snap domain.Snapshot
	for i := range n {
		id := fmt.Sprintf("evt-%d", i)
		sev := sevs[i%len(sevs)]
		snap.Events = append(snap.Events, event(id, sev))
		snap.Points = append(snap.Points, point(id, sev))
		stats.Total++
		stats.Mapped++
		stats.Severity[sev]++
	}
	snap.Stats = &stats
	return snap
}
