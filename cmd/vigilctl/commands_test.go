package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/vigil-feed-service/internal/adapter/http"
	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
)

type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

// liveService runs a real API server over a seeded session.
func liveService(t *testing.T) (*apiClient, *bytes.Buffer) {
	t.Helper()
	s := session.New(session.Options{FeedLimit: 2}, slog.Default(), observability.NewMetricsForTesting())
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

	require.NoError(t, s.Do(context.Background(), func(m *session.Model) error {
		var events []domain.Event
		var points []domain.GeoPoint
		for i, sev := range []domain.Severity{"critical", "high", "high", "low", "medium"} {
			id := string(rune('a' + i))
			events = append(events, domain.Event{ID: id, Title: "t", Source: "rss", Severity: sev})
			points = append(points, domain.GeoPoint{ID: id, Lat: float64(i), Lng: float64(i), Severity: sev})
		}
		m.Store.ReplaceAll(events, points, nil)
		return nil
	}))

	srv := httptest.NewServer(httpadapter.NewServer(":0", s, nil, alwaysReady{}, slog.Default()))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	return &apiClient{base: srv.URL, http: srv.Client(), out: &out}, &out
}

func TestCheck_ConsistentService(t *testing.T) {
	c, out := liveService(t)

	require.NoError(t, (&checkCmd{}).Run(c))
	assert.Contains(t, out.String(), "OK")
}

func TestCheck_DetectsMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"map_points":[{"id":"a","lat":1,"lng":1,"severity":"low"}],"feed":[],"visible_count":3,"feed_total":0,"filter":null,"stats":{"total":1,"mapped":1,"severity":{}}}`))
	}))
	defer srv.Close()
	var out bytes.Buffer
	c := &apiClient{base: srv.URL, http: srv.Client(), out: &out}

	err := (&checkCmd{}).Run(c)
	require.ErrorIs(t, err, errInconsistent)
	assert.Contains(t, out.String(), "visible_count 3 != 1 map points")
}

func TestToggleAndView(t *testing.T) {
	c, out := liveService(t)

	require.NoError(t, (&toggleCmd{Severity: "high"}).Run(c))
	assert.Contains(t, out.String(), "filter: high")

	out.Reset()
	require.NoError(t, (&viewCmd{}).Run(c))
	assert.Contains(t, out.String(), "2 mapped (filter: high)")

	out.Reset()
	require.NoError(t, (&viewCmd{Feed: true}).Run(c))
	assert.Contains(t, out.String(), "2 of 2 events")

	out.Reset()
	require.NoError(t, (&clearCmd{}).Run(c))
	require.NoError(t, (&statsCmd{}).Run(c))
	assert.Regexp(t, `filter\s+all`, out.String())
}

func TestView_BadSeverityReportsServerError(t *testing.T) {
	c, _ := liveService(t)

	err := (&viewCmd{Severity: "urgent"}).Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
