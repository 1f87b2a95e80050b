// Package snapshot fetches the periodic full snapshot from the backend API.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

// Endpoint paths relative to the API base URL.
const (
	EventsPath = "/events"
	PointsPath = "/events/geo"
	StatsPath  = "/events/stats"
)

// maxErrorBody caps how much of a failed response is echoed into errors.
const maxErrorBody = 512

// Client implements pipeline.SnapshotFetcher against the backend HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a snapshot client. baseURL is the API root, for example
// http://localhost:8000/api/v1.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchSnapshot requests events, points, and stats concurrently. If any of
// the three fails the others are cancelled and a *domain.TransportError is
// returned; no partial snapshot is ever produced.
func (c *Client) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var (
		events eventsResponse
		points pointsResponse
		stats  *domain.Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.getJSON(gctx, EventsPath, &events) })
	g.Go(func() error { return c.getJSON(gctx, PointsPath, &points) })
	g.Go(func() error { return c.getJSON(gctx, StatsPath, &stats) })
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	c.logger.Debug("snapshot fetched",
		"events", len(events.Events),
		"points", len(points.Points),
		"has_stats", stats != nil,
	)
	return domain.Snapshot{
		Events:    events.Events,
		Points:    points.Points,
		Stats:     stats,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := "GET " + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Backend API response envelopes. A missing list decodes as empty.

type eventsResponse struct {
	Events []domain.Event `json:"events"`
}

type pointsResponse struct {
	Points []domain.GeoPoint `json:"points"`
}
