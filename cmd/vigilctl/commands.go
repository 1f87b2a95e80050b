package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	httpadapter "github.com/couchcryptid/vigil-feed-service/internal/adapter/http"
	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/projector"
)

// apiClient talks to the service's /api/v1 routes.
type apiClient struct {
	base string
	http *http.Client
	out  io.Writer
}

func (c *apiClient) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.base, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *apiClient) view(ctx context.Context, sev string) (projector.View, error) {
	path := "/api/v1/view"
	if sev != "" {
		path += "?severity=" + url.QueryEscape(sev)
	}
	var v projector.View
	err := c.call(ctx, http.MethodGet, path, &v)
	return v, err
}

type viewCmd struct {
	Severity string `help:"Project with this severity instead of the service filter."`
	Feed     bool   `help:"Print the event feed instead of map points."`
}

func (cmd *viewCmd) Run(c *apiClient) error {
	v, err := c.view(context.Background(), cmd.Severity)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	if cmd.Feed {
		fmt.Fprintln(tw, "ID\tSEVERITY\tSOURCE\tTITLE")
		for _, e := range v.Feed {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Severity, e.Source, e.Title)
		}
		fmt.Fprintf(tw, "\n%d of %d events (filter: %s)\n", len(v.Feed), v.FeedTotal, v.Filter)
		return tw.Flush()
	}
	fmt.Fprintln(tw, "ID\tSEVERITY\tLAT\tLNG\tCOUNTRY")
	for _, p := range v.MapPoints {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%s\n", p.ID, p.Severity, p.Lat, p.Lng, p.Country)
	}
	fmt.Fprintf(tw, "\n%d mapped (filter: %s)\n", v.VisibleCount, v.Filter)
	return tw.Flush()
}

type arcsCmd struct{}

func (cmd *arcsCmd) Run(c *apiClient) error {
	var body struct {
		Arcs []domain.Arc `json:"arcs"`
	}
	if err := c.call(context.Background(), http.MethodGet, "/api/v1/arcs", &body); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEND\tCOLOR")
	for _, a := range body.Arcs {
		fmt.Fprintf(tw, "%s\t%.2f,%.2f\t%s\n", a.Name, a.EndLat, a.EndLng, a.Color)
	}
	return tw.Flush()
}

type statsCmd struct{}

func (cmd *statsCmd) Run(c *apiClient) error {
	var s httpadapter.StatsResponse
	if err := c.call(context.Background(), http.MethodGet, "/api/v1/stats", &s); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", s.Stats.Total)
	fmt.Fprintf(tw, "mapped\t%d\n", s.Stats.Mapped)
	for _, sev := range domain.Severities() {
		fmt.Fprintf(tw, "%s\t%d\n", sev, s.Stats.Severity[sev])
	}
	fmt.Fprintf(tw, "filter\t%s\n", s.Filter)
	fmt.Fprintf(tw, "visible\t%d\n", s.VisibleCount)
	fmt.Fprintf(tw, "streamed\t%d\n", s.Streamed)
	fmt.Fprintf(tw, "arcs\t%d\n", s.Arcs)
	return tw.Flush()
}

type toggleCmd struct {
	Severity string `arg:"" help:"Severity to toggle." enum:"critical,high,medium,low"`
}

func (cmd *toggleCmd) Run(c *apiClient) error {
	var body struct {
		Filter projector.Filter `json:"filter"`
	}
	if err := c.call(context.Background(), http.MethodPost, "/api/v1/filter/"+url.PathEscape(cmd.Severity), &body); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "filter: %s\n", body.Filter)
	return nil
}

type clearCmd struct{}

func (cmd *clearCmd) Run(c *apiClient) error {
	var body map[string]any
	if err := c.call(context.Background(), http.MethodDelete, "/api/v1/filter", &body); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "filter: all")
	return nil
}

type checkCmd struct{}

// errInconsistent is returned when any check fails.
var errInconsistent = errors.New("projection is inconsistent")

func (cmd *checkCmd) Run(c *apiClient) error {
	problems, err := checkConsistency(context.Background(), c)
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Fprintf(c.out, "FAIL  %s\n", p)
	}
	if len(problems) > 0 {
		return errInconsistent
	}
	fmt.Fprintln(c.out, "OK    projection is consistent")
	return nil
}

// checkConsistency projects once per severity and once unfiltered and
// verifies the counters agree with the lists.
func checkConsistency(ctx context.Context, c *apiClient) ([]string, error) {
	var problems []string
	all, err := c.view(ctx, "")
	if err != nil {
		return nil, err
	}
	sevs := domain.Severities()
	names := make([]string, 0, len(sevs)+1)
	views := make([]projector.View, 0, len(sevs)+1)
	for _, sev := range sevs {
		v, err := c.view(ctx, string(sev))
		if err != nil {
			return nil, err
		}
		names = append(names, string(sev))
		views = append(views, v)
	}

	sumVisible, sumFeed := 0, 0
	for i, v := range views {
		sumVisible += v.VisibleCount
		sumFeed += v.FeedTotal
		for _, p := range v.MapPoints {
			if string(p.Severity) != names[i] {
				problems = append(problems, fmt.Sprintf("%s view contains %s point %s", names[i], p.Severity, p.ID))
			}
		}
	}
	names = append(names, "current")
	views = append(views, all)

	for i, v := range views {
		if v.VisibleCount != len(v.MapPoints) {
			problems = append(problems, fmt.Sprintf("%s: visible_count %d != %d map points", names[i], v.VisibleCount, len(v.MapPoints)))
		}
		if len(v.Feed) > v.FeedTotal {
			problems = append(problems, fmt.Sprintf("%s: feed has %d events but feed_total is %d", names[i], len(v.Feed), v.FeedTotal))
		}
	}

	if _, active := all.Filter.Active(); !active {
		if sumVisible != all.VisibleCount {
			problems = append(problems, fmt.Sprintf("per-severity visible counts sum to %d, unfiltered is %d", sumVisible, all.VisibleCount))
		}
		if sumFeed != all.FeedTotal {
			problems = append(problems, fmt.Sprintf("per-severity feed totals sum to %d, unfiltered is %d", sumFeed, all.FeedTotal))
		}
		if all.Stats.Mapped != all.VisibleCount {
			problems = append(problems, fmt.Sprintf("stats.mapped %d != %d visible points", all.Stats.Mapped, all.VisibleCount))
		}
	}
	return problems, nil
}
