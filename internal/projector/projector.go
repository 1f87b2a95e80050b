// Package projector derives renderer-ready views from store contents and the
// active filter.
package projector

import (
	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/store"
)

// DefaultFeedLimit is how many passing events the feed shows.
const DefaultFeedLimit = 50

// MapPoint is a GeoPoint decorated with its marker style.
type MapPoint struct {
	domain.GeoPoint
	Color  string `json:"color"`
	Radius int    `json:"radius"`
}

// View is one projection of the store for the map, the feed, and counters.
type View struct {
	MapPoints    []MapPoint     `json:"map_points"`
	Feed         []domain.Event `json:"feed"`
	VisibleCount int            `json:"visible_count"`
	FeedTotal    int            `json:"feed_total"`
	Filter       Filter         `json:"filter"`
	Stats        domain.Stats   `json:"stats"`
	Version      uint64         `json:"version"`
}

// Project filters state by f. Every point with the active severity (or all
// of them with no filter) becomes a map point; VisibleCount is exactly the
// number of map points. The feed keeps the first feedLimit passing events in
// store order while FeedTotal counts all of them. A feedLimit below one uses
// DefaultFeedLimit.
func Project(state store.State, f Filter, feedLimit int) View {
	if feedLimit < 1 {
		feedLimit = DefaultFeedLimit
	}
	v := View{
		MapPoints: make([]MapPoint, 0, len(state.Points)),
		Feed:      make([]domain.Event, 0, min(feedLimit, len(state.Events))),
		Filter:    f,
		Stats:     state.Stats,
		Version:   state.Version,
	}

	for _, p := range state.Points {
		if !f.Match(p.Severity) {
			continue
		}
		// Stored points are validated, so the lookup cannot fail.
		style, _ := p.Severity.Style()
		v.MapPoints = append(v.MapPoints, MapPoint{GeoPoint: p, Color: style.Color, Radius: style.Radius})
	}
	v.VisibleCount = len(v.MapPoints)

	for _, e := range state.Events {
		if !f.Match(e.Severity) {
			continue
		}
		v.FeedTotal++
		if len(v.Feed) < feedLimit {
			v.Feed = append(v.Feed, e)
		}
	}
	return v
}

// Points strips marker styling, returning the underlying GeoPoints.
func (v View) Points() []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(v.MapPoints))
	for i, mp := range v.MapPoints {
		out[i] = mp.GeoPoint
	}
	return out
}
