package domain

import (
	"math"
	"strings"
	"time"
)

// Event is one reported incident as shown in the feed.
type Event struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Source    string   `json:"source"`
	SourceURL string   `json:"source_url"`
	Severity  Severity `json:"severity"`
}

// GeoPoint is the geolocated counterpart of an Event. It shares the Event's
// ID when both are derived from the same incident.
type GeoPoint struct {
	ID          string   `json:"id"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code,omitempty"`
	SourceURL   string   `json:"source_url"`
}

// Arc is an ephemeral globe trajectory for one just-streamed event. Arcs
// have no identity and are evicted purely by recency.
type Arc struct {
	StartLat float64 `json:"startLat"`
	StartLng float64 `json:"startLng"`
	EndLat   float64 `json:"endLat"`
	EndLng   float64 `json:"endLng"`
	Color    string  `json:"color"`
	Name     string  `json:"name"`
}

// Stats holds aggregate counters over the known events.
type Stats struct {
	Total    int              `json:"total"`
	Mapped   int              `json:"mapped"`
	Severity map[Severity]int `json:"severity"`
}

// NewStats returns zeroed stats with every severity present.
func NewStats() Stats {
	s := Stats{Severity: make(map[Severity]int, 4)}
	for _, sev := range Severities() {
		s.Severity[sev] = 0
	}
	return s
}

// Snapshot is one full, authoritative payload fetched from the backend.
type Snapshot struct {
	Events    []Event
	Points    []GeoPoint
	Stats     *Stats
	FetchedAt time.Time
}

// StreamRecord is the normalized form of one pushed message: the feed entry,
// its map point, and the globe arc that visualizes its arrival.
type StreamRecord struct {
	Event      Event
	Point      GeoPoint
	Arc        Arc
	DstIP      string
	ReceivedAt time.Time
}

// ValidateEvent checks the invariants every stored Event must satisfy.
func ValidateEvent(e Event) error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{Field: "id", Reason: "missing"}
	}
	if !e.Severity.Valid() {
		return &ValidationError{Field: "severity", Value: string(e.Severity), Reason: "not in closed set", Err: ErrInvalidSeverity}
	}
	return nil
}

// ValidateGeoPoint checks identity, severity, and coordinate ranges.
func ValidateGeoPoint(p GeoPoint) error {
	if strings.TrimSpace(p.ID) == "" {
		return &ValidationError{Field: "id", Reason: "missing"}
	}
	if !p.Severity.Valid() {
		return &ValidationError{Field: "severity", Value: string(p.Severity), Reason: "not in closed set", Err: ErrInvalidSeverity}
	}
	return ValidateCoordinates(p.Lat, p.Lng)
}

// ValidateCoordinates rejects NaN and values outside lat [-90,90], lng [-180,180].
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &ValidationError{Field: "lat", Value: lat, Reason: "out of range [-90,90]"}
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return &ValidationError{Field: "lng", Value: lng, Reason: "out of range [-180,180]"}
	}
	return nil
}

// ValidateStreamRecord checks both halves of a streamed record and that they
// describe the same incident.
func ValidateStreamRecord(r StreamRecord) error {
	if err := ValidateEvent(r.Event); err != nil {
		return err
	}
	if err := ValidateGeoPoint(r.Point); err != nil {
		return err
	}
	if r.Event.ID != r.Point.ID {
		return &ValidationError{Field: "id", Value: r.Point.ID, Reason: "point does not match event " + r.Event.ID}
	}
	return nil
}
