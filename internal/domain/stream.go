package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// StreamMessage is the wire shape of one pushed message. Only lat, lon,
// country, and dst_ip are guaranteed; everything else is optional and unknown
// fields are ignored.
type StreamMessage struct {
	ID        string   `json:"id"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Country   string   `json:"country"`
	DstIP     string   `json:"dst_ip"`
	SrcIP     string   `json:"src_ip"`
	Severity  string   `json:"severity"`
	Title     string   `json:"title"`
	Source    string   `json:"source"`
	SourceURL string   `json:"source_url"`
}

// Origin is the fixed start point of every globe arc.
type Origin struct {
	Lat float64
	Lng float64
}

// DefaultOrigin is Toronto, where the capturing sensor sits.
var DefaultOrigin = Origin{Lat: 43.65, Lng: -79.38}

// ParseStreamMessage decodes a raw push payload.
func ParseStreamMessage(data []byte) (StreamMessage, error) {
	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StreamMessage{}, &ValidationError{Field: "payload", Reason: "not a JSON object", Err: err}
	}
	return msg, nil
}

// Normalizer turns pushed messages into validated stream records.
type Normalizer struct {
	origin     Origin
	locator    Locator
	classifier *Classifier
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil locator disables IP geolocation
// for messages without coordinates; a nil classifier marks unlabelled
// messages low.
func NewNormalizer(origin Origin, locator Locator, classifier *Classifier, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		origin:     origin,
		locator:    locator,
		classifier: classifier,
		logger:     logger,
	}
}

// Normalize validates msg and builds its Event, GeoPoint, and Arc. Any
// failure is a *ValidationError and nothing should be applied.
func (n *Normalizer) Normalize(ctx context.Context, msg StreamMessage) (StreamRecord, error) {
	dst := strings.TrimSpace(msg.DstIP)
	addr, err := netip.ParseAddr(dst)
	if err != nil {
		return StreamRecord{}, &ValidationError{Field: "dst_ip", Value: msg.DstIP, Reason: "not an IP address", Err: err}
	}

	loc, err := n.placement(ctx, msg, addr)
	if err != nil {
		return StreamRecord{}, err
	}
	if err := ValidateCoordinates(loc.Lat, loc.Lon); err != nil {
		return StreamRecord{}, err
	}

	severity, err := n.severity(msg)
	if err != nil {
		return StreamRecord{}, err
	}
	style, _ := severity.Style()

	id := strings.TrimSpace(msg.ID)
	if id == "" {
		id = generateID(addr.String(), loc.Lat, loc.Lon)
	}

	title := strings.TrimSpace(msg.Title)
	if title == "" {
		title = fmt.Sprintf("Traffic to %s", arcLabel(loc.Country, addr.String()))
	}
	source := strings.TrimSpace(msg.Source)
	if source == "" {
		source = "stream"
	}

	rec := StreamRecord{
		Event: Event{
			ID:        id,
			Title:     title,
			Source:    source,
			SourceURL: msg.SourceURL,
			Severity:  severity,
		},
		Point: GeoPoint{
			ID:          id,
			Lat:         loc.Lat,
			Lng:         loc.Lon,
			Severity:    severity,
			Title:       title,
			Country:     loc.Country,
			CountryCode: loc.CountryCode,
			SourceURL:   msg.SourceURL,
		},
		Arc: Arc{
			StartLat: n.origin.Lat,
			StartLng: n.origin.Lng,
			EndLat:   loc.Lat,
			EndLng:   loc.Lon,
			Color:    style.Color,
			Name:     arcLabel(loc.Country, addr.String()),
		},
		DstIP:      addr.String(),
		ReceivedAt: clock.Now(),
	}
	return rec, ValidateStreamRecord(rec)
}

// placement returns the message coordinates, falling back to the locator
// when the sender could not geolocate the address itself.
func (n *Normalizer) placement(ctx context.Context, msg StreamMessage, addr netip.Addr) (Location, error) {
	name, code := CanonicalCountry(msg.Country)
	if msg.Lat != nil && msg.Lon != nil {
		return Location{Lat: *msg.Lat, Lon: *msg.Lon, Country: name, CountryCode: code}, nil
	}
	if n.locator == nil {
		return Location{}, &ValidationError{Field: "lat", Reason: "missing"}
	}
	if !Routable(addr) {
		return Location{}, &ValidationError{Field: "dst_ip", Value: addr.String(), Reason: "not routable, cannot geolocate"}
	}

	loc, err := n.locator.Locate(ctx, addr)
	if err != nil {
		if !errors.Is(err, ErrLocationNotFound) {
			n.logger.Warn("ip geolocation failed", "dst_ip", addr.String(), "error", err)
		}
		return Location{}, &ValidationError{Field: "dst_ip", Value: addr.String(), Reason: "no location", Err: err}
	}
	if name == "" {
		name, code = CanonicalCountry(firstNonEmpty(loc.CountryCode, loc.Country))
	}
	loc.Country, loc.CountryCode = name, code
	return loc, nil
}

func (n *Normalizer) severity(msg StreamMessage) (Severity, error) {
	if strings.TrimSpace(msg.Severity) == "" {
		return n.classifier.Classify(msg.Title), nil
	}
	sev, err := ParseSeverity(msg.Severity)
	if err != nil {
		return "", &ValidationError{Field: "severity", Value: msg.Severity, Reason: "not in closed set", Err: err}
	}
	return sev, nil
}

// generateID derives a stable identity for messages that carry none, so
// repeated traffic to the same destination updates one marker.
func generateID(dst string, lat, lon float64) string {
	input := fmt.Sprintf("%s|%.4f|%.4f", dst, lat, lon)
	hash := sha256.Sum256([]byte(input))
	return "s_" + hex.EncodeToString(hash[:8])
}

func arcLabel(country, dst string) string {
	if country == "" {
		country = "Unknown"
	}
	return fmt.Sprintf("%s (%s)", country, dst)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
