package domain

import (
	"fmt"
	"strings"
)

// Severity is the priority of a reported incident.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Style is the rendering attributes shared by every view for one severity.
type Style struct {
	Color  string `json:"color"`
	Radius int    `json:"radius"`
}

var styles = map[Severity]Style{
	SeverityCritical: {Color: "#ff3b30", Radius: 10},
	SeverityHigh:     {Color: "#ff9500", Radius: 8},
	SeverityMedium:   {Color: "#ffcc00", Radius: 6},
	SeverityLow:      {Color: "#34c759", Radius: 5},
}

// Severities returns the closed set of levels, highest priority first.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// ParseSeverity converts a wire value into a Severity. Matching ignores case
// and surrounding whitespace; anything outside the closed set fails with
// ErrInvalidSeverity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// UnmarshalText normalises a decoded severity the way ParseSeverity does.
// Unknown values are kept verbatim so record validation can reject the one
// record instead of failing the whole payload.
func (s *Severity) UnmarshalText(text []byte) error {
	if sev, err := ParseSeverity(string(text)); err == nil {
		*s = sev
		return nil
	}
	*s = Severity(text)
	return nil
}

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	_, ok := styles[s]
	return ok
}

// Rank orders severities: 0 for critical through 3 for low, -1 if invalid.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return -1
	}
}

// Style returns the display color and marker radius for s.
func (s Severity) Style() (Style, error) {
	st, ok := styles[s]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, string(s))
	}
	return st, nil
}
