package projector

import (
	"encoding/json"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

// Filter is the single active severity selection. The zero value shows
// everything.
type Filter struct {
	severity domain.Severity
}

// Only returns a filter restricted to s.
func Only(s domain.Severity) Filter { return Filter{severity: s} }

// Active returns the selected severity and whether one is set.
func (f Filter) Active() (domain.Severity, bool) {
	return f.severity, f.severity != ""
}

// Toggle selects s, or clears the selection when s is already active.
func (f Filter) Toggle(s domain.Severity) Filter {
	if f.severity == s {
		return Filter{}
	}
	return Filter{severity: s}
}

// Clear returns the unfiltered selection.
func (f Filter) Clear() Filter { return Filter{} }

// Match reports whether a record with severity s passes.
func (f Filter) Match(s domain.Severity) bool {
	return f.severity == "" || f.severity == s
}

func (f Filter) String() string {
	if f.severity == "" {
		return "all"
	}
	return string(f.severity)
}

// MarshalJSON encodes the active severity, or null when unset.
func (f Filter) MarshalJSON() ([]byte, error) {
	if f.severity == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(f.severity))
}

// UnmarshalJSON accepts null or one of the known severities.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		*f = Filter{}
		return nil
	}
	sev, err := domain.ParseSeverity(*raw)
	if err != nil {
		return err
	}
	*f = Only(sev)
	return nil
}
