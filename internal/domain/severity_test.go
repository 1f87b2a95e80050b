package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Severity
	}{
		{"critical", domain.SeverityCritical},
		{"HIGH", domain.SeverityHigh},
		{" medium ", domain.SeverityMedium},
		{"Low", domain.SeverityLow},
	}
	for _, tt := range tests {
		got, err := domain.ParseSeverity(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseSeverity_OutsideClosedSet(t *testing.T) {
	for _, in := range []string{"", "urgent", "info", "criticall"} {
		_, err := domain.ParseSeverity(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, domain.ErrInvalidSeverity))
	}
}

func TestSeverity_StyleTable(t *testing.T) {
	want := map[domain.Severity]domain.Style{
		domain.SeverityCritical: {Color: "#ff3b30", Radius: 10},
		domain.SeverityHigh:     {Color: "#ff9500", Radius: 8},
		domain.SeverityMedium:   {Color: "#ffcc00", Radius: 6},
		domain.SeverityLow:      {Color: "#34c759", Radius: 5},
	}
	for sev, style := range want {
		got, err := sev.Style()
		require.NoError(t, err)
		assert.Equal(t, style, got, sev)
	}

	_, err := domain.Severity("urgent").Style()
	assert.ErrorIs(t, err, domain.ErrInvalidSeverity)
}

func TestSeverity_Ordering(t *testing.T) {
	sevs := domain.Severities()
	require.Len(t, sevs, 4)
	for i := 1; i < len(sevs); i++ {
		assert.Less(t, sevs[i-1].Rank(), sevs[i].Rank(), "%s before %s", sevs[i-1], sevs[i])
	}
	assert.False(t, domain.Severity("").Valid())
}

func TestNewStats_HasEveryKey(t *testing.T) {
	s := domain.NewStats()
	assert.Len(t, s.Severity, 4)
	for _, sev := range domain.Severities() {
		v, ok := s.Severity[sev]
		assert.True(t, ok)
		assert.Zero(t, v)
	}
}

func TestValidateGeoPoint(t *testing.T) {
	ok := domain.GeoPoint{ID: "p", Lat: 90, Lng: -180, Severity: domain.SeverityLow}
	require.NoError(t, domain.ValidateGeoPoint(ok))

	tests := map[string]domain.GeoPoint{
		"missing id":   {Lat: 1, Lng: 1, Severity: domain.SeverityLow},
		"bad severity": {ID: "p", Severity: "urgent"},
		"lat high":     {ID: "p", Lat: 90.01, Severity: domain.SeverityLow},
		"lng low":      {ID: "p", Lng: -180.01, Severity: domain.SeverityLow},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			err := domain.ValidateGeoPoint(p)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	v := &domain.ValidationError{Field: "severity", Value: "urgent", Reason: "not in closed set", Err: domain.ErrInvalidSeverity}
	assert.Equal(t, `invalid severity urgent: not in closed set`, v.Error())
	assert.ErrorIs(t, v, domain.ErrInvalidSeverity)
	assert.False(t, domain.IsTransport(v))

	tr := &domain.TransportError{Op: "GET /events", Err: errors.New("eof")}
	assert.Equal(t, "GET /events: eof", tr.Error())
	assert.True(t, domain.IsTransport(tr))
	assert.False(t, domain.IsValidation(tr))
}

func TestSeverity_DecodeNormalises(t *testing.T) {
	var e domain.Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","severity":" Critical "}`), &e))
	assert.Equal(t, domain.SeverityCritical, e.Severity)
	require.NoError(t, domain.ValidateEvent(e))

	var p domain.GeoPoint
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","lat":1,"lng":2,"severity":"HIGH"}`), &p))
	assert.Equal(t, domain.SeverityHigh, p.Severity)

	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(`{"total":1,"mapped":0,"severity":{"Low":1}}`), &stats))
	assert.Equal(t, 1, stats.Severity[domain.SeverityLow])
}

func TestSeverity_DecodeKeepsUnknownForValidation(t *testing.T) {
	var e domain.Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","severity":"urgent"}`), &e))
	assert.Equal(t, domain.Severity("urgent"), e.Severity)

	err := domain.ValidateEvent(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSeverity)
}
