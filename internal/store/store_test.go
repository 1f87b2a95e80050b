package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

func ev(id string, sev domain.Severity) domain.Event {
	return domain.Event{ID: id, Title: "title " + id, Source: "test", Severity: sev}
}

func pt(id string, sev domain.Severity) domain.GeoPoint {
	return domain.GeoPoint{ID: id, Lat: 10, Lng: 20, Severity: sev, Title: "title " + id}
}

func rec(id string, sev domain.Severity) domain.StreamRecord {
	return domain.StreamRecord{
		Event: ev(id, sev),
		Point: pt(id, sev),
		Arc:   domain.Arc{EndLat: 10, EndLng: 20, Name: id},
	}
}

func eventIDs(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func pointIDs(points []domain.GeoPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}

func TestReplaceAll_InstallsSnapshot(t *testing.T) {
	s := New(0)
	res := s.ReplaceAll(
		[]domain.Event{ev("a", domain.SeverityHigh), ev("b", domain.SeverityLow)},
		[]domain.GeoPoint{pt("a", domain.SeverityHigh)},
		nil,
	)

	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 1, res.Points)
	assert.Empty(t, res.Rejected)
	assert.False(t, res.StatsTrusted)

	st := s.State()
	assert.Equal(t, []string{"a", "b"}, eventIDs(st.Events))
	assert.Equal(t, []string{"a"}, pointIDs(st.Points))
	assert.Equal(t, uint64(1), st.Version)
	assert.Equal(t, 2, st.Stats.Total)
	assert.Equal(t, 1, st.Stats.Mapped)
}

func TestReplaceAll_DiscardsPreviousContents(t *testing.T) {
	s := New(0)
	s.ReplaceAll([]domain.Event{ev("old", domain.SeverityLow)}, []domain.GeoPoint{pt("old", domain.SeverityLow)}, nil)
	_, err := s.UpsertStreamed(rec("streamed", domain.SeverityCritical))
	require.NoError(t, err)

	s.ReplaceAll([]domain.Event{ev("new", domain.SeverityMedium)}, nil, nil)

	_, ok := s.Event("old")
	assert.False(t, ok)
	_, ok = s.Point("streamed")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, s.State().Streamed)
}

func TestReplaceAll_DuplicateIDsCollapse(t *testing.T) {
	s := New(0)
	first := ev("a", domain.SeverityLow)
	last := ev("a", domain.SeverityCritical)
	last.Title = "updated"

	res := s.ReplaceAll([]domain.Event{first, ev("b", domain.SeverityLow), last}, nil, nil)

	assert.Equal(t, 2, res.Events)
	assert.Equal(t, []string{"a", "b"}, eventIDs(s.State().Events))
	got, ok := s.Event("a")
	require.True(t, ok)
	assert.Equal(t, "updated", got.Title)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
}

func TestReplaceAll_RejectsInvalidRecords(t *testing.T) {
	s := New(0)
	badPoint := pt("p2", domain.SeverityLow)
	badPoint.Lat = 120

	res := s.ReplaceAll(
		[]domain.Event{ev("e1", domain.SeverityLow), ev("", domain.SeverityLow), ev("e3", "urgent")},
		[]domain.GeoPoint{pt("p1", domain.SeverityHigh), badPoint},
		nil,
	)

	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 1, res.Points)
	require.Len(t, res.Rejected, 3)
	for _, err := range res.Rejected {
		assert.True(t, domain.IsValidation(err), err)
	}
	assert.Contains(t, res.Rejected[0].Error(), "events[1]")
	assert.Contains(t, res.Rejected[2].Error(), "points[1]")
}

func TestReplaceAll_TrustsConsistentStats(t *testing.T) {
	s := New(0)
	reported := domain.NewStats()
	reported.Total = 5 // server counts events beyond the page
	reported.Mapped = 1
	reported.Severity[domain.SeverityHigh] = 3
	reported.Severity[domain.SeverityLow] = 2

	res := s.ReplaceAll(
		[]domain.Event{ev("a", domain.SeverityHigh), ev("b", domain.SeverityLow)},
		[]domain.GeoPoint{pt("a", domain.SeverityHigh)},
		&reported,
	)

	require.True(t, res.StatsTrusted)
	assert.Equal(t, reported, s.Stats())

	// Mutating the caller's copy must not leak in.
	reported.Severity[domain.SeverityHigh] = 99
	assert.Equal(t, 3, s.Stats().Severity[domain.SeverityHigh])
}

func TestReplaceAll_InconsistentStatsAreRecomputed(t *testing.T) {
	tests := map[string]func(*domain.Stats){
		"mapped mismatch":   func(st *domain.Stats) { st.Mapped = 7 },
		"severity sum":      func(st *domain.Stats) { st.Severity[domain.SeverityLow] = 9 },
		"total below store": func(st *domain.Stats) { st.Total = 1; st.Severity[domain.SeverityHigh] = 0; st.Severity[domain.SeverityLow] = 1 },
		"unknown severity":  func(st *domain.Stats) { st.Severity["urgent"] = 0 },
		"severity split differs": func(st *domain.Stats) {
			st.Severity[domain.SeverityHigh] = 0
			st.Severity[domain.SeverityLow] = 0
			st.Severity[domain.SeverityCritical] = 2
		},
		"larger total short on one severity": func(st *domain.Stats) {
			st.Total = 4
			st.Severity[domain.SeverityHigh] = 0
			st.Severity[domain.SeverityLow] = 4
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			reported := domain.NewStats()
			reported.Total, reported.Mapped = 2, 1
			reported.Severity[domain.SeverityHigh] = 1
			reported.Severity[domain.SeverityLow] = 1
			mutate(&reported)

			s := New(0)
			res := s.ReplaceAll(
				[]domain.Event{ev("a", domain.SeverityHigh), ev("b", domain.SeverityLow)},
				[]domain.GeoPoint{pt("a", domain.SeverityHigh)},
				&reported,
			)
			assert.False(t, res.StatsTrusted)
			assert.Equal(t, s.CurrentStats(), s.Stats())
		})
	}
}

func TestReplaceAll_StatsMustMatchDeliveredSeverities(t *testing.T) {
	s := New(0)
	reported := domain.NewStats()
	reported.Total, reported.Mapped = 2, 2
	reported.Severity[domain.SeverityCritical] = 2

	res := s.ReplaceAll(
		[]domain.Event{ev("a", domain.SeverityLow), ev("b", domain.SeverityLow)},
		[]domain.GeoPoint{pt("a", domain.SeverityLow), pt("b", domain.SeverityLow)},
		&reported,
	)

	assert.False(t, res.StatsTrusted)
	stats := s.Stats()
	assert.Equal(t, 2, stats.Severity[domain.SeverityLow])
	assert.Zero(t, stats.Severity[domain.SeverityCritical])
}

func TestUpsertStreamed_InsertsAtFeedHead(t *testing.T) {
	s := New(0)
	s.ReplaceAll([]domain.Event{ev("snap", domain.SeverityLow)}, []domain.GeoPoint{pt("snap", domain.SeverityLow)}, nil)

	res, err := s.UpsertStreamed(rec("s1", domain.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Empty(t, res.Evicted)

	_, err = s.UpsertStreamed(rec("s2", domain.SeverityMedium))
	require.NoError(t, err)

	st := s.State()
	assert.Equal(t, []string{"s2", "s1", "snap"}, eventIDs(st.Events))
	assert.Equal(t, []string{"snap", "s1", "s2"}, pointIDs(st.Points))
	assert.Equal(t, 2, st.Streamed)
	assert.Equal(t, uint64(3), st.Version)
}

func TestUpsertStreamed_ExistingIDUpdatesInPlace(t *testing.T) {
	s := New(0)
	_, err := s.UpsertStreamed(rec("a", domain.SeverityLow))
	require.NoError(t, err)
	_, err = s.UpsertStreamed(rec("b", domain.SeverityLow))
	require.NoError(t, err)

	res, err := s.UpsertStreamed(rec("a", domain.SeverityCritical))
	require.NoError(t, err)
	assert.False(t, res.Inserted)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"b", "a"}, eventIDs(s.State().Events))
	p, _ := s.Point("a")
	assert.Equal(t, domain.SeverityCritical, p.Severity)
	assert.Equal(t, 1, s.CurrentStats().Severity[domain.SeverityCritical])
}

func TestUpsertStreamed_OverwritesSnapshotRecord(t *testing.T) {
	s := New(1)
	s.ReplaceAll([]domain.Event{ev("a", domain.SeverityLow)}, []domain.GeoPoint{pt("a", domain.SeverityLow)}, nil)

	res, err := s.UpsertStreamed(rec("a", domain.SeverityHigh))
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.Zero(t, s.State().Streamed)
	assert.Equal(t, 1, s.Len())
}

func TestUpsertStreamed_EvictsOldestStreamed(t *testing.T) {
	s := New(3)
	s.ReplaceAll([]domain.Event{ev("snap", domain.SeverityLow)}, nil, nil)

	for i := range 3 {
		_, err := s.UpsertStreamed(rec(fmt.Sprintf("s%d", i), domain.SeverityLow))
		require.NoError(t, err)
	}
	res, err := s.UpsertStreamed(rec("s3", domain.SeverityLow))
	require.NoError(t, err)
	assert.Equal(t, "s0", res.Evicted)

	st := s.State()
	assert.Equal(t, []string{"s3", "s2", "s1", "snap"}, eventIDs(st.Events))
	assert.Equal(t, []string{"s1", "s2", "s3"}, pointIDs(st.Points))
	assert.Equal(t, 3, st.Streamed)
	_, ok := s.Event("snap")
	assert.True(t, ok, "snapshot records are never evicted")
}

func TestUpsertStreamed_InvalidLeavesStoreUntouched(t *testing.T) {
	s := New(0)
	_, err := s.UpsertStreamed(rec("a", domain.SeverityLow))
	require.NoError(t, err)
	before := s.State()

	mismatched := rec("b", domain.SeverityLow)
	mismatched.Point.ID = "c"
	outOfRange := rec("d", domain.SeverityLow)
	outOfRange.Point.Lng = 200

	for _, bad := range []domain.StreamRecord{rec("e", "urgent"), mismatched, outOfRange, rec("", domain.SeverityLow)} {
		_, err := s.UpsertStreamed(bad)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	}
	assert.Equal(t, before, s.State())
}

func TestUpsertStreamed_InvalidatesServerStats(t *testing.T) {
	s := New(0)
	reported := domain.NewStats()
	reported.Total, reported.Mapped = 10, 1
	reported.Severity[domain.SeverityLow] = 10
	res := s.ReplaceAll([]domain.Event{ev("a", domain.SeverityLow)}, []domain.GeoPoint{pt("a", domain.SeverityLow)}, &reported)
	require.True(t, res.StatsTrusted)
	assert.Equal(t, 10, s.Stats().Total)

	_, err := s.UpsertStreamed(rec("b", domain.SeverityCritical))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stats().Total)
	assert.Equal(t, 1, s.Stats().Severity[domain.SeverityCritical])
}

func TestCurrentStats_CountsDistinctIDs(t *testing.T) {
	s := New(0)
	s.ReplaceAll(
		[]domain.Event{ev("a", domain.SeverityHigh), ev("b", domain.SeverityMedium)},
		[]domain.GeoPoint{pt("a", domain.SeverityLow), pt("c", domain.SeverityCritical)},
		nil,
	)

	stats := s.CurrentStats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Mapped)
	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityCritical: 1,
		domain.SeverityHigh:     1, // event severity wins for a
		domain.SeverityMedium:   1,
		domain.SeverityLow:      0,
	}, stats.Severity)
}

func TestCurrentStats_Empty(t *testing.T) {
	stats := New(0).CurrentStats()
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Mapped)
	assert.Len(t, stats.Severity, 4)
}

func TestState_IsACopy(t *testing.T) {
	s := New(0)
	_, err := s.UpsertStreamed(rec("a", domain.SeverityLow))
	require.NoError(t, err)

	st := s.State()
	st.Events[0].Title = "mutated"
	st.Stats.Severity[domain.SeverityLow] = 42

	e, _ := s.Event("a")
	assert.Equal(t, "title a", e.Title)
	assert.Equal(t, 1, s.Stats().Severity[domain.SeverityLow])
}
