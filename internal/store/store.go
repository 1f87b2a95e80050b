// Package store holds the bounded collection of events and map points that
// every view is projected from.
package store

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

// DefaultStreamCapacity bounds how many streamed records the store keeps on
// top of the latest snapshot.
const DefaultStreamCapacity = 500

// Store is the current set of events and points, keyed by ID. It is owned by
// a single writer (see session.Session) and is not safe for concurrent use;
// readers take immutable copies through State.
type Store struct {
	events     map[string]domain.Event
	eventOrder []string // feed order, most recent first
	points     map[string]domain.GeoPoint
	pointOrder []string // draw order, most recent last

	// streamed lists IDs inserted by the push feed, oldest first. Only these
	// are subject to eviction.
	streamed  []string
	streamCap int

	reported *domain.Stats
	version  uint64
}

// State is an immutable copy of the store contents.
type State struct {
	Events   []domain.Event
	Points   []domain.GeoPoint
	Stats    domain.Stats
	Streamed int
	Version  uint64
}

// ReplaceResult reports what a snapshot install kept and dropped.
type ReplaceResult struct {
	Events       int
	Points       int
	Rejected     []error
	StatsTrusted bool
}

// UpsertResult reports the effect of one streamed record.
type UpsertResult struct {
	Inserted bool   // false when an existing ID was overwritten
	Evicted  string // ID dropped to make room, if any
}

// New creates an empty store that keeps at most streamCap streamed records.
func New(streamCap int) *Store {
	if streamCap < 1 {
		streamCap = DefaultStreamCapacity
	}
	return &Store{
		events:    make(map[string]domain.Event),
		points:    make(map[string]domain.GeoPoint),
		streamCap: streamCap,
	}
}

// ReplaceAll discards the current contents and installs a snapshot in one
// step. Invalid records are dropped and listed in the result; duplicate IDs
// collapse to one entry that keeps the first position and the last fields.
// Supplied stats are kept only when they agree with the installed lists.
func (s *Store) ReplaceAll(events []domain.Event, points []domain.GeoPoint, stats *domain.Stats) ReplaceResult {
	var res ReplaceResult

	nextEvents := make(map[string]domain.Event, len(events))
	nextEventOrder := make([]string, 0, len(events))
	for i, e := range events {
		if err := domain.ValidateEvent(e); err != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		if _, ok := nextEvents[e.ID]; !ok {
			nextEventOrder = append(nextEventOrder, e.ID)
		}
		nextEvents[e.ID] = e
	}

	nextPoints := make(map[string]domain.GeoPoint, len(points))
	nextPointOrder := make([]string, 0, len(points))
	for i, p := range points {
		if err := domain.ValidateGeoPoint(p); err != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("points[%d]: %w", i, err))
			continue
		}
		if _, ok := nextPoints[p.ID]; !ok {
			nextPointOrder = append(nextPointOrder, p.ID)
		}
		nextPoints[p.ID] = p
	}

	s.events, s.eventOrder = nextEvents, nextEventOrder
	s.points, s.pointOrder = nextPoints, nextPointOrder
	s.streamed = nil
	s.reported = nil
	if stats != nil && s.consistent(*stats) {
		cp := copyStats(*stats)
		s.reported = &cp
		res.StatsTrusted = true
	}
	s.version++

	res.Events, res.Points = len(s.eventOrder), len(s.pointOrder)
	return res
}

// UpsertStreamed inserts or overwrites one streamed record. An existing ID is
// updated in place and never grows the store. A new ID evicts the oldest
// streamed record first when the streamed subset is full. Invalid records
// return a *domain.ValidationError and leave the store untouched.
func (s *Store) UpsertStreamed(rec domain.StreamRecord) (UpsertResult, error) {
	if err := domain.ValidateStreamRecord(rec); err != nil {
		return UpsertResult{}, err
	}
	var res UpsertResult
	id := rec.Event.ID

	_, hasEvent := s.events[id]
	_, hasPoint := s.points[id]
	if !hasEvent && !hasPoint {
		if len(s.streamed) >= s.streamCap {
			res.Evicted = s.streamed[0]
			s.remove(res.Evicted)
			s.streamed = s.streamed[1:]
		}
		s.streamed = append(s.streamed, id)
		res.Inserted = true
	}

	if !hasEvent {
		s.eventOrder = slices.Insert(s.eventOrder, 0, id)
	}
	s.events[id] = rec.Event
	if !hasPoint {
		s.pointOrder = append(s.pointOrder, id)
	}
	s.points[id] = rec.Point

	// Server totals no longer describe the contents.
	s.reported = nil
	s.version++
	return res, nil
}

// CurrentStats recomputes the counters by scanning the contents. Total counts
// distinct IDs across events and points; an ID's severity comes from its
// event when present.
func (s *Store) CurrentStats() domain.Stats {
	stats := domain.NewStats()
	for _, id := range s.eventOrder {
		stats.Total++
		stats.Severity[s.events[id].Severity]++
	}
	for _, id := range s.pointOrder {
		if _, ok := s.events[id]; !ok {
			stats.Total++
			stats.Severity[s.points[id].Severity]++
		}
	}
	stats.Mapped = len(s.pointOrder)
	return stats
}

// Stats returns the server-supplied stats while they are trusted, otherwise
// the derived ones.
func (s *Store) Stats() domain.Stats {
	if s.reported != nil {
		return copyStats(*s.reported)
	}
	return s.CurrentStats()
}

// Len returns the number of distinct stored IDs.
func (s *Store) Len() int {
	n := len(s.eventOrder)
	for _, id := range s.pointOrder {
		if _, ok := s.events[id]; !ok {
			n++
		}
	}
	return n
}

// Event looks up a stored event by ID.
func (s *Store) Event(id string) (domain.Event, bool) {
	e, ok := s.events[id]
	return e, ok
}

// Point looks up a stored point by ID.
func (s *Store) Point(id string) (domain.GeoPoint, bool) {
	p, ok := s.points[id]
	return p, ok
}

// Version increments on every mutation.
func (s *Store) Version() uint64 { return s.version }

// State copies the current contents for readers.
func (s *Store) State() State {
	st := State{
		Events:   make([]domain.Event, 0, len(s.eventOrder)),
		Points:   make([]domain.GeoPoint, 0, len(s.pointOrder)),
		Stats:    s.Stats(),
		Streamed: len(s.streamed),
		Version:  s.version,
	}
	for _, id := range s.eventOrder {
		st.Events = append(st.Events, s.events[id])
	}
	for _, id := range s.pointOrder {
		st.Points = append(st.Points, s.points[id])
	}
	return st
}

func (s *Store) remove(id string) {
	if _, ok := s.events[id]; ok {
		delete(s.events, id)
		s.eventOrder = slices.DeleteFunc(s.eventOrder, func(v string) bool { return v == id })
	}
	if _, ok := s.points[id]; ok {
		delete(s.points, id)
		s.pointOrder = slices.DeleteFunc(s.pointOrder, func(v string) bool { return v == id })
	}
}

// consistent reports whether server stats agree with the installed lists.
// When the server counts exactly what was delivered, every severity must
// match; when it counts more, no severity may fall short of the delivered one.
func (s *Store) consistent(stats domain.Stats) bool {
	derived := s.CurrentStats()
	if stats.Mapped != derived.Mapped || stats.Total < derived.Total {
		return false
	}
	sum := 0
	for sev, n := range stats.Severity {
		if !sev.Valid() || n < 0 {
			return false
		}
		sum += n
	}
	if sum != stats.Total {
		return false
	}
	exact := stats.Total == derived.Total
	for sev, want := range derived.Severity {
		got := stats.Severity[sev]
		if got < want || (exact && got != want) {
			return false
		}
	}
	return true
}

func copyStats(in domain.Stats) domain.Stats {
	out := domain.NewStats()
	out.Total, out.Mapped = in.Total, in.Mapped
	for k, v := range in.Severity {
		out.Severity[k] = v
	}
	return out
}
