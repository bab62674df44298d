// Package store holds the pipeline's append-only collections of raw events,
// prepared records, and anomalies, with role-scoped time-ranged queries.
package store

import (
	"sync"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Store keeps the three pipeline collections in memory. Records are only
// ever appended; queries return copies. A single RWMutex makes the store safe
// for concurrent readers racing the pipeline's writer.
type Store struct {
	mu        sync.RWMutex
	raw       []models.RawEvent
	prepared  []models.PreparedRecord
	anomalies []models.Anomaly
	anomalyIx map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{anomalyIx: make(map[string]int)}
}

// AddRaw appends one raw event. Arrival order is preserved.
func (s *Store) AddRaw(ev models.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, ev)
}

// AddPrepared appends one prepared record. Arrival order is preserved.
func (s *Store) AddPrepared(rec models.PreparedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared = append(s.prepared, rec)
}

// AddAnomaly appends one anomaly. Anomalies are immutable once stored.
func (s *Store) AddAnomaly(a models.Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalyIx[a.ID] = len(s.anomalies)
	s.anomalies = append(s.anomalies, a)
}

// Raw returns the raw events whose timestamps fall inside [start, end],
// both inclusive. A zero start or end leaves that side unbounded.
func (s *Store) Raw(start, end time.Time) []models.RawEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RawEvent
	for _, ev := range s.raw {
		if inRange(ev.Timestamp, start, end) {
			out = append(out, ev)
		}
	}
	return out
}

// Historical returns the prepared records whose timestamps fall inside
// [start, end], both inclusive. A zero start or end leaves that side
// unbounded.
func (s *Store) Historical(start, end time.Time) []models.PreparedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PreparedRecord
	for _, rec := range s.prepared {
		if inRange(rec.Timestamp, start, end) {
			out = append(out, rec)
		}
	}
	return out
}

// Anomalies returns the anomalies visible to the given role with a detection
// time inside [start, end], both inclusive. Each role sees exactly one
// category; an unknown role sees nothing.
func (s *Store) Anomalies(role models.Role, start, end time.Time) []models.Anomaly {
	category, ok := models.CategoryForRole(role)
	if !ok {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Anomaly
	for _, a := range s.anomalies {
		if a.Category == category && inRange(a.DetectedAt, start, end) {
			out = append(out, a)
		}
	}
	return out
}

// Anomaly looks up a single anomaly by id.
func (s *Store) Anomaly(id string) (models.Anomaly, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.anomalyIx[id]
	if !ok {
		return models.Anomaly{}, false
	}
	return s.anomalies[ix], true
}

// Counts reports the size of each collection.
func (s *Store) Counts() (raw, prepared, anomalies int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.raw), len(s.prepared), len(s.anomalies)
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}
