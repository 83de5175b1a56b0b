package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"japa/internal/ledger"
	id "japa/pkg/domain"
)

// InMemoryStore implements ledger.EventStore with process-local state.
// Used in tests and when DATABASE_URL is unset (dev only, non-durable).
type InMemoryStore struct {
	mu      sync.RWMutex
	nextSeq int64
	events  map[id.ProfileID][]ledger.RepetitionEvent
	dedup   map[id.ProfileID]map[string]id.EventID
}

// NewInMemoryStore creates an empty in-memory event store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[id.ProfileID][]ledger.RepetitionEvent),
		dedup:  make(map[id.ProfileID]map[string]id.EventID),
	}
}

// Append records one event, honoring dedup keys.
func (s *InMemoryStore) Append(_ context.Context, evt ledger.RepetitionEvent) (id.EventID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.DedupKey != "" {
		if existing, ok := s.dedup[evt.ProfileID][evt.DedupKey]; ok {
			return existing, false, nil
		}
	}

	s.nextSeq++
	evt.Seq = s.nextSeq
	s.events[evt.ProfileID] = append(s.events[evt.ProfileID], evt)

	if evt.DedupKey != "" {
		if s.dedup[evt.ProfileID] == nil {
			s.dedup[evt.ProfileID] = make(map[string]id.EventID)
		}
		s.dedup[evt.ProfileID][evt.DedupKey] = evt.ID
	}
	return evt.ID, true, nil
}

// ListByProfile pages events in (occurred_at, seq) order after the cursor.
func (s *InMemoryStore) ListByProfile(_ context.Context, profileID id.ProfileID, after ledger.Cursor, limit int) ([]ledger.RepetitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]ledger.RepetitionEvent, len(s.events[profileID]))
	copy(ordered, s.events[profileID])
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var page []ledger.RepetitionEvent
	for _, evt := range ordered {
		if !afterCursor(evt, after) {
			continue
		}
		page = append(page, evt)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func afterCursor(evt ledger.RepetitionEvent, c ledger.Cursor) bool {
	if evt.OccurredAt.After(c.OccurredAt) {
		return true
	}
	return evt.OccurredAt.Equal(c.OccurredAt) && evt.Seq > c.Seq
}

// CountBetween counts events in [startInclusive, endExclusive).
func (s *InMemoryStore) CountBetween(_ context.Context, profileID id.ProfileID, startInclusive, endExclusive time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, evt := range s.events[profileID] {
		if !evt.OccurredAt.Before(startInclusive) && evt.OccurredAt.Before(endExclusive) {
			count++
		}
	}
	return count, nil
}

// DayCounts buckets the profile's history into calendar dates in loc.
func (s *InMemoryStore) DayCounts(_ context.Context, profileID id.ProfileID, loc *time.Location) (map[id.Day]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make(map[id.Day]int64)
	for _, evt := range s.events[profileID] {
		days[id.DayOf(evt.OccurredAt, loc)]++
	}
	return days, nil
}

// Profiles lists every profile with at least one event.
func (s *InMemoryStore) Profiles(_ context.Context) ([]id.ProfileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]id.ProfileID, 0, len(s.events))
	for profile := range s.events {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i] < profiles[j] })
	return profiles, nil
}
