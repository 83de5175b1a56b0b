// Package service implements the ledger facade: the only surface callers
// touch. It composes the event store (source of truth), the aggregate
// cache (derived counters), the clock (day boundaries), and the streak
// calculator.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"japa/internal/ledger"
	"japa/internal/ledger/metrics"
	"japa/internal/ledger/streak"
	"japa/internal/platform/clock"
	id "japa/pkg/domain"
	dErrors "japa/pkg/domain-errors"
	"japa/pkg/requestcontext"
)

// Service is the ledger facade. All writes for one profile serialize
// through a per-profile lock so the append-then-increment sequence of two
// near-simultaneous modalities (manual tap, audio detection) can never
// interleave and lose an update.
type Service struct {
	events  ledger.EventStore
	cache   ledger.AggregateCache
	clk     clock.Clock
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	locks   profileLocks
	rebuild singleflight.Group

	// lastKnown holds the most recent aggregates successfully served per
	// profile, so reads can degrade gracefully during storage outages.
	lastKnown sync.Map // id.ProfileID -> *snapshot
}

type snapshot struct {
	lifetime int64
	days     map[id.Day]int64
}

// New constructs the ledger facade.
func New(events ledger.EventStore, cache ledger.AggregateCache, clk clock.Clock, loc *time.Location, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		events:  events,
		cache:   cache,
		clk:     clk,
		loc:     loc,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("japa/ledger"),
		locks:   profileLocks{locks: make(map[id.ProfileID]*sync.Mutex)},
	}
}

// today returns the current calendar date per the clock and configured
// bucketing zone.
func (s *Service) today() id.Day {
	return id.DayOf(s.clk.Now(), s.loc)
}

// RecordRepetition validates, appends, and aggregates one repetition
// stamped with the current instant, returning the updated totals
// synchronously so the caller never races a follow-up read.
func (s *Service) RecordRepetition(ctx context.Context, profileID id.ProfileID, source id.Source, dedupKey string) (ledger.Totals, error) {
	return s.RecordRepetitionAt(ctx, profileID, source, dedupKey, s.clk.Now())
}

// RecordRepetitionAt records a repetition at an explicit instant. Detector
// messages carry their own detection time, which may lag consumption.
// Once the append has committed, the event is counted: the aggregate
// update runs to completion even if ctx is cancelled.
func (s *Service) RecordRepetitionAt(ctx context.Context, profileID id.ProfileID, source id.Source, dedupKey string, occurredAt time.Time) (ledger.Totals, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger.RecordRepetition",
		trace.WithAttributes(attribute.String("source", source.String())))
	defer span.End()

	if _, err := id.ParseProfileID(profileID.String()); err != nil {
		s.logger.WarnContext(ctx, "record dropped - invalid profile",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return ledger.Totals{}, err
	}
	if _, err := id.ParseSource(source.String()); err != nil {
		return ledger.Totals{}, err
	}

	unlock := s.locks.lock(profileID)
	defer unlock()

	// Warm the cache before incrementing: HINCRBY on a cold cache would
	// start the lifetime counter at 1 and erase prior history.
	if _, _, err := s.warmAggregates(ctx, profileID); err != nil {
		return ledger.Totals{}, err
	}

	occurredAt = occurredAt.UTC()
	day := id.DayOf(occurredAt, s.loc)
	evt := ledger.RepetitionEvent{
		ID:         id.NewEventID(),
		ProfileID:  profileID,
		Source:     source,
		OccurredAt: occurredAt,
		DedupKey:   dedupKey,
	}

	eventID, inserted, err := s.events.Append(ctx, evt)
	if err != nil {
		return ledger.Totals{}, dErrors.Wrap(dErrors.CodeStorageUnavailable, "event store append failed", err)
	}

	if !inserted {
		s.metrics.IncrementDuplicate()
		s.logger.DebugContext(ctx, "duplicate submission ignored",
			"profile_id", profileID,
			"event_id", eventID,
			"dedup_key", dedupKey,
		)
		return s.currentTotals(ctx, profileID, s.today())
	}

	// The event is durable now; finish counting it even on cancellation.
	commitCtx := context.WithoutCancel(ctx)
	lifetime, today, err := s.cache.Increment(commitCtx, profileID, day)
	if err != nil {
		// The cache is derived state: discard it and recompute from the
		// log rather than leaving a counter that missed this event.
		s.logger.WarnContext(ctx, "aggregate increment failed, invalidating cache",
			"profile_id", profileID,
			"error", err,
		)
		if invErr := s.cache.Invalidate(commitCtx, profileID); invErr != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed",
				"profile_id", profileID,
				"error", invErr,
			)
		}
		return s.currentTotals(commitCtx, profileID, s.today())
	}

	s.rememberIncrement(profileID, day, lifetime, today)

	// A backdated event (consumer lag past midnight) lands in an earlier
	// bucket; the totals still report the clock's current date.
	if currentDay := s.today(); day != currentDay {
		today, err = s.cache.DayCount(commitCtx, profileID, currentDay)
		if err != nil {
			s.logger.WarnContext(ctx, "today count read failed after backdated record",
				"profile_id", profileID,
				"error", err,
			)
			today = 0
		}
	}

	s.metrics.IncrementRecorded(source.String())
	s.metrics.ObserveRecordLatency(time.Since(start))
	s.logger.DebugContext(ctx, "repetition recorded",
		"profile_id", profileID,
		"event_id", eventID,
		"source", source,
		"day", day,
		"lifetime_count", lifetime,
		"client", requestcontext.UserAgent(ctx),
	)
	return ledger.Totals{LifetimeCount: lifetime, TodayCount: today}, nil
}

// LifetimeCount returns the profile's total repetitions, 0 for a profile
// with no history. Pure read: never writes to the event log.
func (s *Service) LifetimeCount(ctx context.Context, profileID id.ProfileID) (int64, error) {
	if _, err := id.ParseProfileID(profileID.String()); err != nil {
		return 0, err
	}

	lifetime, found, err := s.cache.Lifetime(ctx, profileID)
	if err == nil && found {
		return lifetime, nil
	}
	lifetime, _, aggErr := s.aggregates(ctx, profileID)
	if aggErr != nil {
		return 0, aggErr
	}
	return lifetime, nil
}

// TodayCount returns the profile's count for the current calendar date,
// 0 when no bucket exists yet. A date rollover makes this drop to 0 on
// its own: the new date simply has no bucket.
func (s *Service) TodayCount(ctx context.Context, profileID id.ProfileID) (int64, error) {
	if _, err := id.ParseProfileID(profileID.String()); err != nil {
		return 0, err
	}

	day := s.today()
	_, found, err := s.cache.Lifetime(ctx, profileID)
	if err == nil && found {
		return s.cache.DayCount(ctx, profileID, day)
	}
	_, days, aggErr := s.aggregates(ctx, profileID)
	if aggErr != nil {
		return 0, aggErr
	}
	return days[day], nil
}

// ActiveDays returns every calendar date the profile practiced on, sorted
// ascending. Empty for a profile with no history.
func (s *Service) ActiveDays(ctx context.Context, profileID id.ProfileID) ([]id.Day, error) {
	if _, err := id.ParseProfileID(profileID.String()); err != nil {
		return nil, err
	}
	_, days, err := s.aggregates(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return streak.ActiveDays(days), nil
}

// Stats returns the full read surface behind the stats cards.
func (s *Service) Stats(ctx context.Context, profileID id.ProfileID) (ledger.Stats, error) {
	if _, err := id.ParseProfileID(profileID.String()); err != nil {
		return ledger.Stats{}, err
	}

	ctx, span := s.tracer.Start(ctx, "ledger.Stats")
	defer span.End()

	lifetime, days, err := s.aggregates(ctx, profileID)
	if err != nil {
		return ledger.Stats{}, err
	}

	today := s.today()
	active := streak.ActiveDays(days)
	return ledger.Stats{
		LifetimeCount:  lifetime,
		TodayCount:     days[today],
		WeekCount:      streak.WeekCount(days, today),
		DailyAverage:   streak.DailyAverage(lifetime, len(active)),
		CurrentStreak:  streak.Current(active, today),
		LongestStreak:  streak.Longest(active),
		ActiveDayCount: len(active),
	}, nil
}

// currentTotals reads totals through the regular aggregate path. Used
// after dedup hits and cache failures, where the incremented values are
// not at hand.
func (s *Service) currentTotals(ctx context.Context, profileID id.ProfileID, day id.Day) (ledger.Totals, error) {
	lifetime, days, err := s.aggregates(ctx, profileID)
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.Totals{LifetimeCount: lifetime, TodayCount: days[day]}, nil
}

// rememberIncrement keeps the in-process last-known snapshot current.
func (s *Service) rememberIncrement(profileID id.ProfileID, day id.Day, lifetime, today int64) {
	days := map[id.Day]int64{day: today}
	if prev, ok := s.lastKnown.Load(profileID); ok {
		for d, c := range prev.(*snapshot).days {
			if d != day {
				days[d] = c
			}
		}
	}
	s.lastKnown.Store(profileID, &snapshot{lifetime: lifetime, days: days})
}

// rememberSnapshot stores a full aggregate view for degraded reads.
func (s *Service) rememberSnapshot(profileID id.ProfileID, lifetime int64, days map[id.Day]int64) {
	copied := make(map[id.Day]int64, len(days))
	for d, c := range days {
		copied[d] = c
	}
	s.lastKnown.Store(profileID, &snapshot{lifetime: lifetime, days: copied})
}

// profileLocks hands out one mutex per profile, created on first use.
type profileLocks struct {
	mu    sync.Mutex
	locks map[id.ProfileID]*sync.Mutex
}

func (l *profileLocks) lock(profileID id.ProfileID) (unlock func()) {
	l.mu.Lock()
	m := l.locks[profileID]
	if m == nil {
		m = &sync.Mutex{}
		l.locks[profileID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
