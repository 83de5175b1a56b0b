package service

import (
	"context"
	"fmt"

	"japa/internal/ledger"
	id "japa/pkg/domain"
	dErrors "japa/pkg/domain-errors"
)

// replayPageSize bounds one ListByProfile page during replay.
const replayPageSize = 1000

// aggregates returns the profile's lifetime count and day buckets, warming
// the cache from the event log when cold. When both the cache and the log
// are unreachable it serves the in-process last-known snapshot rather than
// failing the read outright.
func (s *Service) aggregates(ctx context.Context, profileID id.ProfileID) (int64, map[id.Day]int64, error) {
	lifetime, days, err := s.warmAggregates(ctx, profileID)
	if err == nil {
		s.rememberSnapshot(profileID, lifetime, days)
		return lifetime, days, nil
	}

	if prev, ok := s.lastKnown.Load(profileID); ok {
		snap := prev.(*snapshot)
		s.metrics.IncrementDegradedRead()
		s.logger.WarnContext(ctx, "serving last-known aggregates",
			"profile_id", profileID,
			"error", err,
		)
		return snap.lifetime, snap.days, nil
	}
	return 0, nil, err
}

// warmAggregates reads the cached aggregates, rebuilding from the event
// log on a cold cache. Concurrent cold reads for the same profile collapse
// into a single rebuild.
func (s *Service) warmAggregates(ctx context.Context, profileID id.ProfileID) (int64, map[id.Day]int64, error) {
	lifetime, found, err := s.cache.Lifetime(ctx, profileID)
	if err == nil && found {
		days, daysErr := s.cache.Days(ctx, profileID)
		if daysErr == nil {
			return lifetime, days, nil
		}
		err = daysErr
	}
	if err != nil {
		s.logger.WarnContext(ctx, "aggregate cache read failed, rebuilding from log",
			"profile_id", profileID,
			"error", err,
		)
	}
	return s.rebuildAggregates(ctx, profileID)
}

// rebuildAggregates recomputes the profile's aggregates from the event log
// and installs them in the cache. Collapsed per profile via singleflight;
// a cache write failure is tolerated because the computed values are still
// correct for this read.
func (s *Service) rebuildAggregates(ctx context.Context, profileID id.ProfileID) (int64, map[id.Day]int64, error) {
	type rebuilt struct {
		lifetime int64
		days     map[id.Day]int64
	}

	v, err, _ := s.rebuild.Do(profileID.String(), func() (interface{}, error) {
		days, err := s.events.DayCounts(ctx, profileID, s.loc)
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeStorageUnavailable, "rebuild aggregates from event log", err)
		}
		var lifetime int64
		for _, count := range days {
			lifetime += count
		}

		if err := s.cache.ReplaceAll(ctx, profileID, lifetime, days); err != nil {
			s.logger.WarnContext(ctx, "rebuilt aggregates not cached",
				"profile_id", profileID,
				"error", err,
			)
		}
		s.metrics.IncrementRebuild()
		s.logger.InfoContext(ctx, "aggregate cache rebuilt",
			"profile_id", profileID,
			"lifetime_count", lifetime,
			"active_days", len(days),
		)
		return rebuilt{lifetime: lifetime, days: days}, nil
	})
	if err != nil {
		return 0, nil, err
	}
	r := v.(rebuilt)
	return r.lifetime, r.days, nil
}

// Reconcile replays the profile's full event log and compares the result
// with the cached aggregates. On disagreement the cache is discarded and
// rewritten from the replay; the corruption is reported to operators, never
// to clients. Returns whether a mismatch was found.
func (s *Service) Reconcile(ctx context.Context, profileID id.ProfileID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Reconcile")
	defer span.End()

	unlock := s.locks.lock(profileID)
	defer unlock()

	lifetime, days, err := s.replay(ctx, profileID)
	if err != nil {
		return false, err
	}

	cachedLifetime, found, err := s.cache.Lifetime(ctx, profileID)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeStorageUnavailable, "read cached lifetime count", err)
	}
	if !found {
		if err := s.cache.ReplaceAll(ctx, profileID, lifetime, days); err != nil {
			return false, dErrors.Wrap(dErrors.CodeStorageUnavailable, "install replayed aggregates", err)
		}
		s.metrics.IncrementRebuild()
		s.rememberSnapshot(profileID, lifetime, days)
		return false, nil
	}

	cachedDays, err := s.cache.Days(ctx, profileID)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeStorageUnavailable, "read cached day buckets", err)
	}

	if cachedLifetime == lifetime && equalDays(cachedDays, days) {
		s.rememberSnapshot(profileID, lifetime, days)
		return false, nil
	}

	s.metrics.IncrementMismatch()
	s.logger.ErrorContext(ctx, "aggregates disagree with replay, rebuilding",
		"profile_id", profileID,
		"cached_lifetime", cachedLifetime,
		"replayed_lifetime", lifetime,
		"error", dErrors.New(dErrors.CodeAggregationCorrupt, "cached aggregates diverged from event log"),
	)
	if err := s.cache.ReplaceAll(ctx, profileID, lifetime, days); err != nil {
		return true, dErrors.Wrap(dErrors.CodeStorageUnavailable, "install replayed aggregates", err)
	}
	s.rememberSnapshot(profileID, lifetime, days)
	return true, nil
}

// ReconcileAll sweeps every profile present in the event log.
func (s *Service) ReconcileAll(ctx context.Context) (ledger.ReconcileReport, error) {
	profiles, err := s.events.Profiles(ctx)
	if err != nil {
		return ledger.ReconcileReport{}, dErrors.Wrap(dErrors.CodeStorageUnavailable, "list profiles", err)
	}

	report := ledger.ReconcileReport{}
	for _, profileID := range profiles {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		mismatch, err := s.Reconcile(ctx, profileID)
		if err != nil {
			return report, fmt.Errorf("reconcile profile %s: %w", profileID, err)
		}
		report.ProfilesChecked++
		if mismatch {
			report.Mismatches++
		}
	}
	return report, nil
}

// replay folds the profile's entire event log into aggregates, paging
// through the keyset cursor so memory stays bounded.
func (s *Service) replay(ctx context.Context, profileID id.ProfileID) (int64, map[id.Day]int64, error) {
	var lifetime int64
	days := make(map[id.Day]int64)
	cursor := ledger.Cursor{}

	for {
		events, err := s.events.ListByProfile(ctx, profileID, cursor, replayPageSize)
		if err != nil {
			return 0, nil, dErrors.Wrap(dErrors.CodeStorageUnavailable, "replay event log", err)
		}
		for _, evt := range events {
			lifetime++
			days[id.DayOf(evt.OccurredAt, s.loc)]++
		}
		if len(events) < replayPageSize {
			return lifetime, days, nil
		}
		last := events[len(events)-1]
		cursor = ledger.Cursor{OccurredAt: last.OccurredAt, Seq: last.Seq}
	}
}

func equalDays(a, b map[id.Day]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for day, count := range a {
		if b[day] != count {
			return false
		}
	}
	return true
}
