// Package streak derives active-day and streak statistics from day
// buckets. Pure functions over immutable inputs; the facade feeds it
// cached buckets and the clock's idea of today.
package streak

import (
	"sort"

	id "japa/pkg/domain"
)

// ActiveDays returns the dates with a positive count, sorted ascending.
func ActiveDays(days map[id.Day]int64) []id.Day {
	active := make([]id.Day, 0, len(days))
	for day, count := range days {
		if count > 0 {
			active = append(active, day)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Before(active[j]) })
	return active
}

// Current returns the length of the consecutive run of active days ending
// at today. A run ending yesterday still counts (the streak survives until
// today is missed for good); a gap before yesterday breaks it to 0.
func Current(active []id.Day, today id.Day) int {
	if len(active) == 0 {
		return 0
	}
	isActive := make(map[id.Day]bool, len(active))
	for _, day := range active {
		isActive[day] = true
	}

	end := today
	if !isActive[end] {
		end = today.Prev()
		if !isActive[end] {
			return 0
		}
	}

	run := 0
	for day := end; isActive[day]; day = day.Prev() {
		run++
	}
	return run
}

// Longest returns the maximal consecutive run length anywhere in the
// active-day set.
func Longest(active []id.Day) int {
	if len(active) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(active); i++ {
		if active[i].DaysSince(active[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// WeekCount sums the buckets of the seven calendar dates ending at today.
func WeekCount(days map[id.Day]int64, today id.Day) int64 {
	var total int64
	day := today
	for i := 0; i < 7; i++ {
		total += days[day]
		day = day.Prev()
	}
	return total
}

// DailyAverage is the lifetime count spread over the days actually
// practiced. 0 when there is no history yet.
func DailyAverage(lifetime int64, activeDayCount int) float64 {
	if activeDayCount == 0 {
		return 0
	}
	return float64(lifetime) / float64(activeDayCount)
}
