package handler

// totalsResponse answers a record call with the counts the client should
// display immediately.
type totalsResponse struct {
	LifetimeCount int64 `json:"lifetime_count"`
	TodayCount    int64 `json:"today_count"`
}

// statsResponse is the full stats card payload.
type statsResponse struct {
	LifetimeCount  int64   `json:"lifetime_count"`
	TodayCount     int64   `json:"today_count"`
	WeekCount      int64   `json:"week_count"`
	DailyAverage   float64 `json:"daily_average"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	ActiveDayCount int     `json:"active_day_count"`
}

// activeDaysResponse lists practiced dates ascending, for calendar views.
type activeDaysResponse struct {
	ActiveDays []string `json:"active_days"`
}
