// Package report computes aggregates over a user's tracking sessions.
// Every function is pure: it consumes a pre-fetched session list and a
// reference instant, keeps full float precision, and leaves rounding to
// the presentation layer.
package report

import (
	"sort"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
)

// Summary is the per-period aggregate over a session list.
type Summary struct {
	WorkHours    float64
	CommuteHours float64
	LunchHours   float64
	// WorkDays counts distinct calendar dates (by session start) with at
	// least one working session.
	WorkDays int
	// TotalDurationHours spans the earliest session start to the latest
	// session end (or now for a still-active one); nil when the session
	// list is empty.
	TotalDurationHours *float64
}

// DailyAverages divides activity totals over the trailing window by the
// number of work days, so inactive days do not dilute the result.
type DailyAverages struct {
	AvgWorkHours    float64
	AvgCommuteHours float64
	AvgLunchHours   float64
	WorkDays        int
}

// WeekdayPattern describes commute behavior for one day of the week.
type WeekdayPattern struct {
	Weekday              time.Weekday
	SessionCount         int
	AverageDurationHours float64
	// OptimalStartHour is the local start hour with the lowest average
	// commute duration, set only when that hour has at least two samples.
	OptimalStartHour      *int
	ShortestDurationHours *float64
}

// DayBreakdown is one calendar date of a breakdown range.
type DayBreakdown struct {
	Date               time.Time
	HasActivity        bool
	WorkHours          float64
	CommuteHours       float64
	LunchHours         float64
	TotalDurationHours *float64
}

func sessionEnd(s *models.Session, now time.Time) time.Time {
	if s.EndedAt != nil {
		return *s.EndedAt
	}
	return now
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summarize computes the period aggregate for a session list.
func Summarize(sessions []*models.Session, now time.Time) Summary {
	var summary Summary
	if len(sessions) == 0 {
		return summary
	}

	workDates := make(map[time.Time]struct{})
	earliest := sessions[0].StartedAt
	latest := sessionEnd(sessions[0], now)

	for _, s := range sessions {
		hours := s.DurationHours(now)
		switch s.Activity {
		case models.ActivityWorking:
			summary.WorkHours += hours
			workDates[dateOf(s.StartedAt)] = struct{}{}
		case models.ActivityCommuting:
			summary.CommuteHours += hours
		case models.ActivityLunch:
			summary.LunchHours += hours
		}

		if s.StartedAt.Before(earliest) {
			earliest = s.StartedAt
		}
		if end := sessionEnd(s, now); end.After(latest) {
			latest = end
		}
	}

	summary.WorkDays = len(workDates)
	total := latest.Sub(earliest).Hours()
	summary.TotalDurationHours = &total
	return summary
}

// Averages restricts the sessions to the trailing N days and divides the
// per-activity totals by the number of work days. Zero work days yields
// all-zero averages rather than a division fault.
func Averages(sessions []*models.Session, days int, now time.Time) DailyAverages {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var trailing []*models.Session
	for _, s := range sessions {
		if !s.StartedAt.Before(cutoff) {
			trailing = append(trailing, s)
		}
	}

	summary := Summarize(trailing, now)
	averages := DailyAverages{WorkDays: summary.WorkDays}
	if summary.WorkDays == 0 {
		return averages
	}

	n := float64(summary.WorkDays)
	averages.AvgWorkHours = summary.WorkHours / n
	averages.AvgCommuteHours = summary.CommuteHours / n
	averages.AvgLunchHours = summary.LunchHours / n
	return averages
}

// CommutePatterns groups commute sessions of one direction by the user's
// local day of week. Hours-of-day statistics use the user's fixed UTC
// offset; a start hour qualifies as optimal only with two or more
// samples, a single observation is noise.
func CommutePatterns(sessions []*models.Session, direction models.CommuteDirection, utcOffsetMinutes int, now time.Time) []WeekdayPattern {
	offset := time.Duration(utcOffsetMinutes) * time.Minute

	type bucket struct {
		durations []float64
		byHour    map[int][]float64
	}
	byWeekday := make(map[time.Weekday]*bucket)

	for _, s := range sessions {
		if s.Activity != models.ActivityCommuting || s.Direction != direction {
			continue
		}
		local := s.StartedAt.UTC().Add(offset)
		b, exists := byWeekday[local.Weekday()]
		if !exists {
			b = &bucket{byHour: make(map[int][]float64)}
			byWeekday[local.Weekday()] = b
		}
		hours := s.DurationHours(now)
		b.durations = append(b.durations, hours)
		b.byHour[local.Hour()] = append(b.byHour[local.Hour()], hours)
	}

	patterns := make([]WeekdayPattern, 0, len(byWeekday))
	for weekday, b := range byWeekday {
		pattern := WeekdayPattern{
			Weekday:              weekday,
			SessionCount:         len(b.durations),
			AverageDurationHours: mean(b.durations),
		}

		for hour, samples := range b.byHour {
			if len(samples) < 2 {
				continue
			}
			avg := mean(samples)
			if pattern.ShortestDurationHours == nil || avg < *pattern.ShortestDurationHours {
				h, a := hour, avg
				pattern.OptimalStartHour = &h
				pattern.ShortestDurationHours = &a
			}
		}
		patterns = append(patterns, pattern)
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Weekday < patterns[j].Weekday })
	return patterns
}

// DailyBreakdown produces one row per UTC calendar date in [from, to),
// including dates with no activity. Sessions belong to the date they
// started on.
func DailyBreakdown(sessions []*models.Session, from, to, now time.Time) []DayBreakdown {
	byDate := make(map[time.Time][]*models.Session)
	for _, s := range sessions {
		date := dateOf(s.StartedAt)
		byDate[date] = append(byDate[date], s)
	}

	var breakdown []DayBreakdown
	for date := dateOf(from); date.Before(to); date = date.Add(24 * time.Hour) {
		daily := byDate[date]
		row := DayBreakdown{Date: date}
		if len(daily) == 0 {
			breakdown = append(breakdown, row)
			continue
		}

		row.HasActivity = true
		first := daily[0].StartedAt
		last := sessionEnd(daily[0], now)
		for _, s := range daily {
			hours := s.DurationHours(now)
			switch s.Activity {
			case models.ActivityWorking:
				row.WorkHours += hours
			case models.ActivityCommuting:
				row.CommuteHours += hours
			case models.ActivityLunch:
				row.LunchHours += hours
			}
			if s.StartedAt.Before(first) {
				first = s.StartedAt
			}
			if end := sessionEnd(s, now); end.After(last) {
				last = end
			}
		}
		total := last.Sub(first).Hours()
		row.TotalDurationHours = &total
		breakdown = append(breakdown, row)
	}
	return breakdown
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
