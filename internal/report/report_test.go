package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/worklog-bot/internal/models"
)

var now = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

func session(activity models.Activity, direction models.CommuteDirection, start time.Time, duration time.Duration) *models.Session {
	end := start.Add(duration)
	return &models.Session{
		ID:        start.Format(time.RFC3339) + "/" + string(activity),
		UserID:    1,
		Activity:  activity,
		Direction: direction,
		StartedAt: start,
		EndedAt:   &end,
	}
}

func openSession(activity models.Activity, start time.Time) *models.Session {
	return &models.Session{
		ID:        start.Format(time.RFC3339) + "/open",
		UserID:    1,
		Activity:  activity,
		StartedAt: start,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, now)

	assert.Zero(t, summary.WorkHours)
	assert.Zero(t, summary.WorkDays)
	assert.Nil(t, summary.TotalDurationHours)
}

func TestSummarizeTotals(t *testing.T) {
	day1 := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToWork, day1.Add(8*time.Hour), 30*time.Minute),
		session(models.ActivityWorking, "", day1.Add(9*time.Hour), 4*time.Hour),
		session(models.ActivityLunch, "", day1.Add(13*time.Hour), time.Hour),
		session(models.ActivityWorking, "", day1.Add(14*time.Hour), 4*time.Hour),
		session(models.ActivityCommuting, models.DirectionToHome, day1.Add(18*time.Hour), 45*time.Minute),
		session(models.ActivityWorking, "", day2.Add(9*time.Hour), 2*time.Hour),
	}

	summary := Summarize(sessions, now)

	assert.InDelta(t, 10.0, summary.WorkHours, 1e-9)
	assert.InDelta(t, 1.25, summary.CommuteHours, 1e-9)
	assert.InDelta(t, 1.0, summary.LunchHours, 1e-9)
	assert.Equal(t, 2, summary.WorkDays)
	// Earliest start 08:00 on day 1, latest end 11:00 on day 2.
	require.NotNil(t, summary.TotalDurationHours)
	assert.InDelta(t, 27.0, *summary.TotalDurationHours, 1e-9)
}

func TestSummarizeUsesNowForActiveSession(t *testing.T) {
	sessions := []*models.Session{
		openSession(models.ActivityWorking, now.Add(-90*time.Minute)),
	}

	summary := Summarize(sessions, now)

	assert.InDelta(t, 1.5, summary.WorkHours, 1e-9)
	require.NotNil(t, summary.TotalDurationHours)
	assert.InDelta(t, 1.5, *summary.TotalDurationHours, 1e-9)
}

func TestAveragesDividesByWorkDays(t *testing.T) {
	day1 := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	sessions := []*models.Session{
		session(models.ActivityWorking, "", day1.Add(9*time.Hour), 8*time.Hour),
		session(models.ActivityWorking, "", day2.Add(9*time.Hour), 6*time.Hour),
		session(models.ActivityCommuting, models.DirectionToWork, day1.Add(8*time.Hour), time.Hour),
	}

	averages := Averages(sessions, 7, now)

	// Divided by 2 work days, not by 7 calendar days.
	assert.Equal(t, 2, averages.WorkDays)
	assert.InDelta(t, 7.0, averages.AvgWorkHours, 1e-9)
	assert.InDelta(t, 0.5, averages.AvgCommuteHours, 1e-9)
}

func TestAveragesZeroWorkDays(t *testing.T) {
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToWork, now.Add(-2*time.Hour), time.Hour),
	}

	averages := Averages(sessions, 7, now)

	assert.Zero(t, averages.WorkDays)
	assert.Zero(t, averages.AvgWorkHours)
	assert.Zero(t, averages.AvgCommuteHours)
	assert.Zero(t, averages.AvgLunchHours)
}

func TestAveragesIgnoresSessionsOutsideWindow(t *testing.T) {
	old := session(models.ActivityWorking, "", now.Add(-10*24*time.Hour), 8*time.Hour)
	recent := session(models.ActivityWorking, "", now.Add(-24*time.Hour), 4*time.Hour)

	averages := Averages([]*models.Session{old, recent}, 7, now)

	assert.Equal(t, 1, averages.WorkDays)
	assert.InDelta(t, 4.0, averages.AvgWorkHours, 1e-9)
}

func TestCommutePatternsOptimalHour(t *testing.T) {
	// Commuted Monday 07:00 (25 min) and Monday 08:00 (45 min), each once
	// across two consecutive weeks.
	monday1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	monday2 := monday1.AddDate(0, 0, 7)
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToWork, monday1.Add(7*time.Hour), 25*time.Minute),
		session(models.ActivityCommuting, models.DirectionToWork, monday1.Add(8*time.Hour), 45*time.Minute),
		session(models.ActivityCommuting, models.DirectionToWork, monday2.Add(7*time.Hour), 25*time.Minute),
		session(models.ActivityCommuting, models.DirectionToWork, monday2.Add(8*time.Hour), 45*time.Minute),
	}

	patterns := CommutePatterns(sessions, models.DirectionToWork, 0, now)

	require.Len(t, patterns, 1)
	pattern := patterns[0]
	assert.Equal(t, time.Monday, pattern.Weekday)
	assert.Equal(t, 4, pattern.SessionCount)
	require.NotNil(t, pattern.OptimalStartHour)
	assert.Equal(t, 7, *pattern.OptimalStartHour)
	require.NotNil(t, pattern.ShortestDurationHours)
	assert.InDelta(t, 0.417, *pattern.ShortestDurationHours, 0.001)
}

func TestCommutePatternsSingleSampleIsNotOptimal(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToWork, monday.Add(7*time.Hour), 25*time.Minute),
		session(models.ActivityCommuting, models.DirectionToWork, monday.Add(8*time.Hour), 45*time.Minute),
	}

	patterns := CommutePatterns(sessions, models.DirectionToWork, 0, now)

	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].SessionCount)
	assert.Nil(t, patterns[0].OptimalStartHour)
	assert.Nil(t, patterns[0].ShortestDurationHours)
}

func TestCommutePatternsFiltersDirection(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToWork, monday.Add(7*time.Hour), 25*time.Minute),
		session(models.ActivityCommuting, models.DirectionToHome, monday.Add(17*time.Hour), 40*time.Minute),
		session(models.ActivityWorking, "", monday.Add(9*time.Hour), 8*time.Hour),
	}

	patterns := CommutePatterns(sessions, models.DirectionToHome, 0, now)

	require.Len(t, patterns, 1)
	assert.Equal(t, 1, patterns[0].SessionCount)
	assert.InDelta(t, 40.0/60.0, patterns[0].AverageDurationHours, 1e-9)
}

func TestCommutePatternsAppliesUTCOffset(t *testing.T) {
	// 23:30 UTC on Monday is 01:30 Tuesday at +120 minutes.
	monday := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	sessions := []*models.Session{
		session(models.ActivityCommuting, models.DirectionToHome, monday, 30*time.Minute),
	}

	patterns := CommutePatterns(sessions, models.DirectionToHome, 120, now)

	require.Len(t, patterns, 1)
	assert.Equal(t, time.Tuesday, patterns[0].Weekday)
}

func TestDailyBreakdownIncludesEmptyDays(t *testing.T) {
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)
	sessions := []*models.Session{
		session(models.ActivityWorking, "", from.Add(9*time.Hour), 8*time.Hour),
		session(models.ActivityCommuting, models.DirectionToWork, from.Add(8*time.Hour), 30*time.Minute),
		session(models.ActivityLunch, "", from.AddDate(0, 0, 2).Add(12*time.Hour), time.Hour),
	}

	breakdown := DailyBreakdown(sessions, from, to, now)

	require.Len(t, breakdown, 3)

	assert.True(t, breakdown[0].HasActivity)
	assert.InDelta(t, 8.0, breakdown[0].WorkHours, 1e-9)
	assert.InDelta(t, 0.5, breakdown[0].CommuteHours, 1e-9)
	// 08:00 first start to 17:00 last end.
	require.NotNil(t, breakdown[0].TotalDurationHours)
	assert.InDelta(t, 9.0, *breakdown[0].TotalDurationHours, 1e-9)

	assert.False(t, breakdown[1].HasActivity)
	assert.Zero(t, breakdown[1].WorkHours)
	assert.Nil(t, breakdown[1].TotalDurationHours)

	assert.True(t, breakdown[2].HasActivity)
	assert.InDelta(t, 1.0, breakdown[2].LunchHours, 1e-9)
}
