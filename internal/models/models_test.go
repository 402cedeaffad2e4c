package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionDuration(t *testing.T) {
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Minute)

	active := &Session{StartedAt: start}
	assert.True(t, active.Active())
	assert.Equal(t, 90*time.Minute, active.Duration(now))
	assert.InDelta(t, 1.5, active.DurationHours(now), 1e-9)

	end := start.Add(time.Hour)
	ended := &Session{StartedAt: start, EndedAt: &end}
	assert.False(t, ended.Active())
	// A completed session ignores now.
	assert.Equal(t, time.Hour, ended.Duration(now))
}

func TestCommuteDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionToHome, DirectionToWork.Opposite())
	assert.Equal(t, DirectionToWork, DirectionToHome.Opposite())
}

func TestMaxHoursFor(t *testing.T) {
	work, commute := 8.0, 2.0
	user := &User{MaxWorkHours: &work, MaxCommuteHours: &commute}

	assert.Equal(t, &work, user.MaxHoursFor(ActivityWorking))
	assert.Equal(t, &commute, user.MaxHoursFor(ActivityCommuting))
	assert.Nil(t, user.MaxHoursFor(ActivityLunch))
	assert.Nil(t, user.MaxHoursFor(ActivityIdle))
}

func TestValidateThresholdPercent(t *testing.T) {
	tests := []struct {
		percent int
		valid   bool
	}{
		{percent: 99, valid: false},
		{percent: 100, valid: false},
		{percent: 101, valid: true},
		{percent: 150, valid: true},
	}

	for _, tt := range tests {
		err := ValidateThresholdPercent(tt.percent)
		if tt.valid {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrThresholdTooLow)
		}
	}
}

func TestUserLocalTime(t *testing.T) {
	utc := time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC)
	user := &User{UTCOffsetMinutes: 120}

	local := user.LocalTime(utc)
	assert.Equal(t, 1, local.Hour())
	assert.Equal(t, 30, local.Minute())
	assert.Equal(t, 12, local.Day())
}
