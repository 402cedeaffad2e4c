package models

import (
	"errors"
	"time"
)

// ErrThresholdTooLow rejects forgot-shutdown thresholds that would flag a
// session the moment it starts.
var ErrThresholdTooLow = errors.New("forgot-shutdown threshold must be greater than 100 percent")

// User represents a registered bot user with their tracking preferences.
// The Telegram user id is the primary identity; ChatID is where
// notifications are delivered.
type User struct {
	ID               int64  `json:"id"`
	ChatID           int64  `json:"chat_id"`
	Admin            bool   `json:"admin"`
	UTCOffsetMinutes int    `json:"utc_offset_minutes"`
	LunchReminderAt  string `json:"lunch_reminder_at,omitempty"` // "HH:MM", empty = disabled

	TargetWorkHours                *float64 `json:"target_work_hours,omitempty"`
	ForgotShutdownThresholdPercent *int     `json:"forgot_shutdown_threshold_percent,omitempty"`
	MaxWorkHours                   *float64 `json:"max_work_hours,omitempty"`
	MaxCommuteHours                *float64 `json:"max_commute_hours,omitempty"`
	MaxLunchHours                  *float64 `json:"max_lunch_hours,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MaxHoursFor returns the auto-shutdown cap configured for the given
// activity, or nil when no cap is set.
func (u *User) MaxHoursFor(a Activity) *float64 {
	switch a {
	case ActivityWorking:
		return u.MaxWorkHours
	case ActivityCommuting:
		return u.MaxCommuteHours
	case ActivityLunch:
		return u.MaxLunchHours
	}
	return nil
}

// ValidateThresholdPercent checks a forgot-shutdown threshold before it is
// stored. Values at or below 100 would trigger immediately.
func ValidateThresholdPercent(percent int) error {
	if percent <= 100 {
		return ErrThresholdTooLow
	}
	return nil
}

// LocalTime converts a UTC instant to the user's local time using their
// fixed offset. No daylight-saving awareness.
func (u *User) LocalTime(t time.Time) time.Time {
	return t.UTC().Add(time.Duration(u.UTCOffsetMinutes) * time.Minute)
}
