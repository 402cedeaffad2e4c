package models

import (
	"time"
)

type Activity string

const (
	ActivityIdle      Activity = "idle"
	ActivityCommuting Activity = "commuting"
	ActivityWorking   Activity = "working"
	ActivityLunch     Activity = "lunch"
)

type CommuteDirection string

const (
	DirectionToWork CommuteDirection = "to_work"
	DirectionToHome CommuteDirection = "to_home"
)

// Opposite returns the reverse commute direction.
func (d CommuteDirection) Opposite() CommuteDirection {
	if d == DirectionToWork {
		return DirectionToHome
	}
	return DirectionToWork
}

// Session represents one continuous span of a single activity for one user.
// At most one session per user may have a nil EndedAt at any time.
type Session struct {
	ID        string           `json:"id"`
	UserID    int64            `json:"user_id"`
	Activity  Activity         `json:"activity"`
	Direction CommuteDirection `json:"direction,omitempty"` // set iff Activity == ActivityCommuting
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	Note      string           `json:"note,omitempty"`
}

// Active reports whether the session is still running.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// Duration returns the elapsed time of the session, using now for an
// still-active session.
func (s *Session) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(s.StartedAt)
}

// DurationHours is Duration expressed in fractional hours.
func (s *Session) DurationHours(now time.Time) float64 {
	return s.Duration(now).Hours()
}
