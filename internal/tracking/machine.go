package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/worklog-bot/internal/models"
)

// ErrIdleRequested is returned when a caller asks to start Idle. Idle is
// the absence of a session, never a session itself; requesting it is a
// programming error at the call site.
var ErrIdleRequested = errors.New("idle is not a startable activity")

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeStart
	OutcomeEnd
)

// Outcome is the closed set of transition decisions. Kind selects the
// variant; NewSession is set for OutcomeStart, SessionToEnd whenever the
// decision ends a running session (alone, or alongside a new start).
type Outcome struct {
	Kind         OutcomeKind
	NewSession   *models.Session
	SessionToEnd *models.Session
}

// Decide is the pure transition function for a user's tracking state.
// Given the currently active session (nil when idle), the most recent
// commute direction (nil when the user never commuted) and whether the
// user already worked today, it decides what a request for the given
// activity should do. It never mutates its inputs; all side effects
// belong to the caller.
func Decide(userID int64, requested models.Activity, at time.Time, active *models.Session, lastDirection *models.CommuteDirection, workedToday bool) (Outcome, error) {
	switch requested {
	case models.ActivityCommuting, models.ActivityWorking, models.ActivityLunch:
	case models.ActivityIdle:
		return Outcome{}, ErrIdleRequested
	default:
		return Outcome{}, fmt.Errorf("unknown activity %q", requested)
	}

	// Toggle: re-requesting the running activity ends it. Direction is
	// irrelevant to the match for commutes.
	if active != nil && active.Activity == requested {
		return Outcome{Kind: OutcomeEnd, SessionToEnd: active}, nil
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Activity:  requested,
		StartedAt: at,
	}
	if requested == models.ActivityCommuting {
		session.Direction = commuteDirection(lastDirection, workedToday)
	}

	// Exclusive replacement when a different activity is running.
	if active != nil {
		return Outcome{Kind: OutcomeStart, NewSession: session, SessionToEnd: active}, nil
	}
	return Outcome{Kind: OutcomeStart, NewSession: session}, nil
}

// commuteDirection picks the direction of a fresh commute: the first
// commute ever heads to work, a commute after working heads home, and a
// second commute without working in between alternates back.
func commuteDirection(last *models.CommuteDirection, workedToday bool) models.CommuteDirection {
	if last == nil {
		return models.DirectionToWork
	}
	if workedToday {
		return models.DirectionToHome
	}
	return last.Opposite()
}
