package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidTimeRange = errors.New("session end must not be before start")
	ErrReopenNotAllowed = errors.New("cannot reopen an ended session")
)

type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultStarted
	ResultEnded
)

// Result is what a tracking request produced: a started session
// (possibly replacing an ended one), an ended session, or nothing.
type Result struct {
	Kind    ResultKind
	Started *models.Session
	Ended   *models.Session
}

// Service orchestrates the transition machine against persisted state.
// The load-decide-persist sequence is a critical section per user: a
// chat command racing a monitor sweep over the same user must not both
// act on the same read of the active session.
type Service struct {
	storage storage.SessionStorage
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(storage storage.SessionStorage, logger *zap.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		locks:   make(map[int64]*sync.Mutex),
	}
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[userID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// StartActivity applies a user's tracking request at the given instant.
// Exactly one insert and/or one update is persisted per call; a storage
// failure propagates unchanged with no partial write.
func (s *Service) StartActivity(ctx context.Context, userID int64, activity models.Activity, at time.Time) (Result, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	active, err := s.storage.GetActiveSession(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	// Derived facts, recomputed from the session log on every decision
	// rather than cached on the user record.
	var lastDirection *models.CommuteDirection
	var workedToday bool
	if activity == models.ActivityCommuting {
		lastDirection, err = s.storage.GetLastCommuteDirection(ctx, userID)
		if err != nil {
			return Result{}, err
		}
		workedToday, err = s.storage.HasWorkedOn(ctx, userID, at)
		if err != nil {
			return Result{}, err
		}
	}

	outcome, err := Decide(userID, activity, at, active, lastDirection, workedToday)
	if err != nil {
		return Result{}, err
	}

	switch outcome.Kind {
	case OutcomeEnd:
		closed, err := s.storage.CloseSession(ctx, outcome.SessionToEnd.ID, at)
		if err != nil {
			return Result{}, err
		}
		if !closed {
			s.logger.Warn("Active session already closed concurrently",
				zap.String("session_id", outcome.SessionToEnd.ID),
				zap.Int64("user_id", userID))
		}
		ended := *outcome.SessionToEnd
		endedAt := at
		ended.EndedAt = &endedAt
		return Result{Kind: ResultEnded, Ended: &ended}, nil

	case OutcomeStart:
		if outcome.SessionToEnd != nil {
			if err := s.storage.SwitchSession(ctx, outcome.SessionToEnd.ID, at, outcome.NewSession); err != nil {
				return Result{}, err
			}
			ended := *outcome.SessionToEnd
			endedAt := at
			ended.EndedAt = &endedAt
			return Result{Kind: ResultStarted, Started: outcome.NewSession, Ended: &ended}, nil
		}
		if err := s.storage.CreateSession(ctx, outcome.NewSession); err != nil {
			return Result{}, err
		}
		return Result{Kind: ResultStarted, Started: outcome.NewSession}, nil
	}

	return Result{Kind: ResultNone}, nil
}

// EditSession shifts the timestamps of an existing session. An ended
// session stays ended; an active one may be closed by supplying an end.
func (s *Service) EditSession(ctx context.Context, userID int64, sessionID string, start time.Time, end *time.Time) (*models.Session, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if end != nil && end.Before(start) {
		return nil, ErrInvalidTimeRange
	}
	if session.EndedAt != nil && end == nil {
		return nil, ErrReopenNotAllowed
	}

	session.StartedAt = start
	session.EndedAt = end
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
