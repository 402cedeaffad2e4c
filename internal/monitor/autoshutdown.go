// Package monitor holds the two periodic sweeps over active sessions:
// the hard auto-shutdown cap and the notify-only forgot-shutdown check.
// Each is a self-contained ticker loop; they share no sweep state.
package monitor

import (
	"context"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/storage"
	"go.uber.org/zap"
)

// AutoShutdown force-ends sessions that exceed their owner's absolute
// per-activity hour cap. Ending is silent; no notification is sent.
type AutoShutdown struct {
	sessions storage.SessionStorage
	users    storage.UserStorage
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewAutoShutdown(sessions storage.SessionStorage, users storage.UserStorage, interval time.Duration, logger *zap.Logger) *AutoShutdown {
	return &AutoShutdown{
		sessions: sessions,
		users:    users,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (m *AutoShutdown) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Auto-shutdown monitor started", zap.Duration("interval", m.interval))

	// Sweep immediately on start
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Auto-shutdown monitor stopping")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *AutoShutdown) sweep(ctx context.Context) {
	if _, err := m.CheckAndShutdown(ctx); err != nil {
		m.logger.Error("Auto-shutdown sweep failed", zap.Error(err))
	}
}

// CheckAndShutdown ends every active session whose elapsed time exceeds
// its owner's cap for that activity and returns the sessions it ended.
// One user's failure never aborts the sweep for the rest.
func (m *AutoShutdown) CheckAndShutdown(ctx context.Context) ([]*models.Session, error) {
	now := m.now().UTC()

	active, err := m.sessions.GetAllActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	var ended []*models.Session
	for _, session := range active {
		user, err := m.users.GetUser(ctx, session.UserID)
		if err != nil {
			m.logger.Error("Failed to load session owner",
				zap.Error(err),
				zap.Int64("user_id", session.UserID),
				zap.String("session_id", session.ID))
			continue
		}
		if user == nil {
			continue
		}

		limit := user.MaxHoursFor(session.Activity)
		if limit == nil {
			continue
		}
		if session.DurationHours(now) <= *limit {
			continue
		}

		closed, err := m.sessions.CloseSession(ctx, session.ID, now)
		if err != nil {
			m.logger.Error("Failed to close overlong session",
				zap.Error(err),
				zap.String("session_id", session.ID),
				zap.Int64("user_id", session.UserID))
			continue
		}
		if !closed {
			// Another sweep or a user command got there first.
			continue
		}

		endedAt := now
		session.EndedAt = &endedAt
		ended = append(ended, session)
		m.logger.Info("Force-ended session over configured limit",
			zap.String("session_id", session.ID),
			zap.Int64("user_id", session.UserID),
			zap.String("activity", string(session.Activity)),
			zap.Float64("limit_hours", *limit))
	}
	return ended, nil
}
