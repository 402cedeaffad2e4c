package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/storage"
	"go.uber.org/zap"
)

// Notifier delivers forgot-shutdown reminders. Fire-and-forget; the
// monitor does not require delivery guarantees.
type Notifier interface {
	NotifyForgotShutdown(ctx context.Context, userID int64, activity models.Activity, elapsedHours, averageHours float64) error
}

// ForgotShutdown flags sessions running far past the user's personal
// historical average for that activity. It only observes and notifies,
// never ends a session.
type ForgotShutdown struct {
	sessions storage.SessionStorage
	users    storage.UserStorage
	notifier Notifier
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	// Session ids already flagged, so a session over threshold is
	// reported once per crossing, not once per sweep.
	mu      sync.Mutex
	flagged map[string]struct{}
}

func NewForgotShutdown(sessions storage.SessionStorage, users storage.UserStorage, notifier Notifier, interval time.Duration, logger *zap.Logger) *ForgotShutdown {
	return &ForgotShutdown{
		sessions: sessions,
		users:    users,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		flagged:  make(map[string]struct{}),
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (m *ForgotShutdown) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Forgot-shutdown monitor started", zap.Duration("interval", m.interval))

	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Forgot-shutdown monitor stopping")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *ForgotShutdown) sweep(ctx context.Context) {
	if _, err := m.CheckAndNotify(ctx); err != nil {
		m.logger.Error("Forgot-shutdown sweep failed", zap.Error(err))
	}
}

// CheckAndNotify examines every active session and notifies the owners
// of those running at or past their personalized threshold. Returns the
// sessions flagged during this sweep. Per-user failures are logged and
// skipped.
func (m *ForgotShutdown) CheckAndNotify(ctx context.Context) ([]*models.Session, error) {
	active, err := m.sessions.GetAllActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	activeIDs := make(map[string]struct{}, len(active))
	var result []*models.Session

	for _, session := range active {
		activeIDs[session.ID] = struct{}{}

		notify, elapsed, average, err := m.evaluate(ctx, session)
		if err != nil {
			m.logger.Error("Failed to evaluate session",
				zap.Error(err),
				zap.String("session_id", session.ID),
				zap.Int64("user_id", session.UserID))
			continue
		}
		if !notify {
			continue
		}
		if m.alreadyFlagged(session.ID) {
			continue
		}

		if err := m.notifier.NotifyForgotShutdown(ctx, session.UserID, session.Activity, elapsed, average); err != nil {
			m.logger.Error("Failed to deliver forgot-shutdown reminder",
				zap.Error(err),
				zap.Int64("user_id", session.UserID))
			continue
		}

		m.markFlagged(session.ID)
		result = append(result, session)
		m.logger.Info("Flagged session over personal threshold",
			zap.String("session_id", session.ID),
			zap.Int64("user_id", session.UserID),
			zap.String("activity", string(session.Activity)),
			zap.Float64("elapsed_hours", elapsed),
			zap.Float64("average_hours", average))
	}

	m.pruneFlagged(activeIDs)
	return result, nil
}

// ShouldNotify applies the per-session threshold check outside the
// sweep. Always false for a session that is not active.
func (m *ForgotShutdown) ShouldNotify(ctx context.Context, session *models.Session) (bool, error) {
	if session == nil || !session.Active() {
		return false, nil
	}
	notify, _, _, err := m.evaluate(ctx, session)
	return notify, err
}

// evaluate decides whether one active session is over its owner's
// threshold. Missing user, threshold or historical average are skip
// conditions, not errors.
func (m *ForgotShutdown) evaluate(ctx context.Context, session *models.Session) (notify bool, elapsedHours, averageHours float64, err error) {
	user, err := m.users.GetUser(ctx, session.UserID)
	if err != nil {
		return false, 0, 0, err
	}
	if user == nil || user.ForgotShutdownThresholdPercent == nil {
		return false, 0, 0, nil
	}

	average, err := m.sessions.GetAverageDurationHours(ctx, session.UserID, session.Activity)
	if err != nil {
		return false, 0, 0, err
	}
	if average == nil {
		// No history, no basis for comparison.
		return false, 0, 0, nil
	}

	elapsed := session.DurationHours(m.now().UTC())
	limit := *average * float64(*user.ForgotShutdownThresholdPercent) / 100
	if elapsed < limit {
		return false, 0, 0, nil
	}
	return true, elapsed, *average, nil
}

func (m *ForgotShutdown) alreadyFlagged(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.flagged[sessionID]
	return exists
}

func (m *ForgotShutdown) markFlagged(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flagged[sessionID] = struct{}{}
}

// pruneFlagged drops markers for sessions that are no longer active, so
// a future session can be flagged again.
func (m *ForgotShutdown) pruneFlagged(activeIDs map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.flagged {
		if _, stillActive := activeIDs[id]; !stillActive {
			delete(m.flagged, id)
		}
	}
}
