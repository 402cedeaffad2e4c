package storage

import (
	"context"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
)

// SessionStorage is the session read/write contract used by the tracking
// service, the reporting commands and the monitors. Absent records are
// returned as nil (or false) with a nil error; errors mean the store
// itself failed.
type SessionStorage interface {
	GetActiveSession(ctx context.Context, userID int64) (*models.Session, error)
	GetAllActiveSessions(ctx context.Context) ([]*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// GetSessionsInRange returns sessions overlapping [from, to), ordered
	// by start time.
	GetSessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Session, error)
	GetRecentSessions(ctx context.Context, userID int64, limit int) ([]*models.Session, error)
	GetLastCommuteDirection(ctx context.Context, userID int64) (*models.CommuteDirection, error)
	// HasWorkedOn reports whether the user has any working session whose
	// start falls on the UTC calendar date of day.
	HasWorkedOn(ctx context.Context, userID int64, day time.Time) (bool, error)
	// GetAverageDurationHours is the mean duration of the user's completed
	// sessions for an activity, nil when there are none.
	GetAverageDurationHours(ctx context.Context, userID int64, activity models.Activity) (*float64, error)

	CreateSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error
	// CloseSession sets EndedAt only if the session is still active and
	// reports whether it did. Sweeps racing each other rely on this.
	CloseSession(ctx context.Context, sessionID string, endedAt time.Time) (bool, error)
	// SwitchSession closes one session and inserts its replacement as a
	// single atomic unit.
	SwitchSession(ctx context.Context, endSessionID string, endedAt time.Time, newSession *models.Session) error
}

type UserStorage interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

// MnemonicStorage tracks pending one-time passphrases. ConsumePending is
// atomic: under concurrent attempts at the same phrase, each stored
// instance is consumed at most once.
type MnemonicStorage interface {
	StorePending(ctx context.Context, m *models.Mnemonic) error
	ConsumePending(ctx context.Context, phrase string) (bool, error)
}

type Storage interface {
	SessionStorage
	UserStorage
	MnemonicStorage
	Close() error
}
