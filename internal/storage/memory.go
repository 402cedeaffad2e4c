package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/worklog-bot/internal/models"
)

// MemoryStorage is the in-memory implementation used by tests and the
// use_in_memory configuration flag.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	users    map[int64]*models.User
	pending  []*models.Mnemonic
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*models.Session),
		users:    make(map[int64]*models.User),
	}
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	return &c
}

func (s *MemoryStorage) GetActiveSession(ctx context.Context, userID int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.EndedAt == nil {
			return cloneSession(sess), nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) GetAllActiveSessions(ctx context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.Session
	for _, sess := range s.sessions {
		if sess.EndedAt == nil {
			active = append(active, cloneSession(sess))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	return active, nil
}

func (s *MemoryStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, exists := s.sessions[id]; exists {
		return cloneSession(sess), nil
	}
	return nil, nil
}

func (s *MemoryStorage) GetSessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if !sess.StartedAt.Before(to) {
			continue
		}
		if sess.EndedAt != nil && sess.EndedAt.Before(from) {
			continue
		}
		result = append(result, cloneSession(sess))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result, nil
}

func (s *MemoryStorage) GetRecentSessions(ctx context.Context, userID int64, limit int) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			result = append(result, cloneSession(sess))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStorage) GetLastCommuteDirection(ctx context.Context, userID int64) (*models.CommuteDirection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.Activity != models.ActivityCommuting {
			continue
		}
		if last == nil || sess.StartedAt.After(last.StartedAt) {
			last = sess
		}
	}
	if last == nil {
		return nil, nil
	}
	dir := last.Direction
	return &dir, nil
}

func (s *MemoryStorage) HasWorkedOn(ctx context.Context, userID int64, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.UTC().Date()
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.Activity != models.ActivityWorking {
			continue
		}
		sy, sm, sd := sess.StartedAt.UTC().Date()
		if sy == y && sm == m && sd == d {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) GetAverageDurationHours(ctx context.Context, userID int64, activity models.Activity) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	var count int
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.Activity != activity || sess.EndedAt == nil {
			continue
		}
		total += sess.EndedAt.Sub(sess.StartedAt).Hours()
		count++
	}
	if count == 0 {
		return nil, nil
	}
	avg := total / float64(count)
	return &avg, nil
}

func (s *MemoryStorage) CreateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStorage) UpdateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStorage) CloseSession(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked(sessionID, endedAt), nil
}

func (s *MemoryStorage) closeLocked(sessionID string, endedAt time.Time) bool {
	sess, exists := s.sessions[sessionID]
	if !exists || sess.EndedAt != nil {
		return false
	}
	ended := endedAt
	sess.EndedAt = &ended
	return true
}

func (s *MemoryStorage) SwitchSession(ctx context.Context, endSessionID string, endedAt time.Time, newSession *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked(endSessionID, endedAt)
	s.sessions[newSession.ID] = cloneSession(newSession)
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[id]; exists {
		u := *user
		return &u, nil
	}
	return nil, nil
}

func (s *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *MemoryStorage) StorePending(ctx context.Context, m *models.Mnemonic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *m
	s.pending = append(s.pending, &entry)
	return nil
}

func (s *MemoryStorage) ConsumePending(ctx context.Context, phrase string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.pending {
		if m.Phrase == phrase {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
