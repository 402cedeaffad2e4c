package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/storage"
	"go.uber.org/zap"
)

func newTestService() (*Service, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage()
	return NewService(store, zap.NewNop()), store
}

func TestStartActivityStartsWorking(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	result, err := svc.StartActivity(ctx, 1, models.ActivityWorking, at)
	require.NoError(t, err)

	assert.Equal(t, ResultStarted, result.Kind)
	assert.Nil(t, result.Ended)
	require.NotNil(t, result.Started)
	assert.Equal(t, at, result.Started.StartedAt)

	active, err := store.GetActiveSession(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, result.Started.ID, active.ID)
}

func TestStartActivityToggleEnds(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	stop := start.Add(2 * time.Hour)

	_, err := svc.StartActivity(ctx, 1, models.ActivityWorking, start)
	require.NoError(t, err)

	result, err := svc.StartActivity(ctx, 1, models.ActivityWorking, stop)
	require.NoError(t, err)

	assert.Equal(t, ResultEnded, result.Kind)
	assert.Nil(t, result.Started)
	require.NotNil(t, result.Ended)
	require.NotNil(t, result.Ended.EndedAt)
	assert.Equal(t, stop, *result.Ended.EndedAt)

	active, err := store.GetActiveSession(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStartActivityReplacesActive(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	switchAt := start.Add(3 * time.Hour)

	first, err := svc.StartActivity(ctx, 1, models.ActivityWorking, start)
	require.NoError(t, err)

	result, err := svc.StartActivity(ctx, 1, models.ActivityLunch, switchAt)
	require.NoError(t, err)

	assert.Equal(t, ResultStarted, result.Kind)
	require.NotNil(t, result.Ended)
	assert.Equal(t, first.Started.ID, result.Ended.ID)
	require.NotNil(t, result.Started)
	assert.Equal(t, models.ActivityLunch, result.Started.Activity)

	// Old session is persisted closed, the new one is the only active.
	old, err := store.GetSession(ctx, first.Started.ID)
	require.NoError(t, err)
	require.NotNil(t, old.EndedAt)
	assert.Equal(t, switchAt, *old.EndedAt)

	active, err := store.GetActiveSession(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, result.Started.ID, active.ID)
}

func TestStartActivityCommuteDirectionFromHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	// First commute ever: to work.
	first, err := svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(7*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionToWork, first.Started.Direction)

	// Stop commuting, work a while, stop working.
	_, err = svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(8*time.Hour))
	require.NoError(t, err)
	_, err = svc.StartActivity(ctx, 1, models.ActivityWorking, day.Add(8*time.Hour))
	require.NoError(t, err)
	_, err = svc.StartActivity(ctx, 1, models.ActivityWorking, day.Add(16*time.Hour))
	require.NoError(t, err)

	// Commute after having worked today: home.
	second, err := svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(17*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionToHome, second.Started.Direction)
}

func TestStartActivityCommuteAlternatesWithoutWork(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	first, err := svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(7*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionToWork, first.Started.Direction)

	_, err = svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(8*time.Hour))
	require.NoError(t, err)

	// No work in between: the next commute alternates back.
	second, err := svc.StartActivity(ctx, 1, models.ActivityCommuting, day.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionToHome, second.Started.Direction)
}

func TestStartActivityIdleFails(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	_, err := svc.StartActivity(ctx, 1, models.ActivityIdle, time.Now().UTC())
	assert.ErrorIs(t, err, ErrIdleRequested)

	active, err := store.GetActiveSession(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestEditSession(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	created, err := svc.StartActivity(ctx, 1, models.ActivityWorking, start)
	require.NoError(t, err)
	_, err = svc.StartActivity(ctx, 1, models.ActivityWorking, start.Add(8*time.Hour))
	require.NoError(t, err)

	newStart := start.Add(30 * time.Minute)
	newEnd := start.Add(9 * time.Hour)
	edited, err := svc.EditSession(ctx, 1, created.Started.ID, newStart, &newEnd)
	require.NoError(t, err)
	assert.Equal(t, newStart, edited.StartedAt)
	require.NotNil(t, edited.EndedAt)
	assert.Equal(t, newEnd, *edited.EndedAt)

	persisted, err := store.GetSession(ctx, created.Started.ID)
	require.NoError(t, err)
	assert.Equal(t, newStart, persisted.StartedAt)
}

func TestEditSessionValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	created, err := svc.StartActivity(ctx, 1, models.ActivityWorking, start)
	require.NoError(t, err)
	_, err = svc.StartActivity(ctx, 1, models.ActivityWorking, start.Add(time.Hour))
	require.NoError(t, err)

	t.Run("Unknown session", func(t *testing.T) {
		_, err := svc.EditSession(ctx, 1, "no-such-id", start, nil)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Someone else's session", func(t *testing.T) {
		_, err := svc.EditSession(ctx, 2, created.Started.ID, start, nil)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("End before start", func(t *testing.T) {
		bad := start.Add(-time.Hour)
		_, err := svc.EditSession(ctx, 1, created.Started.ID, start, &bad)
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})

	t.Run("Reopening an ended session", func(t *testing.T) {
		_, err := svc.EditSession(ctx, 1, created.Started.ID, start, nil)
		assert.ErrorIs(t, err, ErrReopenNotAllowed)
	})
}
