package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/worklog-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

const sessionColumns = "id, user_id, activity, direction, started_at, ended_at, note"

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var (
		sess      models.Session
		activity  string
		direction string
		endedAt   sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.UserID, &activity, &direction, &sess.StartedAt, &endedAt, &sess.Note)
	if err != nil {
		return nil, err
	}
	sess.Activity = models.Activity(activity)
	sess.Direction = models.CommuteDirection(direction)
	if endedAt.Valid {
		ended := endedAt.Time.UTC()
		sess.EndedAt = &ended
	}
	sess.StartedAt = sess.StartedAt.UTC()
	return &sess, nil
}

func (s *PostgresStorage) querySessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %v", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning session: %v", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStorage) GetActiveSession(ctx context.Context, userID int64) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND ended_at IS NULL`

	sess, err := scanSession(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying active session: %v", err)
	}
	return sess, nil
}

func (s *PostgresStorage) GetAllActiveSessions(ctx context.Context) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE ended_at IS NULL
		ORDER BY started_at ASC`

	return s.querySessions(ctx, query)
}

func (s *PostgresStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1`

	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %v", err)
	}
	return sess, nil
}

func (s *PostgresStorage) GetSessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		  AND started_at < $3
		  AND (ended_at IS NULL OR ended_at >= $2)
		ORDER BY started_at ASC`

	return s.querySessions(ctx, query, userID, from, to)
}

func (s *PostgresStorage) GetRecentSessions(ctx context.Context, userID int64, limit int) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	return s.querySessions(ctx, query, userID, limit)
}

func (s *PostgresStorage) GetLastCommuteDirection(ctx context.Context, userID int64) (*models.CommuteDirection, error) {
	query := `
		SELECT direction
		FROM sessions
		WHERE user_id = $1 AND activity = $2
		ORDER BY started_at DESC
		LIMIT 1`

	var direction string
	err := s.db.QueryRowContext(ctx, query, userID, models.ActivityCommuting).Scan(&direction)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying last commute direction: %v", err)
	}
	dir := models.CommuteDirection(direction)
	return &dir, nil
}

func (s *PostgresStorage) HasWorkedOn(ctx context.Context, userID int64, day time.Time) (bool, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE user_id = $1 AND activity = $2
			  AND started_at >= $3 AND started_at < $4
		)`

	var worked bool
	err := s.db.QueryRowContext(ctx, query, userID, models.ActivityWorking, dayStart, dayEnd).Scan(&worked)
	if err != nil {
		return false, fmt.Errorf("error querying worked-today: %v", err)
	}
	return worked, nil
}

func (s *PostgresStorage) GetAverageDurationHours(ctx context.Context, userID int64, activity models.Activity) (*float64, error) {
	query := `
		SELECT AVG(EXTRACT(EPOCH FROM (ended_at - started_at)) / 3600.0)
		FROM sessions
		WHERE user_id = $1 AND activity = $2 AND ended_at IS NOT NULL`

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, userID, activity).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("error querying average duration: %v", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func (s *PostgresStorage) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, activity, direction, started_at, ended_at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Activity,
		session.Direction,
		session.StartedAt,
		session.EndedAt,
		session.Note,
	)
	if err != nil {
		return fmt.Errorf("error creating session: %v", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateSession(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions
		SET activity = $1, direction = $2, started_at = $3, ended_at = $4, note = $5
		WHERE id = $6`

	result, err := s.db.ExecContext(ctx, query,
		session.Activity,
		session.Direction,
		session.StartedAt,
		session.EndedAt,
		session.Note,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating session: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

func (s *PostgresStorage) CloseSession(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET ended_at = $1
		WHERE id = $2 AND ended_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, endedAt, sessionID)
	if err != nil {
		return false, fmt.Errorf("error closing session: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %v", err)
	}
	return rowsAffected > 0, nil
}

func (s *PostgresStorage) SwitchSession(ctx context.Context, endSessionID string, endedAt time.Time, newSession *models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $1 WHERE id = $2 AND ended_at IS NULL`,
		endedAt, endSessionID)
	if err != nil {
		return fmt.Errorf("error closing session: %v", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, activity, direction, started_at, ended_at, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		newSession.ID,
		newSession.UserID,
		newSession.Activity,
		newSession.Direction,
		newSession.StartedAt,
		newSession.EndedAt,
		newSession.Note,
	)
	if err != nil {
		return fmt.Errorf("error creating session: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %v", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, chat_id, admin, utc_offset_minutes, lunch_reminder_at,
		       target_work_hours, forgot_shutdown_threshold_percent,
		       max_work_hours, max_commute_hours, max_lunch_hours, created_at
		FROM users
		WHERE id = $1`

	var (
		user      models.User
		target    sql.NullFloat64
		threshold sql.NullInt64
		maxWork   sql.NullFloat64
		maxComm   sql.NullFloat64
		maxLunch  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.ChatID,
		&user.Admin,
		&user.UTCOffsetMinutes,
		&user.LunchReminderAt,
		&target,
		&threshold,
		&maxWork,
		&maxComm,
		&maxLunch,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	if target.Valid {
		user.TargetWorkHours = &target.Float64
	}
	if threshold.Valid {
		pct := int(threshold.Int64)
		user.ForgotShutdownThresholdPercent = &pct
	}
	if maxWork.Valid {
		user.MaxWorkHours = &maxWork.Float64
	}
	if maxComm.Valid {
		user.MaxCommuteHours = &maxComm.Float64
	}
	if maxLunch.Valid {
		user.MaxLunchHours = &maxLunch.Float64
	}
	return &user, nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, chat_id, admin, utc_offset_minutes, lunch_reminder_at,
		                   target_work_hours, forgot_shutdown_threshold_percent,
		                   max_work_hours, max_commute_hours, max_lunch_hours, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			admin = EXCLUDED.admin,
			utc_offset_minutes = EXCLUDED.utc_offset_minutes,
			lunch_reminder_at = EXCLUDED.lunch_reminder_at,
			target_work_hours = EXCLUDED.target_work_hours,
			forgot_shutdown_threshold_percent = EXCLUDED.forgot_shutdown_threshold_percent,
			max_work_hours = EXCLUDED.max_work_hours,
			max_commute_hours = EXCLUDED.max_commute_hours,
			max_lunch_hours = EXCLUDED.max_lunch_hours`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.ChatID,
		user.Admin,
		user.UTCOffsetMinutes,
		user.LunchReminderAt,
		user.TargetWorkHours,
		user.ForgotShutdownThresholdPercent,
		user.MaxWorkHours,
		user.MaxCommuteHours,
		user.MaxLunchHours,
	)
	if err != nil {
		return fmt.Errorf("error upserting user: %v", err)
	}
	return nil
}

func (s *PostgresStorage) StorePending(ctx context.Context, m *models.Mnemonic) error {
	query := `
		INSERT INTO mnemonics (id, phrase, created_at)
		VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, m.ID, m.Phrase, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("error storing mnemonic: %v", err)
	}
	return nil
}

func (s *PostgresStorage) ConsumePending(ctx context.Context, phrase string) (bool, error) {
	// Consume exactly one matching pending entry, even under concurrent
	// validation attempts against the same phrase.
	query := `
		DELETE FROM mnemonics
		WHERE id = (
			SELECT id FROM mnemonics
			WHERE phrase = $1
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)`

	result, err := s.db.ExecContext(ctx, query, phrase)
	if err != nil {
		return false, fmt.Errorf("error consuming mnemonic: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %v", err)
	}
	return rowsAffected > 0, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
