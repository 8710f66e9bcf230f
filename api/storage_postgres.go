package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harlequingg/devfocus/internal/ai"
	"github.com/harlequingg/devfocus/internal/stats"
)

type postgresStorage struct {
	db *sql.DB
}

func newPostgresStorage(db *sql.DB) *postgresStorage {
	return &postgresStorage{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, created_at, name, email, password_hash, is_verified,
	otp_hash, otp_expires_at, otp_purpose,
	total_pomodoros, current_streak, longest_streak, last_active_date, version`

func scanUser(row rowScanner) (*user, error) {
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.IsVerified,
		&u.OTPHash, &u.OTPExpiresAt, &u.OTPPurpose,
		&u.TotalPomodoros, &u.CurrentStreak, &u.LongestStreak, &u.LastActiveDate, &u.Version)
	if err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

func (s *postgresStorage) insertUser(ctx context.Context, u *user) error {
	query := `INSERT INTO users (id, name, email, password_hash, is_verified, otp_hash, otp_expires_at, otp_purpose)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING created_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u.ID = uuid.New()
	row := s.db.QueryRowContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.IsVerified,
		u.OTPHash, u.OTPExpiresAt, u.OTPPurpose)
	return dbError(row.Scan(&u.CreatedAt, &u.Version))
}

func (s *postgresStorage) getUserByID(ctx context.Context, id uuid.UUID) (*user, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *postgresStorage) getUserByEmail(ctx context.Context, email string) (*user, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *postgresStorage) updateUser(ctx context.Context, u *user) error {
	query := `UPDATE users
			  SET name = $1, email = $2, password_hash = $3, is_verified = $4,
			      otp_hash = $5, otp_expires_at = $6, otp_purpose = $7, version = version + 1
			  WHERE id = $8 AND version = $9
			  RETURNING version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, u.Name, u.Email, u.PasswordHash, u.IsVerified,
		u.OTPHash, u.OTPExpiresAt, u.OTPPurpose, u.ID, u.Version)
	err := row.Scan(&u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return errEditConflict
	}
	return dbError(err)
}

func (s *postgresStorage) deleteUser(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`
	return s.execOne(ctx, query, id)
}

const taskColumns = `id, user_id, title, description, category, priority,
	estimated_pomodoros, completed_pomodoros, is_completed, ai_generated, ai_breakdown,
	created_at, updated_at, version`

func scanTask(row rowScanner) (*task, error) {
	var t task
	var breakdown []byte
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Category, &t.Priority,
		&t.EstimatedUnits, &t.CompletedUnits, &t.IsCompleted, &t.AIGenerated, &breakdown,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, dbError(err)
	}
	if err := json.Unmarshal(breakdown, &t.AIBreakdown); err != nil {
		return nil, err
	}
	if t.AIBreakdown == nil {
		t.AIBreakdown = []ai.Subtask{}
	}
	return &t, nil
}

func breakdownJSON(subtasks []ai.Subtask) ([]byte, error) {
	if subtasks == nil {
		subtasks = []ai.Subtask{}
	}
	return json.Marshal(subtasks)
}

func (s *postgresStorage) insertTask(ctx context.Context, t *task) error {
	query := `INSERT INTO tasks (id, user_id, title, description, category, priority,
			  	estimated_pomodoros, completed_pomodoros, is_completed, ai_generated, ai_breakdown)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING created_at, updated_at, version`
	breakdown, err := breakdownJSON(t.AIBreakdown)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t.ID = uuid.New()
	row := s.db.QueryRowContext(ctx, query, t.ID, t.UserID, t.Title, t.Description, t.Category, t.Priority,
		t.EstimatedUnits, t.CompletedUnits, t.IsCompleted, t.AIGenerated, breakdown)
	return dbError(row.Scan(&t.CreatedAt, &t.UpdatedAt, &t.Version))
}

func (s *postgresStorage) getTask(ctx context.Context, id uuid.UUID) (*task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanTask(s.db.QueryRowContext(ctx, query, id))
}

func (s *postgresStorage) listTasks(ctx context.Context, userID uuid.UUID, completed *bool) ([]*task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
			  WHERE user_id = $1 AND ($2::boolean IS NULL OR is_completed = $2)
			  ORDER BY created_at DESC`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, userID, completed)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	tasks := []*task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *postgresStorage) updateTask(ctx context.Context, t *task) error {
	query := `UPDATE tasks
			  SET title = $1, description = $2, category = $3, priority = $4,
			      estimated_pomodoros = $5, completed_pomodoros = $6, is_completed = $7,
			      ai_generated = $8, ai_breakdown = $9, updated_at = NOW(), version = version + 1
			  WHERE id = $10 AND version = $11
			  RETURNING updated_at, version`
	breakdown, err := breakdownJSON(t.AIBreakdown)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Category, t.Priority,
		t.EstimatedUnits, t.CompletedUnits, t.IsCompleted, t.AIGenerated, breakdown, t.ID, t.Version)
	err = row.Scan(&t.UpdatedAt, &t.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return errEditConflict
	}
	return dbError(err)
}

func (s *postgresStorage) deleteTask(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1`
	return s.execOne(ctx, query, id)
}

const sessionColumns = `id, user_id, task_id, duration, completed, started_at, completed_at, notes, created_at`

func scanSession(row rowScanner) (*session, error) {
	var s session
	err := row.Scan(&s.ID, &s.UserID, &s.TaskID, &s.Duration, &s.Completed,
		&s.StartedAt, &s.CompletedAt, &s.Notes, &s.CreatedAt)
	if err != nil {
		return nil, dbError(err)
	}
	return &s, nil
}

func (s *postgresStorage) insertSession(ctx context.Context, sess *session) error {
	query := `INSERT INTO sessions (id, user_id, task_id, duration, started_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING created_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sess.ID = uuid.New()
	row := s.db.QueryRowContext(ctx, query, sess.ID, sess.UserID, sess.TaskID, sess.Duration, sess.StartedAt)
	return dbError(row.Scan(&sess.CreatedAt))
}

func (s *postgresStorage) getSession(ctx context.Context, id uuid.UUID) (*session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanSession(s.db.QueryRowContext(ctx, query, id))
}

func (s *postgresStorage) listSessions(ctx context.Context, userID uuid.UUID) ([]sessionView, error) {
	query := `SELECT s.id, s.user_id, s.task_id, s.duration, s.completed, s.started_at,
			  	s.completed_at, s.notes, s.created_at,
			  	COALESCE(t.title, ''), COALESCE(t.category, '')
			  FROM sessions s
			  LEFT JOIN tasks t ON t.id = s.task_id
			  WHERE s.user_id = $1
			  ORDER BY s.started_at DESC`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	views := []sessionView{}
	for rows.Next() {
		var v sessionView
		v.session = &session{}
		err := rows.Scan(&v.ID, &v.UserID, &v.TaskID, &v.Duration, &v.Completed, &v.StartedAt,
			&v.CompletedAt, &v.Notes, &v.CreatedAt, &v.TaskTitle, &v.TaskCategory)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *postgresStorage) completedSessions(ctx context.Context, userID uuid.UUID) ([]stats.Session, error) {
	query := `SELECT s.duration, s.completed_at, COALESCE(t.category, '')
			  FROM sessions s
			  LEFT JOIN tasks t ON t.id = s.task_id
			  WHERE s.user_id = $1 AND s.completed
			  ORDER BY s.completed_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var sessions []stats.Session
	for rows.Next() {
		var ss stats.Session
		if err := rows.Scan(&ss.Duration, &ss.CompletedAt, &ss.Category); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

func (s *postgresStorage) completeSession(ctx context.Context, id uuid.UUID, notes string, now time.Time, advance func(stats.Counters) stats.Counters) (*completion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// A concurrent completion blocks on the row lock and then sees
	// completed = true, so only one caller ever gets a row back.
	res := &completion{}
	res.Session, err = scanSession(tx.QueryRowContext(ctx,
		`UPDATE sessions SET completed = TRUE, completed_at = $2, notes = $3
		 WHERE id = $1 AND completed = FALSE
		 RETURNING `+sessionColumns, id, now, notes))
	if errors.Is(err, errRecordNotFound) {
		res.AlreadyCompleted = true
		res.Session, err = scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	}
	if err != nil {
		return nil, err
	}

	var c stats.Counters
	err = tx.QueryRowContext(ctx,
		`SELECT total_pomodoros, current_streak, longest_streak, last_active_date
		 FROM users WHERE id = $1 FOR UPDATE`, res.Session.UserID).
		Scan(&c.TotalPomodoros, &c.CurrentStreak, &c.LongestStreak, &c.LastActiveDate)
	if err != nil {
		return nil, dbError(err)
	}
	if !res.AlreadyCompleted {
		c = advance(c)
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET total_pomodoros = $2, current_streak = $3, longest_streak = $4,
			 	last_active_date = $5, version = version + 1
			 WHERE id = $1`,
			res.Session.UserID, c.TotalPomodoros, c.CurrentStreak, c.LongestStreak, c.LastActiveDate)
		if err != nil {
			return nil, dbError(err)
		}
	}
	res.User = c

	if res.Session.TaskID.Valid {
		t, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, res.Session.TaskID.UUID))
		switch {
		case errors.Is(err, errRecordNotFound):
		case err != nil:
			return nil, err
		default:
			if !res.AlreadyCompleted {
				t.setProgress(t.CompletedUnits+1, t.EstimatedUnits)
				err = tx.QueryRowContext(ctx,
					`UPDATE tasks SET completed_pomodoros = $2, is_completed = $3,
					 	updated_at = NOW(), version = version + 1
					 WHERE id = $1
					 RETURNING updated_at, version`,
					t.ID, t.CompletedUnits, t.IsCompleted).Scan(&t.UpdatedAt, &t.Version)
				if err != nil {
					return nil, dbError(err)
				}
			}
			res.Task = t
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *postgresStorage) execOne(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errRecordNotFound
	}
	return nil
}
