package main

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/harlequingg/devfocus/internal/stats"
)

//go:embed schema.sql
var schema string

const queryTimeout = 5 * time.Second

// storage is the persistence boundary. Lookups return errRecordNotFound for
// missing rows and updates return errEditConflict when the row's version has
// moved on since it was read.
type storage interface {
	insertUser(ctx context.Context, u *user) error
	getUserByID(ctx context.Context, id uuid.UUID) (*user, error)
	getUserByEmail(ctx context.Context, email string) (*user, error)
	updateUser(ctx context.Context, u *user) error
	deleteUser(ctx context.Context, id uuid.UUID) error

	insertTask(ctx context.Context, t *task) error
	getTask(ctx context.Context, id uuid.UUID) (*task, error)
	listTasks(ctx context.Context, userID uuid.UUID, completed *bool) ([]*task, error)
	updateTask(ctx context.Context, t *task) error
	deleteTask(ctx context.Context, id uuid.UUID) error

	insertSession(ctx context.Context, s *session) error
	getSession(ctx context.Context, id uuid.UUID) (*session, error)
	listSessions(ctx context.Context, userID uuid.UUID) ([]sessionView, error)
	completedSessions(ctx context.Context, userID uuid.UUID) ([]stats.Session, error)

	// completeSession closes an open session and, in the same unit of work,
	// advances the owner's counters and the task's progress. Completing an
	// already completed session changes nothing and reports AlreadyCompleted.
	completeSession(ctx context.Context, id uuid.UUID, notes string, now time.Time, advance func(stats.Counters) stats.Counters) (*completion, error)
}

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.db.maxOpenConnections)
	db.SetMaxIdleConns(cfg.db.maxIdleConnections)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies the embedded schema. Every statement is idempotent.
func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, schema)
	return err
}
