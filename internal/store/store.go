package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the Postgres archive of finished research runs and API users.
type Store struct {
	DB *sql.DB
}

// Run is the durable record of one workflow run.
type Run struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	PlanName   string    `json:"plan_name"`
	Outcome    string    `json:"outcome"`
	Report     string    `json:"report,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// SaveRun archives a finished run.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, topic, plan_name, outcome, report, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			report = EXCLUDED.report,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.Topic, run.PlanName, run.Outcome, run.Report, run.Error, run.CreatedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, topic, plan_name, outcome, report, error, created_at, finished_at
		FROM runs WHERE id = $1`, id).
		Scan(&run.ID, &run.Topic, &run.PlanName, &run.Outcome, &run.Report, &run.Error, &run.CreatedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("fetching run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, topic, plan_name, outcome, report, error, created_at, finished_at
		FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Topic, &run.PlanName, &run.Outcome, &run.Report, &run.Error, &run.CreatedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateUser inserts a new API user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, created_at) VALUES ($1, $2, now())`,
		email, passwordHash)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user's id and password hash.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (int64, string, error) {
	var id int64
	var hash string
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("fetching user: %w", err)
	}
	return id, hash, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}
