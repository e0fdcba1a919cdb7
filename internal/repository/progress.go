package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/scout/internal/research"
)

const (
	runKeyPrefix = "run:"
	progressTTL  = 24 * time.Hour
)

// ErrNotFound is returned when no progress exists for a run.
var ErrNotFound = errors.New("run progress not found")

// Conn opens and ping-checks a Redis client.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// ProgressRepository keeps live run progress in Redis so the API can report
// where an in-flight workflow currently is.
type ProgressRepository struct {
	client *redis.Client
}

// NewProgressRepository wraps an existing Redis client.
func NewProgressRepository(client *redis.Client) *ProgressRepository {
	return &ProgressRepository{client: client}
}

// Update persists the latest progress snapshot for a run.
func (r *ProgressRepository) Update(ctx context.Context, p research.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	if err := r.client.Set(ctx, runKeyPrefix+p.RunID, data, progressTTL).Err(); err != nil {
		return fmt.Errorf("storing progress: %w", err)
	}
	return nil
}

// Get returns the latest progress snapshot for a run.
func (r *ProgressRepository) Get(ctx context.Context, runID string) (research.Progress, error) {
	val, err := r.client.Get(ctx, runKeyPrefix+runID).Result()
	if errors.Is(err, redis.Nil) {
		return research.Progress{}, ErrNotFound
	}
	if err != nil {
		return research.Progress{}, fmt.Errorf("fetching progress: %w", err)
	}
	var p research.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return research.Progress{}, fmt.Errorf("parsing progress: %w", err)
	}
	return p, nil
}

// List returns progress snapshots for all known runs.
func (r *ProgressRepository) List(ctx context.Context) ([]research.Progress, error) {
	keys, err := r.client.Keys(ctx, runKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("listing progress keys: %w", err)
	}
	var out []research.Progress
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching progress: %w", err)
		}
		var p research.Progress
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
