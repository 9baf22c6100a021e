package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TeamLabels remembers the team name a participant plays under.
type TeamLabels interface {
	Team(ctx context.Context, participant string) (string, error)
	SetTeam(ctx context.Context, participant, label string) error
}

// SQLiteTeams keeps team labels in the team_labels table.
type SQLiteTeams struct {
	db *sql.DB
}

func NewSQLiteTeams(db *sql.DB) *SQLiteTeams {
	return &SQLiteTeams{db: db}
}

func (s *SQLiteTeams) Team(ctx context.Context, participant string) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT label FROM team_labels WHERE participant = ?`, participant,
	).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading team label: %w", err)
	}
	return label, nil
}

func (s *SQLiteTeams) SetTeam(ctx context.Context, participant, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_labels (participant, label, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(participant) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at`,
		participant, label, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving team label: %w", err)
	}
	return nil
}

// RedisTeams keeps team labels under team:<participant>.
type RedisTeams struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTeams stores labels with the given expiry; zero keeps them forever.
func NewRedisTeams(client *redis.Client, ttl time.Duration) *RedisTeams {
	return &RedisTeams{client: client, ttl: ttl}
}

func teamKey(participant string) string { return "team:" + participant }

func (r *RedisTeams) Team(ctx context.Context, participant string) (string, error) {
	label, err := r.client.Get(ctx, teamKey(participant)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading team label: %w", err)
	}
	return label, nil
}

func (r *RedisTeams) SetTeam(ctx context.Context, participant, label string) error {
	if err := r.client.Set(ctx, teamKey(participant), label, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving team label: %w", err)
	}
	return nil
}

// RedisChecker reports Redis reachability to the health endpoint.
type RedisChecker struct{ Client *redis.Client }

func (c RedisChecker) Check(ctx context.Context) error { return c.Client.Ping(ctx).Err() }
