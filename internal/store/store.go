// Package store persists stashed attempts and team labels.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/odysseus/internal/hunt"
)

var ErrNotFound = errors.New("not found")

// Snapshots keeps at most one stashed attempt per participant in a JSONB
// column.
type Snapshots struct {
	db  *sql.DB
	now func() time.Time
}

func NewSnapshots(db *sql.DB) *Snapshots {
	return &Snapshots{db: db, now: time.Now}
}

// Put stores or replaces the participant's snapshot.
func (s *Snapshots) Put(ctx context.Context, participant string, snap hunt.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempt_snapshots (participant, quest_id, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(participant) DO UPDATE SET quest_id = excluded.quest_id, data = excluded.data, updated_at = excluded.updated_at`,
		participant, snap.Quest.ID, string(data), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (s *Snapshots) Get(ctx context.Context, participant string) (hunt.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM attempt_snapshots WHERE participant = ?`, participant,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return hunt.Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	var snap hunt.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return hunt.Snapshot{}, fmt.Errorf("%w: %w", hunt.ErrCorruptSnapshot, err)
	}
	return snap, nil
}

func (s *Snapshots) Delete(ctx context.Context, participant string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM attempt_snapshots WHERE participant = ?`, participant,
	)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stashed is a listing row for a stashed attempt.
type Stashed struct {
	Participant string    `json:"participant"`
	QuestID     string    `json:"questId"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ForQuest lists who has a stashed attempt of the quest, newest first.
func (s *Snapshots) ForQuest(ctx context.Context, questID string) ([]Stashed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT participant, quest_id, updated_at FROM attempt_snapshots
		 WHERE quest_id = ? ORDER BY updated_at DESC, participant`, questID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Stashed
	for rows.Next() {
		var (
			st      Stashed
			updated string
		)
		if err := rows.Scan(&st.Participant, &st.QuestID, &updated); err != nil {
			return nil, err
		}
		st.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, st)
	}
	return out, rows.Err()
}
