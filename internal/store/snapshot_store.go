package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/medtracker/internal/model"
)

// SaveSnapshot stores the schedule inputs fetched for a day, replacing any
// earlier snapshot of that day.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.Day == "" {
		return fmt.Errorf("snapshot day must not be empty")
	}

	meds, err := json.Marshal(snap.Medications)
	if err != nil {
		return fmt.Errorf("marshaling medications: %w", err)
	}
	doses, err := json.Marshal(snap.Doses)
	if err != nil {
		return fmt.Errorf("marshaling dose records: %w", err)
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (day, medications, doses, fetched_at)
		VALUES (?, ?, ?, ?)`,
		snap.Day, string(meds), string(doses), snap.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", snap.Day, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot for day, or ErrNotFound.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, day string) (*model.Snapshot, error) {
	var (
		meds      string
		doses     string
		fetchedAt time.Time
	)

	err := s.db.QueryRowxContext(ctx,
		"SELECT medications, doses, fetched_at FROM snapshots WHERE day = ?", day,
	).Scan(&meds, &doses, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", day, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", day, err)
	}

	snap := &model.Snapshot{Day: day, FetchedAt: fetchedAt}
	if err := json.Unmarshal([]byte(meds), &snap.Medications); err != nil {
		return nil, fmt.Errorf("unmarshaling medications: %w", err)
	}
	if err := json.Unmarshal([]byte(doses), &snap.Doses); err != nil {
		return nil, fmt.Errorf("unmarshaling dose records: %w", err)
	}
	return snap, nil
}

// PruneSnapshots deletes every snapshot except the one for keepDay.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, keepDay string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE day <> ?", keepDay); err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	return nil
}
