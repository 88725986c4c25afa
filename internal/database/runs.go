package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/applypilot/applypilot/pkg/models"
)

// ErrRunInProgress is returned by StartRun when a prior run of the same kind
// for the same profile has not been finalized yet.
var ErrRunInProgress = errors.New("a run is already in progress for this profile")

// StartRun records the start of a discovery or preparation cycle. The insert
// is guarded: it succeeds only when no unfinished run of the same kind exists
// for the profile, which is what prevents overlapping cycles.
func (s *Store) StartRun(ctx context.Context, profileID int, kind models.RunKind, trigger models.RunTrigger) (*models.ScrapeRun, error) {
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Kind:      kind,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, profile_id, kind, trigger_source, started_at, status)
		 SELECT ?, ?, ?, ?, ?, 'running'
		 WHERE NOT EXISTS (
		   SELECT 1 FROM scrape_runs
		   WHERE profile_id = ? AND kind = ? AND finished_at IS NULL
		 )`,
		run.ID, profileID, string(kind), string(trigger), run.StartedAt,
		profileID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrRunInProgress
	}
	return run, nil
}

// FinishRun finalizes a run with its counts and terminal status. A finished
// run is immutable; calling this twice for the same id is a no-op.
func (s *Store) FinishRun(ctx context.Context, run *models.ScrapeRun) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs
		 SET finished_at = ?, found = ?, new_count = ?, updated_count = ?,
		     errored = ?, status = ?, error = ?
		 WHERE id = ? AND finished_at IS NULL`,
		now, run.Found, run.New, run.Updated, run.Errored,
		string(run.Status), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	run.FinishedAt = &now
	return nil
}

// FailStaleRuns finalizes runs started before the cutoff that never finished,
// as happens after a crash or panic mid-cycle. Left alone, such a run would
// trip StartRun's overlap guard on every later cycle and wedge the profile.
func (s *Store) FailStaleRuns(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs
		 SET finished_at = ?, status = ?, error = 'abandoned before finalization'
		 WHERE finished_at IS NULL AND started_at < ?`,
		time.Now().UTC(), string(models.RunStatusFailed), before)
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ListRuns returns a profile's run history, newest first, capped at limit.
func (s *Store) ListRuns(ctx context.Context, profileID int, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, kind, trigger_source, started_at, finished_at,
		        found, new_count, updated_count, errored, status, error
		 FROM scrape_runs WHERE profile_id = ?
		 ORDER BY started_at DESC LIMIT ?`,
		profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ScrapeRun{}
	for rows.Next() {
		var r models.ScrapeRun
		var kind, trigger, status string
		if err := rows.Scan(&r.ID, &r.ProfileID, &kind, &trigger, &r.StartedAt,
			&r.FinishedAt, &r.Found, &r.New, &r.Updated, &r.Errored,
			&status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Kind = models.RunKind(kind)
		r.Trigger = models.RunTrigger(trigger)
		r.Status = models.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
