package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/applypilot/applypilot/pkg/models"
)

const applicationColumns = `id, match_id, profile_id, listing_id, cover_letter,
	letter_source, answers, status, prepared_at, submitted_at, dismissed_at`

func scanApplication(row interface{ Scan(...interface{}) error }) (*models.PreparedApplication, error) {
	a := &models.PreparedApplication{}
	var answers, letterSource, status string
	err := row.Scan(&a.ID, &a.MatchID, &a.ProfileID, &a.ListingID, &a.CoverLetter,
		&letterSource, &answers, &status, &a.PreparedAt, &a.SubmittedAt, &a.DismissedAt)
	if err != nil {
		return nil, err
	}
	a.LetterSource = models.LetterSource(letterSource)
	a.Status = models.ApplicationStatus(status)
	json.Unmarshal([]byte(answers), &a.Answers)
	return a, nil
}

// CreateApplication inserts a new draft in the prepared state. The partial
// unique index on (profile_id, listing_id) for non-dismissed rows makes a
// concurrent second insert fail; callers treat that as an existing draft.
func (s *Store) CreateApplication(ctx context.Context, a *models.PreparedApplication) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (match_id, profile_id, listing_id, cover_letter,
			letter_source, answers, status)
		 VALUES (?, ?, ?, ?, ?, ?, 'prepared')`,
		a.MatchID, a.ProfileID, a.ListingID, a.CoverLetter,
		string(a.LetterSource), marshalJSON(a.Answers))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	id, _ := result.LastInsertId()
	a.ID = int(id)
	a.Status = models.ApplicationPrepared
	return nil
}

// GetApplication returns one draft by id. Returns (nil, nil) when absent.
func (s *Store) GetApplication(ctx context.Context, id int) (*models.PreparedApplication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetLiveApplication returns the non-dismissed draft for a (profile, listing)
// pair, or (nil, nil) when none exists. At most one such row can exist.
func (s *Store) GetLiveApplication(ctx context.Context, profileID, listingID int) (*models.PreparedApplication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE profile_id = ? AND listing_id = ? AND status != 'dismissed'`,
		profileID, listingID)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListPreparedApplications returns a profile's prepared drafts, most recent first.
func (s *Store) ListPreparedApplications(ctx context.Context, profileID int) ([]models.PreparedApplication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE profile_id = ? AND status = 'prepared'
		 ORDER BY prepared_at DESC, id DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("list prepared applications: %w", err)
	}
	defer rows.Close()

	apps := []models.PreparedApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// MarkApplicationSubmitted transitions a draft to submitted. Only rows still
// in the prepared state are touched; the caller checks RowsAffected semantics
// through the returned bool.
func (s *Store) MarkApplicationSubmitted(ctx context.Context, id int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = 'submitted', submitted_at = ?
		 WHERE id = ? AND status = 'prepared'`,
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark application submitted: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// MarkApplicationDismissed transitions a draft to dismissed.
func (s *Store) MarkApplicationDismissed(ctx context.Context, id int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = 'dismissed', dismissed_at = ?
		 WHERE id = ? AND status = 'prepared'`,
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark application dismissed: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
