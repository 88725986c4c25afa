package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// UpsertListings inserts or updates each listing by (source, external_id).
// Later duplicates within the same batch update the same row again; the call
// never fails on duplicate input. Identity and first_seen_at are untouched on
// update. Returns counts of inserted and updated rows.
func (s *Store) UpsertListings(ctx context.Context, listings []models.JobListing) (inserted, updated int, err error) {
	now := time.Now().UTC()
	for i := range listings {
		l := &listings[i]

		var existingID int
		lookupErr := s.db.QueryRowContext(ctx,
			`SELECT id FROM listings WHERE source = ? AND external_id = ?`,
			l.Source, l.ExternalID).Scan(&existingID)

		switch {
		case lookupErr == sql.ErrNoRows:
			result, execErr := s.db.ExecContext(ctx,
				`INSERT INTO listings (source, external_id, title, company, location, remote_type,
					salary_min, salary_max, employment_type, description, requirements, url,
					posted_at, active, first_seen_at, last_seen_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				l.Source, l.ExternalID, l.Title, l.Company, l.Location, string(l.RemoteType),
				l.SalaryMin, l.SalaryMax, string(l.EmploymentType), l.Description, l.Requirements,
				l.URL, l.PostedAt, now, now)
			if execErr != nil {
				return inserted, updated, fmt.Errorf("insert listing %s/%s: %w", l.Source, l.ExternalID, execErr)
			}
			id, _ := result.LastInsertId()
			l.ID = int(id)
			inserted++

		case lookupErr != nil:
			return inserted, updated, fmt.Errorf("lookup listing %s/%s: %w", l.Source, l.ExternalID, lookupErr)

		default:
			_, execErr := s.db.ExecContext(ctx,
				`UPDATE listings SET title=?, company=?, location=?, remote_type=?,
					salary_min=?, salary_max=?, employment_type=?, description=?,
					requirements=?, url=?, posted_at=?, active=1, last_seen_at=?
				 WHERE id=?`,
				l.Title, l.Company, l.Location, string(l.RemoteType),
				l.SalaryMin, l.SalaryMax, string(l.EmploymentType), l.Description,
				l.Requirements, l.URL, l.PostedAt, now, existingID)
			if execErr != nil {
				return inserted, updated, fmt.Errorf("update listing %s/%s: %w", l.Source, l.ExternalID, execErr)
			}
			l.ID = existingID
			updated++
		}
	}
	return inserted, updated, nil
}

// MarkStaleListings deactivates listings from the given source that were not
// seen within the grace window. Rows are never hard-deleted so match history
// stays intact.
func (s *Store) MarkStaleListings(ctx context.Context, source string, grace time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-grace)
	result, err := s.db.ExecContext(ctx,
		`UPDATE listings SET active = 0 WHERE source = ? AND active = 1 AND last_seen_at < ?`,
		source, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale listings: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Info("deactivated stale listings",
			zap.String("source", source),
			zap.Int64("count", n),
		)
	}
	return int(n), nil
}

const listingColumns = `id, source, external_id, title, company, location, remote_type,
	salary_min, salary_max, employment_type, description, requirements, url,
	posted_at, active, first_seen_at, last_seen_at`

func scanListing(row interface{ Scan(...interface{}) error }) (*models.JobListing, error) {
	l := &models.JobListing{}
	var remoteType, employmentType string
	var location, description, requirements, url sql.NullString
	err := row.Scan(&l.ID, &l.Source, &l.ExternalID, &l.Title, &l.Company, &location,
		&remoteType, &l.SalaryMin, &l.SalaryMax, &employmentType, &description,
		&requirements, &url, &l.PostedAt, &l.Active, &l.FirstSeenAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	l.Location = location.String
	l.Description = description.String
	l.Requirements = requirements.String
	l.URL = url.String
	l.RemoteType = models.RemoteType(remoteType)
	l.EmploymentType = models.EmploymentType(employmentType)
	return l, nil
}

// GetListing returns one listing by id. Returns (nil, nil) when absent.
func (s *Store) GetListing(ctx context.Context, id int) (*models.JobListing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// ListActiveListings returns all active listings, newest first.
func (s *Store) ListActiveListings(ctx context.Context) ([]models.JobListing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE active = 1
		 ORDER BY posted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	defer rows.Close()

	listings := []models.JobListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// ListListingsByIDs returns the listings for the given ids, keyed by id.
func (s *Store) ListListingsByIDs(ctx context.Context, ids []int) (map[int]models.JobListing, error) {
	out := make(map[int]models.JobListing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out[l.ID] = *l
	}
	return out, rows.Err()
}
