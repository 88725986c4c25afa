package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/applypilot/applypilot/pkg/models"
)

const matchColumns = `id, profile_id, listing_id, score, skills_score, location_score,
	salary_score, company_score, role_score, reasons, status, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.JobMatch, error) {
	m := &models.JobMatch{}
	var reasons, status string
	err := row.Scan(&m.ID, &m.ProfileID, &m.ListingID, &m.Score, &m.SkillsScore,
		&m.LocationScore, &m.SalaryScore, &m.CompanyScore, &m.RoleScore,
		&reasons, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	json.Unmarshal([]byte(reasons), &m.Reasons)
	return m, nil
}

// UpsertMatches stores freshly scored matches. A match with the same
// (profile, listing) key as an existing non-dismissed row updates that row's
// scores and reasons in place; dismissed matches for the pair stay untouched
// and a new row is created only when none is live.
func (s *Store) UpsertMatches(ctx context.Context, matches []models.JobMatch) error {
	now := time.Now().UTC()
	for i := range matches {
		m := &matches[i]

		var existingID int
		lookupErr := s.db.QueryRowContext(ctx,
			`SELECT id FROM matches WHERE profile_id = ? AND listing_id = ? AND status != 'dismissed'`,
			m.ProfileID, m.ListingID).Scan(&existingID)

		switch {
		case lookupErr == sql.ErrNoRows:
			result, err := s.db.ExecContext(ctx,
				`INSERT INTO matches (profile_id, listing_id, score, skills_score, location_score,
					salary_score, company_score, role_score, reasons, status)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'new')`,
				m.ProfileID, m.ListingID, m.Score, m.SkillsScore, m.LocationScore,
				m.SalaryScore, m.CompanyScore, m.RoleScore, marshalJSON(m.Reasons))
			if err != nil {
				return fmt.Errorf("insert match (%d, %d): %w", m.ProfileID, m.ListingID, err)
			}
			id, _ := result.LastInsertId()
			m.ID = int(id)
			m.Status = models.MatchStatusNew

		case lookupErr != nil:
			return fmt.Errorf("lookup match (%d, %d): %w", m.ProfileID, m.ListingID, lookupErr)

		default:
			_, err := s.db.ExecContext(ctx,
				`UPDATE matches SET score=?, skills_score=?, location_score=?, salary_score=?,
					company_score=?, role_score=?, reasons=?, updated_at=? WHERE id=?`,
				m.Score, m.SkillsScore, m.LocationScore, m.SalaryScore,
				m.CompanyScore, m.RoleScore, marshalJSON(m.Reasons), now, existingID)
			if err != nil {
				return fmt.Errorf("update match (%d, %d): %w", m.ProfileID, m.ListingID, err)
			}
			m.ID = existingID
		}
	}
	return nil
}

// GetMatch returns one match by id. Returns (nil, nil) when absent.
func (s *Store) GetMatch(ctx context.Context, id int) (*models.JobMatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMatches returns a profile's matches, best score first.
func (s *Store) ListMatches(ctx context.Context, profileID int) ([]models.JobMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE profile_id = ? ORDER BY score DESC, id`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	matches := []models.JobMatch{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// ListPreparableMatches returns matches at or above the given score with no
// live draft, best score first, capped at limit.
func (s *Store) ListPreparableMatches(ctx context.Context, profileID int, minScore float64, limit int) ([]models.JobMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches m
		 WHERE m.profile_id = ? AND m.score >= ? AND m.status NOT IN ('dismissed', 'applied')
		   AND NOT EXISTS (
		     SELECT 1 FROM applications a
		     WHERE a.profile_id = m.profile_id AND a.listing_id = m.listing_id
		       AND a.status != 'dismissed'
		   )
		 ORDER BY m.score DESC, m.id
		 LIMIT ?`,
		profileID, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("list preparable matches: %w", err)
	}
	defer rows.Close()

	matches := []models.JobMatch{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// SetMatchStatus transitions a match's status.
func (s *Store) SetMatchStatus(ctx context.Context, id int, status models.MatchStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set match status: %w", err)
	}
	return nil
}
