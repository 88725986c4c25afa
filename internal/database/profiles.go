package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// marshalJSON is a scan/exec helper for JSON-encoded columns. Errors are
// impossible for the slice/map types stored here.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// CreateProfile inserts a new profile. The quota window starts one month out.
func (s *Store) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	if p.QuotaResetsAt.IsZero() {
		p.QuotaResetsAt = time.Now().UTC().AddDate(0, 1, 0)
	}
	query := `INSERT INTO profiles (name, email, skills, education, work_history,
			  desired_roles, desired_locations, target_companies, salary_floor, salary_ceiling,
			  employment_type, letter_quota, letters_used, quota_resets_at, active)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, p.Name, p.Email,
		marshalJSON(p.Skills), marshalJSON(p.Education), marshalJSON(p.WorkHistory),
		marshalJSON(p.DesiredRoles), marshalJSON(p.DesiredLocations), marshalJSON(p.TargetCompanies),
		p.SalaryFloor, p.SalaryCeiling, string(p.EmploymentType),
		p.LetterQuota, p.LettersUsed, p.QuotaResetsAt, p.Active)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	id, _ := result.LastInsertId()
	p.ID = int(id)
	return nil
}

const profileColumns = `id, name, email, skills, education, work_history,
	desired_roles, desired_locations, target_companies, salary_floor, salary_ceiling,
	employment_type, letter_quota, letters_used, quota_resets_at, active,
	created_at, updated_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	var skills, education, workHistory, roles, locations, companies string
	var employmentType string
	err := row.Scan(&p.ID, &p.Name, &p.Email, &skills, &education, &workHistory,
		&roles, &locations, &companies, &p.SalaryFloor, &p.SalaryCeiling,
		&employmentType, &p.LetterQuota, &p.LettersUsed, &p.QuotaResetsAt, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.EmploymentType = models.EmploymentType(employmentType)
	json.Unmarshal([]byte(skills), &p.Skills)
	json.Unmarshal([]byte(education), &p.Education)
	json.Unmarshal([]byte(workHistory), &p.WorkHistory)
	json.Unmarshal([]byte(roles), &p.DesiredRoles)
	json.Unmarshal([]byte(locations), &p.DesiredLocations)
	json.Unmarshal([]byte(companies), &p.TargetCompanies)
	return p, nil
}

// GetProfile returns one profile by id, rolling the quota window forward if
// the reset timestamp has passed. Returns (nil, nil) when absent.
func (s *Store) GetProfile(ctx context.Context, id int) (*models.UserProfile, error) {
	if err := s.ensureQuotaWindow(ctx, id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListActiveProfiles returns every profile eligible for scheduled cycles.
func (s *Store) ListActiveProfiles(ctx context.Context) ([]*models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile persists user-editable preference fields.
func (s *Store) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	query := `UPDATE profiles SET name=?, email=?, skills=?, education=?, work_history=?,
			  desired_roles=?, desired_locations=?, target_companies=?,
			  salary_floor=?, salary_ceiling=?, employment_type=?, letter_quota=?,
			  active=?, updated_at=? WHERE id=?`
	_, err := s.db.ExecContext(ctx, query, p.Name, p.Email,
		marshalJSON(p.Skills), marshalJSON(p.Education), marshalJSON(p.WorkHistory),
		marshalJSON(p.DesiredRoles), marshalJSON(p.DesiredLocations), marshalJSON(p.TargetCompanies),
		p.SalaryFloor, p.SalaryCeiling, string(p.EmploymentType), p.LetterQuota,
		p.Active, time.Now().UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// IncrementLettersUsed bumps the usage counter by one after a successful
// collaborator-backed generation. The counter never exceeds the quota.
func (s *Store) IncrementLettersUsed(ctx context.Context, profileID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET letters_used = letters_used + 1, updated_at = ?
		 WHERE id = ? AND letters_used < letter_quota`,
		time.Now().UTC(), profileID)
	if err != nil {
		return fmt.Errorf("increment letters used: %w", err)
	}
	return nil
}

// ensureQuotaWindow resets the monthly usage counter when the current time has
// crossed the stored reset timestamp, advancing the timestamp by exactly one
// month per crossing.
func (s *Store) ensureQuotaWindow(ctx context.Context, profileID int) error {
	var resetsAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT quota_resets_at FROM profiles WHERE id = ?`, profileID).Scan(&resetsAt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read quota window: %w", err)
	}

	now := time.Now().UTC()
	if now.Before(resetsAt) {
		return nil
	}

	next := resetsAt
	for !now.Before(next) {
		next = next.AddDate(0, 1, 0)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE profiles SET letters_used = 0, quota_resets_at = ?, updated_at = ?
		 WHERE id = ? AND quota_resets_at = ?`,
		next, now, profileID, resetsAt)
	if err != nil {
		return fmt.Errorf("reset quota window: %w", err)
	}
	s.logger.Info("quota window rolled over",
		zap.Int("profile_id", profileID),
		zap.Time("next_reset", next),
	)
	return nil
}

// DeleteProfile removes a profile and, via cascades, its matches, drafts,
// and runs. Only explicit account deletion calls this.
func (s *Store) DeleteProfile(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
