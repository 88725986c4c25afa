package preparer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/internal/matcher"
	"github.com/applypilot/applypilot/pkg/models"
)

// ErrBelowThreshold is returned when a match's score does not clear the
// preparation bar.
var ErrBelowThreshold = errors.New("match score below preparation threshold")

// Preparer turns qualifying matches into drafts awaiting approval.
type Preparer struct {
	store     *database.Store
	generator ai.Generator
	logger    *zap.Logger
}

// New returns a Preparer backed by the given store and text generator.
func New(store *database.Store, generator ai.Generator, logger *zap.Logger) *Preparer {
	return &Preparer{store: store, generator: generator, logger: logger}
}

// Prepare assembles a draft application for the given match. It is a no-op
// when a live draft already exists for the same profile/listing pair. The
// cover letter comes from the text generator when monthly quota remains and
// the call succeeds; otherwise a deterministic template letter is used and
// the usage counter is left untouched. Generation failure is never a
// preparation failure.
func (p *Preparer) Prepare(ctx context.Context, match *models.JobMatch, listing *models.JobListing) (*models.PreparedApplication, error) {
	if match.Score < matcher.PrepareScore {
		return nil, ErrBelowThreshold
	}

	existing, err := p.store.GetLiveApplication(ctx, match.ProfileID, match.ListingID)
	if err != nil {
		return nil, fmt.Errorf("check existing draft: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// Re-read the profile so the quota window is current.
	profile, err := p.store.GetProfile(ctx, match.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %d not found", match.ProfileID)
	}

	letter, source := p.coverLetter(ctx, profile, listing, match)

	answers := buildAnswers(profile, listing)
	if source == models.LetterSourceGenerated {
		p.generateFreeTextAnswers(ctx, profile, listing, answers)
	}

	app := &models.PreparedApplication{
		MatchID:      match.ID,
		ProfileID:    profile.ID,
		ListingID:    listing.ID,
		CoverLetter:  letter,
		LetterSource: source,
		Answers:      answers,
		Status:       models.ApplicationPrepared,
	}
	if err := p.store.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	// The counter moves only after the draft is durably stored, and only for
	// generator-backed letters.
	if source == models.LetterSourceGenerated {
		if err := p.store.IncrementLettersUsed(ctx, profile.ID); err != nil {
			p.logger.Warn("failed to record letter usage", zap.Int("profile_id", profile.ID), zap.Error(err))
		}
	}

	if err := p.store.SetMatchStatus(ctx, match.ID, models.MatchStatusApplied); err != nil {
		p.logger.Warn("failed to mark match applied", zap.Int("match_id", match.ID), zap.Error(err))
	}

	p.logger.Info("draft prepared",
		zap.Int("profile_id", profile.ID),
		zap.Int("listing_id", listing.ID),
		zap.String("company", listing.Company),
		zap.String("letter_source", string(source)),
	)
	return app, nil
}

// coverLetter produces the letter body and records how it was made.
func (p *Preparer) coverLetter(ctx context.Context, profile *models.UserProfile, listing *models.JobListing, match *models.JobMatch) (string, models.LetterSource) {
	if profile.LettersUsed >= profile.LetterQuota {
		p.logger.Info("letter quota exhausted, using template",
			zap.Int("profile_id", profile.ID),
			zap.Int("quota", profile.LetterQuota),
		)
		return templateLetter(profile, listing), models.LetterSourceTemplate
	}

	prompt := buildLetterPrompt(profile, listing, match)
	letter, err := p.generator.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(letter) == "" {
		p.logger.Warn("cover letter generation failed, using template",
			zap.Int("profile_id", profile.ID),
			zap.String("company", listing.Company),
			zap.Error(err),
		)
		return templateLetter(profile, listing), models.LetterSourceTemplate
	}
	return strings.TrimSpace(letter), models.LetterSourceGenerated
}

func buildLetterPrompt(profile *models.UserProfile, listing *models.JobListing, match *models.JobMatch) string {
	var b strings.Builder

	b.WriteString("Write a concise, professional cover letter for the following job application.\n")
	b.WriteString("Keep it under 300 words, specific to the role, with no placeholder brackets.\n\n")

	fmt.Fprintf(&b, "Candidate: %s\n", profile.Name)
	if len(profile.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(profile.Skills, ", "))
	}
	for _, w := range profile.WorkHistory {
		fmt.Fprintf(&b, "Experience: %s at %s\n", w.Title, w.Company)
	}
	for _, e := range profile.Education {
		fmt.Fprintf(&b, "Education: %s in %s, %s\n", e.Degree, e.Field, e.School)
	}

	fmt.Fprintf(&b, "\nRole: %s\nCompany: %s\nLocation: %s\n", listing.Title, listing.Company, listing.Location)
	if listing.Requirements != "" {
		fmt.Fprintf(&b, "Requirements: %s\n", listing.Requirements)
	}
	if listing.Description != "" {
		desc := listing.Description
		if len(desc) > 1500 {
			desc = desc[:1500]
		}
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if len(match.Reasons) > 0 {
		fmt.Fprintf(&b, "\nEmphasize these strengths: %s\n", strings.Join(match.Reasons, "; "))
	}

	b.WriteString("\nReturn only the letter body, no salutation metadata or commentary.")
	return b.String()
}

// templateLetter is the deterministic fallback used when generation is
// unavailable. It must read acceptably without any model in the loop.
func templateLetter(profile *models.UserProfile, listing *models.JobListing) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dear %s Hiring Team,\n\n", listing.Company)
	fmt.Fprintf(&b, "I am writing to apply for the %s position", listing.Title)
	if listing.Location != "" {
		fmt.Fprintf(&b, " in %s", listing.Location)
	}
	b.WriteString(".\n\n")

	if len(profile.Skills) > 0 {
		skills := profile.Skills
		if len(skills) > 5 {
			skills = skills[:5]
		}
		fmt.Fprintf(&b, "My background includes hands-on experience with %s, ", strings.Join(skills, ", "))
		b.WriteString("and I am confident these skills would let me contribute quickly.\n\n")
	}
	if len(profile.WorkHistory) > 0 {
		recent := profile.WorkHistory[0]
		fmt.Fprintf(&b, "Most recently I worked as %s at %s, where I built directly relevant experience for this role.\n\n", recent.Title, recent.Company)
	}

	fmt.Fprintf(&b, "I would welcome the chance to discuss how I can help %s. Thank you for your consideration.\n\n", listing.Company)
	fmt.Fprintf(&b, "Sincerely,\n%s", profile.Name)
	return b.String()
}

// generateFreeTextAnswers replaces the two templated free-text answers with
// generator-written ones. Each answer falls back to its template text on
// failure; a preparation never fails here.
func (p *Preparer) generateFreeTextAnswers(ctx context.Context, profile *models.UserProfile, listing *models.JobListing, answers map[string]string) {
	prompts := map[string]string{
		"why_company": fmt.Sprintf(
			"In 2-3 sentences, as the candidate %s, answer the application question %q for %s. Return only the answer.",
			profile.Name, "Why do you want to work at this company?", listing.Company),
		"why_role": fmt.Sprintf(
			"In 2-3 sentences, as the candidate %s with skills %s, answer the application question %q for the %s position. Return only the answer.",
			profile.Name, strings.Join(profile.Skills, ", "), "Why are you interested in this role?", listing.Title),
	}
	for key, prompt := range prompts {
		text, err := p.generator.Generate(ctx, prompt)
		if err != nil || strings.TrimSpace(text) == "" {
			p.logger.Warn("answer generation failed, keeping template text",
				zap.String("answer", key),
				zap.Error(err),
			)
			continue
		}
		answers[key] = strings.TrimSpace(text)
	}
}

// buildAnswers fills the supplementary question set every draft carries.
func buildAnswers(profile *models.UserProfile, listing *models.JobListing) map[string]string {
	answers := map[string]string{
		"desired_salary":     salaryAnswer(profile),
		"start_availability": availabilityAnswer(profile),
		"remote_preference":  remoteAnswer(profile, listing),
		"why_company":        fmt.Sprintf("%s's work aligns closely with the roles I am targeting, and I want to contribute to a team operating at that level.", listing.Company),
		"why_role":           fmt.Sprintf("The %s position matches both my skill set and the direction I want my career to grow.", listing.Title),
	}
	return answers
}

func salaryAnswer(profile *models.UserProfile) string {
	switch {
	case profile.SalaryFloor != nil && profile.SalaryCeiling != nil:
		return fmt.Sprintf("$%d - $%d per year", *profile.SalaryFloor, *profile.SalaryCeiling)
	case profile.SalaryFloor != nil:
		return fmt.Sprintf("$%d per year or above", *profile.SalaryFloor)
	default:
		return "Negotiable"
	}
}

func availabilityAnswer(profile *models.UserProfile) string {
	if profile.EmploymentType == models.EmploymentInternship {
		return "Available for the upcoming term"
	}
	return "Two weeks from offer"
}

func remoteAnswer(profile *models.UserProfile, listing *models.JobListing) string {
	switch {
	case listing.RemoteType == models.RemoteTypeRemote && profile.AcceptsRemote():
		return "Fully remote preferred"
	case listing.RemoteType == models.RemoteTypeHybrid:
		return "Open to hybrid arrangements"
	case profile.AcceptsRemote():
		return "Open to remote or on-site work"
	default:
		return "On-site preferred"
	}
}
