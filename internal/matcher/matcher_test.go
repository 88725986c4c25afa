package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applypilot/applypilot/pkg/models"
)

func remoteProfile() *models.UserProfile {
	floor := 80000
	return &models.UserProfile{
		ID:               1,
		Skills:           []string{"Go", "Kubernetes", "PostgreSQL"},
		DesiredRoles:     []string{"Backend Engineer"},
		DesiredLocations: []string{models.RemoteLocation},
		SalaryFloor:      &floor,
	}
}

func remoteListing(id int) models.JobListing {
	min, max := 90000, 120000
	now := time.Now().UTC()
	return models.JobListing{
		ID:           id,
		Source:       "startupjobs",
		ExternalID:   "l-1",
		Title:        "Backend Engineer",
		Company:      "Acme",
		Location:     "Remote",
		RemoteType:   models.RemoteTypeRemote,
		SalaryMin:    &min,
		SalaryMax:    &max,
		Requirements: "Go, Kubernetes, PostgreSQL, Rust",
		PostedAt:     &now,
		Active:       true,
	}
}

func TestMatchCompositeScore(t *testing.T) {
	profile := remoteProfile()
	listing := remoteListing(10)

	matches := Match(profile, []models.JobListing{listing})
	require.Len(t, matches, 1)
	m := matches[0]

	// Three of four requirement keywords are in the skill set.
	assert.InDelta(t, 0.75, m.SkillsScore, 1e-9)
	// Remote listing against a remote-accepting profile.
	assert.InDelta(t, 1.0, m.LocationScore, 1e-9)
	// Disclosed minimum clears the floor.
	assert.InDelta(t, 1.0, m.SalaryScore, 1e-9)
	// No target companies configured is neutral.
	assert.InDelta(t, 0.5, m.CompanyScore, 1e-9)
	// Title and desired role are token-identical.
	assert.InDelta(t, 1.0, m.RoleScore, 1e-9)

	assert.InDelta(t, 0.8375, m.Score, 1e-9)
	assert.GreaterOrEqual(t, m.Score, PrepareScore)
	assert.Equal(t, models.MatchStatusNew, m.Status)
}

func TestMatchFiltersBelowVisibility(t *testing.T) {
	profile := remoteProfile()
	targets := []string{"SomeoneElse"}
	profile.TargetCompanies = targets

	listing := remoteListing(11)
	listing.Title = "Forklift Operator"
	listing.Requirements = "Forklift license, Warehouse experience"
	listing.RemoteType = models.RemoteTypeOnsite
	listing.Location = "Omaha"
	low := 40000
	listing.SalaryMin, listing.SalaryMax = &low, &low

	matches := Match(profile, []models.JobListing{listing})
	assert.Empty(t, matches)
}

func TestMatchScoresStayInBounds(t *testing.T) {
	profile := remoteProfile()
	listings := []models.JobListing{remoteListing(1)}

	extra := remoteListing(2)
	extra.Requirements = ""
	extra.Description = "We need Go and Kubernetes engineers for our platform team"
	listings = append(listings, extra)

	for _, m := range Match(profile, listings) {
		for _, s := range []float64{m.Score, m.SkillsScore, m.LocationScore, m.SalaryScore, m.CompanyScore, m.RoleScore} {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestScoreSkillsNoRequirements(t *testing.T) {
	profile := remoteProfile()
	listing := remoteListing(1)
	listing.Requirements = ""
	listing.Description = ""

	score, matched := scoreSkills(profile, &listing)
	assert.Zero(t, score)
	assert.Empty(t, matched)
}

func TestScoreCompany(t *testing.T) {
	listing := remoteListing(1)

	noTargets := remoteProfile()
	assert.InDelta(t, 0.5, scoreCompany(noTargets, &listing), 1e-9)

	targeted := remoteProfile()
	targeted.TargetCompanies = []string{"acme", "Globex"}
	assert.InDelta(t, 1.0, scoreCompany(targeted, &listing), 1e-9)

	missed := remoteProfile()
	missed.TargetCompanies = []string{"Globex"}
	assert.InDelta(t, 0.0, scoreCompany(missed, &listing), 1e-9)
}

func TestScoreSalary(t *testing.T) {
	mk := func(min, max int) *models.JobListing {
		l := remoteListing(1)
		l.SalaryMin, l.SalaryMax = &min, &max
		return &l
	}

	profile := remoteProfile() // floor 80000

	// Minimum clears the floor.
	assert.InDelta(t, 1.0, scoreSalary(profile, mk(80000, 100000)), 1e-9)
	// Entire range below the floor.
	assert.InDelta(t, 0.0, scoreSalary(profile, mk(50000, 70000)), 1e-9)
	// Floor inside the range interpolates: (100000-80000)/(100000-60000).
	assert.InDelta(t, 0.5, scoreSalary(profile, mk(60000, 100000)), 1e-9)

	// Undisclosed is neutral.
	undisclosed := remoteListing(1)
	undisclosed.SalaryMin, undisclosed.SalaryMax = nil, nil
	assert.InDelta(t, 0.5, scoreSalary(profile, &undisclosed), 1e-9)

	// No floor means salary never hurts.
	noFloor := remoteProfile()
	noFloor.SalaryFloor = nil
	assert.InDelta(t, 1.0, scoreSalary(noFloor, mk(10000, 20000)), 1e-9)
}

func TestScoreLocationPartialOverlap(t *testing.T) {
	profile := remoteProfile()
	profile.DesiredLocations = []string{"San Francisco Bay Area"}

	listing := remoteListing(1)
	listing.RemoteType = models.RemoteTypeOnsite
	listing.Location = "South San Francisco"

	assert.InDelta(t, 0.5, scoreLocation(profile, &listing), 1e-9)
}

func TestMatchOrdering(t *testing.T) {
	profile := remoteProfile()

	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC()

	strong := remoteListing(1)
	strong.PostedAt = &older

	weaker := remoteListing(2)
	weaker.ExternalID = "l-2"
	weaker.Requirements = "Go, Rust, Erlang, Haskell"
	weaker.PostedAt = &newer

	tiedWithStrong := remoteListing(3)
	tiedWithStrong.ExternalID = "l-3"
	tiedWithStrong.PostedAt = &newer

	matches := Match(profile, []models.JobListing{strong, weaker, tiedWithStrong})
	require.Len(t, matches, 3)

	// Equal scores break on recency, so the newer tied listing leads.
	assert.Equal(t, 3, matches[0].ListingID)
	assert.Equal(t, 1, matches[1].ListingID)
	assert.Equal(t, 2, matches[2].ListingID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestMatchReasons(t *testing.T) {
	profile := remoteProfile()
	profile.TargetCompanies = []string{"Acme"}

	matches := Match(profile, []models.JobListing{remoteListing(1)})
	require.Len(t, matches, 1)
	reasons := matches[0].Reasons

	require.NotEmpty(t, reasons)
	assert.Contains(t, reasons[0], "Skills match: 75%")
	assert.Contains(t, reasons, "Remote position matches your location preference")
	assert.Contains(t, reasons, "Salary meets your minimum (from $90000)")
	assert.Contains(t, reasons, "Acme is on your target company list")
}

func TestExtractRequirementsDelimiters(t *testing.T) {
	listing := remoteListing(1)
	listing.Requirements = "Go, Kubernetes; PostgreSQL\nRust, go"

	// Delimiters split and duplicates collapse case-insensitively.
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL", "Rust"}, ExtractRequirements(&listing))
}

func TestExtractRequirementsFallsBackToDescription(t *testing.T) {
	listing := remoteListing(1)
	listing.Requirements = "  "
	listing.Description = "You will have strong experience with Go and Kubernetes."

	keywords := ExtractRequirements(&listing)
	assert.Contains(t, keywords, "kubernetes")
	assert.NotContains(t, keywords, "experience")
	assert.NotContains(t, keywords, "and")
}
