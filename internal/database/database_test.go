package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// newTestStore opens a fresh migrated database in a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db, zap.NewNop())
}

func testProfile() *models.UserProfile {
	floor := 80000
	return &models.UserProfile{
		Name:             "Dana Smith",
		Email:            "dana@example.com",
		Skills:           []string{"Go", "PostgreSQL", "Docker"},
		DesiredRoles:     []string{"Backend Engineer"},
		DesiredLocations: []string{models.RemoteLocation, "Berlin"},
		SalaryFloor:      &floor,
		EmploymentType:   models.EmploymentFullTime,
		LetterQuota:      3,
		Active:           true,
	}
}

func testListing(externalID string) models.JobListing {
	now := time.Now().UTC()
	return models.JobListing{
		Source:         "startupjobs",
		ExternalID:     externalID,
		Title:          "Backend Engineer",
		Company:        "Acme",
		Location:       "Berlin",
		RemoteType:     models.RemoteTypeHybrid,
		EmploymentType: models.EmploymentFullTime,
		Description:    "Build services in Go",
		URL:            "https://startup.jobs/jobs/" + externalID,
		PostedAt:       &now,
		Active:         true,
	}
}

func TestCreateAndGetProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))
	require.NotZero(t, p.ID)

	got, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, p.Name, got.Name)
	require.Equal(t, p.Skills, got.Skills)
	require.Equal(t, 80000, *got.SalaryFloor)
	require.True(t, got.AcceptsRemote())
}

func TestGetProfileAbsent(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetProfile(context.Background(), 999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestQuotaWindowRollover(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	// Window expired two and a half months ago with the quota fully spent.
	p.QuotaResetsAt = time.Now().UTC().AddDate(0, -2, -15)
	require.NoError(t, store.CreateProfile(ctx, p))

	_, err := store.DB().ExecContext(ctx,
		`UPDATE profiles SET letters_used = letter_quota WHERE id = ?`, p.ID)
	require.NoError(t, err)

	got, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)

	// Counter resets and the boundary lands in the future, advanced by whole
	// months from the stored timestamp.
	require.Equal(t, 0, got.LettersUsed)
	require.True(t, got.QuotaResetsAt.After(time.Now().UTC()))
	require.True(t, got.QuotaResetsAt.Before(time.Now().UTC().AddDate(0, 1, 1)))
}

func TestQuotaWindowNotYetExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	resetsAt := time.Now().UTC().AddDate(0, 0, 10)
	p.QuotaResetsAt = resetsAt
	p.LettersUsed = 2
	require.NoError(t, store.CreateProfile(ctx, p))

	got, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.LettersUsed)
	require.WithinDuration(t, resetsAt, got.QuotaResetsAt, time.Second)
}

func TestIncrementLettersUsedStopsAtQuota(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	p.LetterQuota = 2
	require.NoError(t, store.CreateProfile(ctx, p))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.IncrementLettersUsed(ctx, p.ID))
	}

	got, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.LettersUsed)
}

func TestUpsertListingsDedupes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testListing("acme-backend-123")
	inserted, updated, err := store.UpsertListings(ctx, []models.JobListing{first})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Equal(t, 0, updated)

	// Same identity with changed mutable fields updates in place.
	second := first
	second.Title = "Senior Backend Engineer"
	second.Location = "Berlin, DE"
	inserted, updated, err = store.UpsertListings(ctx, []models.JobListing{second})
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
	require.Equal(t, 1, updated)

	active, err := store.ListActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Senior Backend Engineer", active[0].Title)
	require.Equal(t, "Berlin, DE", active[0].Location)
}

func TestUpsertListingsSameExternalIDDifferentSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testListing("shared-id")
	b := testListing("shared-id")
	b.Source = "glassdoor"

	inserted, updated, err := store.UpsertListings(ctx, []models.JobListing{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.Equal(t, 0, updated)
}

func TestMarkStaleListings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := testListing("old-posting")
	_, _, err := store.UpsertListings(ctx, []models.JobListing{l})
	require.NoError(t, err)

	// Push last_seen_at beyond the grace window.
	_, err = store.DB().ExecContext(ctx,
		`UPDATE listings SET last_seen_at = ? WHERE external_id = ?`,
		time.Now().UTC().AddDate(0, 0, -30), l.ExternalID)
	require.NoError(t, err)

	retired, err := store.MarkStaleListings(ctx, l.Source, 14*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, retired)

	active, err := store.ListActiveListings(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestStartRunOverlapGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))

	run, err := store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerScheduled)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	// A second discovery run for the same profile is rejected while the first
	// is unfinished.
	_, err = store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerManual)
	require.ErrorIs(t, err, ErrRunInProgress)

	// A different kind is unaffected.
	prep, err := store.StartRun(ctx, p.ID, models.RunKindPreparation, models.RunTriggerScheduled)
	require.NoError(t, err)
	require.NotEmpty(t, prep.ID)

	// Finalizing unblocks the next cycle.
	run.Status = models.RunStatusCompleted
	require.NoError(t, store.FinishRun(ctx, run))

	again, err := store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerScheduled)
	require.NoError(t, err)
	require.NotEqual(t, run.ID, again.ID)
}

func TestFailStaleRunsUnblocksProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))

	// An unfinished run, e.g. left behind by a crashed process, holds the
	// overlap guard.
	run, err := store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerScheduled)
	require.NoError(t, err)
	_, err = store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerScheduled)
	require.ErrorIs(t, err, ErrRunInProgress)

	n, err := store.FailStaleRuns(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	runs, err := store.ListRuns(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)

	// The guard is released for the next cycle.
	again, err := store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerScheduled)
	require.NoError(t, err)
	require.NotEqual(t, run.ID, again.ID)

	// Runs started after the cutoff are untouched.
	n, err = store.FailStaleRuns(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFinishRunRecordsCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))

	run, err := store.StartRun(ctx, p.ID, models.RunKindDiscovery, models.RunTriggerManual)
	require.NoError(t, err)

	run.Found = 12
	run.New = 7
	run.Updated = 5
	run.Errored = 1
	run.Status = models.RunStatusCompleted
	require.NoError(t, store.FinishRun(ctx, run))

	runs, err := store.ListRuns(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 7, runs[0].New)
	require.Equal(t, models.RunStatusCompleted, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestUpsertMatchesRescoresInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))
	_, _, err := store.UpsertListings(ctx, []models.JobListing{testListing("m-1")})
	require.NoError(t, err)
	listings, err := store.ListActiveListings(ctx)
	require.NoError(t, err)

	match := models.JobMatch{
		ProfileID: p.ID,
		ListingID: listings[0].ID,
		Score:     0.65,
		Reasons:   []string{"Matches 2 of your skills"},
		Status:    models.MatchStatusNew,
	}
	require.NoError(t, store.UpsertMatches(ctx, []models.JobMatch{match}))

	// Re-discovery with a different score updates the same row.
	match.Score = 0.80
	require.NoError(t, store.UpsertMatches(ctx, []models.JobMatch{match}))

	matches, err := store.ListMatches(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.InDelta(t, 0.80, matches[0].Score, 1e-9)
}

func TestApplicationTransitionsAreGuarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))
	_, _, err := store.UpsertListings(ctx, []models.JobListing{testListing("a-1")})
	require.NoError(t, err)
	listings, err := store.ListActiveListings(ctx)
	require.NoError(t, err)

	app := &models.PreparedApplication{
		MatchID:      1,
		ProfileID:    p.ID,
		ListingID:    listings[0].ID,
		CoverLetter:  "Dear Acme...",
		LetterSource: models.LetterSourceTemplate,
		Answers:      map[string]string{"desired_salary": "Negotiable"},
		Status:       models.ApplicationPrepared,
	}
	require.NoError(t, store.CreateApplication(ctx, app))

	moved, err := store.MarkApplicationSubmitted(ctx, app.ID)
	require.NoError(t, err)
	require.True(t, moved)

	// Terminal rows no longer move.
	moved, err = store.MarkApplicationDismissed(ctx, app.ID)
	require.NoError(t, err)
	require.False(t, moved)

	got, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationSubmitted, got.Status)
	require.NotNil(t, got.SubmittedAt)
}

func TestGetLiveApplicationIgnoresDismissed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProfile()
	require.NoError(t, store.CreateProfile(ctx, p))
	_, _, err := store.UpsertListings(ctx, []models.JobListing{testListing("a-2")})
	require.NoError(t, err)
	listings, err := store.ListActiveListings(ctx)
	require.NoError(t, err)
	listingID := listings[0].ID

	app := &models.PreparedApplication{
		MatchID:      1,
		ProfileID:    p.ID,
		ListingID:    listingID,
		CoverLetter:  "Dear Acme...",
		LetterSource: models.LetterSourceTemplate,
		Status:       models.ApplicationPrepared,
	}
	require.NoError(t, store.CreateApplication(ctx, app))

	live, err := store.GetLiveApplication(ctx, p.ID, listingID)
	require.NoError(t, err)
	require.NotNil(t, live)

	_, err = store.MarkApplicationDismissed(ctx, app.ID)
	require.NoError(t, err)

	// Dismissal frees the pair for a fresh draft.
	live, err = store.GetLiveApplication(ctx, p.ID, listingID)
	require.NoError(t, err)
	require.Nil(t, live)

	fresh := &models.PreparedApplication{
		MatchID:      1,
		ProfileID:    p.ID,
		ListingID:    listingID,
		CoverLetter:  "Dear Acme, take two...",
		LetterSource: models.LetterSourceTemplate,
		Status:       models.ApplicationPrepared,
	}
	require.NoError(t, store.CreateApplication(ctx, fresh))
}
