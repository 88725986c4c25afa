package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/internal/preparer"
	"github.com/applypilot/applypilot/internal/source"
	"github.com/applypilot/applypilot/pkg/models"
)

// fakeSource serves canned listings, or an error, for every query.
type fakeSource struct {
	name     string
	listings []models.JobListing
	err      error
	calls    int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, criteria source.Criteria) ([]models.JobListing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Dear team, I am a great fit.", nil
}

func testConfig() *config.Config {
	return &config.Config{
		DiscoveryIntervalHours: 24,
		PrepareIntervalMinutes: 30,
		MaxConcurrentUsers:     4,
		PrepareRunCap:          2,
		ListingGraceDays:       14,
		CycleTimeoutMinutes:    1,
		GenerateTimeoutSeconds: 5,
	}
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := database.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewStore(db, zap.NewNop())
}

func seedProfile(t *testing.T, store *database.Store) *models.UserProfile {
	t.Helper()

	floor := 80000
	profile := &models.UserProfile{
		Name:             "Dana Smith",
		Email:            "dana@example.com",
		Skills:           []string{"Go", "Kubernetes", "PostgreSQL"},
		DesiredRoles:     []string{"Backend Engineer"},
		DesiredLocations: []string{models.RemoteLocation},
		SalaryFloor:      &floor,
		EmploymentType:   models.EmploymentFullTime,
		LetterQuota:      10,
		Active:           true,
	}
	require.NoError(t, store.CreateProfile(context.Background(), profile))
	return profile
}

func boardListing(externalID string) models.JobListing {
	min, max := 90000, 120000
	return models.JobListing{
		Source:         "fakeboard",
		ExternalID:     externalID,
		Title:          "Backend Engineer",
		Company:        "Acme",
		Location:       "Remote",
		RemoteType:     models.RemoteTypeRemote,
		SalaryMin:      &min,
		SalaryMax:      &max,
		EmploymentType: models.EmploymentFullTime,
		Requirements:   "Go, Kubernetes, PostgreSQL, Rust",
		URL:            "https://fakeboard.example/" + externalID,
		Active:         true,
	}
}

func TestDiscoverEndToEnd(t *testing.T) {
	store := newTestStore(t)
	profile := seedProfile(t, store)
	cfg := testConfig()

	src := &fakeSource{
		name:     "fakeboard",
		listings: []models.JobListing{boardListing("d-1"), boardListing("d-2")},
	}
	prep := preparer.New(store, fakeGenerator{}, zap.NewNop())
	w := NewWorker(store, []source.Source{src}, prep, cfg, zap.NewNop())
	ctx := context.Background()

	run, err := w.Discover(ctx, profile, models.RunTriggerManual)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Found)
	assert.Equal(t, 2, run.New)
	assert.Equal(t, 0, run.Updated)
	assert.Equal(t, 0, run.Errored)
	assert.Equal(t, 1, src.calls) // one role, one location

	// Both listings landed and were scored above the preparation bar.
	matches, err := store.ListMatches(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Greater(t, m.Score, 0.7)
	}

	// A second discovery of the same boards counts updates, not inserts.
	run2, err := w.Discover(ctx, profile, models.RunTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, run2.New)
	assert.Equal(t, 2, run2.Updated)
}

func TestDiscoverSourceFailureIsIsolated(t *testing.T) {
	store := newTestStore(t)
	profile := seedProfile(t, store)

	broken := &fakeSource{name: "brokenboard", err: errors.New("blocked")}
	healthy := &fakeSource{name: "fakeboard", listings: []models.JobListing{boardListing("d-3")}}

	prep := preparer.New(store, fakeGenerator{}, zap.NewNop())
	w := NewWorker(store, []source.Source{broken, healthy}, prep, testConfig(), zap.NewNop())

	run, err := w.Discover(context.Background(), profile, models.RunTriggerScheduled)
	require.NoError(t, err)

	// The broken source is tallied, the healthy one still lands.
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Errored)
	assert.Equal(t, 1, run.New)
}

func TestPrepareBatchRespectsCap(t *testing.T) {
	store := newTestStore(t)
	profile := seedProfile(t, store)
	cfg := testConfig() // cap of 2

	src := &fakeSource{name: "fakeboard", listings: []models.JobListing{
		boardListing("c-1"), boardListing("c-2"), boardListing("c-3"),
	}}
	prep := preparer.New(store, fakeGenerator{}, zap.NewNop())
	w := NewWorker(store, []source.Source{src}, prep, cfg, zap.NewNop())
	ctx := context.Background()

	_, err := w.Discover(ctx, profile, models.RunTriggerManual)
	require.NoError(t, err)

	run, err := w.PrepareBatch(ctx, profile, models.RunTriggerScheduled)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Found)
	assert.Equal(t, 2, run.New)

	drafts, err := store.ListPreparedApplications(ctx, profile.ID)
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	// The next cycle picks up the remaining candidate.
	run2, err := w.PrepareBatch(ctx, profile, models.RunTriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, run2.New)

	drafts, err = store.ListPreparedApplications(ctx, profile.ID)
	require.NoError(t, err)
	assert.Len(t, drafts, 3)
}

func TestDiscoverBudgetOverrunRecordsFailedRun(t *testing.T) {
	store := newTestStore(t)
	profile := seedProfile(t, store)
	ctx := context.Background()

	cfg := testConfig()
	cfg.CycleTimeoutMinutes = 0 // budget spent before the cycle starts

	src := &fakeSource{name: "fakeboard", listings: []models.JobListing{boardListing("b-1")}}
	prep := preparer.New(store, fakeGenerator{}, zap.NewNop())
	w := NewWorker(store, []source.Source{src}, prep, cfg, zap.NewNop())

	// The cycle blows its budget, but the run must still be finalized as
	// failed rather than left unfinished.
	run, err := w.Discover(ctx, profile, models.RunTriggerScheduled)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)

	runs, err := store.ListRuns(ctx, profile.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)

	// The overlap guard is free: the next cycle runs normally.
	cfg.CycleTimeoutMinutes = 1
	run2, err := w.Discover(ctx, profile, models.RunTriggerManual)
	require.NoError(t, err)
	require.NotNil(t, run2)
	assert.Equal(t, models.RunStatusCompleted, run2.Status)
}

func TestPrepareBatchSkipsWhenOverlapping(t *testing.T) {
	store := newTestStore(t)
	profile := seedProfile(t, store)

	// Simulate an unfinished preparation run.
	_, err := store.StartRun(context.Background(), profile.ID,
		models.RunKindPreparation, models.RunTriggerScheduled)
	require.NoError(t, err)

	prep := preparer.New(store, fakeGenerator{}, zap.NewNop())
	w := NewWorker(store, nil, prep, testConfig(), zap.NewNop())

	run, err := w.PrepareBatch(context.Background(), profile, models.RunTriggerScheduled)
	require.NoError(t, err)
	assert.Nil(t, run)
}
