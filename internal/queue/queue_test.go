package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/pkg/models"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to models.ApplicationStatus
		allowed  bool
	}{
		{models.ApplicationPrepared, models.ApplicationSubmitted, true},
		{models.ApplicationPrepared, models.ApplicationDismissed, true},
		{models.ApplicationPrepared, models.ApplicationPrepared, false},
		{models.ApplicationSubmitted, models.ApplicationDismissed, false},
		{models.ApplicationSubmitted, models.ApplicationPrepared, false},
		{models.ApplicationDismissed, models.ApplicationSubmitted, false},
		{models.ApplicationDismissed, models.ApplicationPrepared, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, IsTransitionAllowed(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(models.ApplicationPrepared))
	assert.True(t, IsTerminal(models.ApplicationSubmitted))
	assert.True(t, IsTerminal(models.ApplicationDismissed))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("submitted")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, st)

	_, err = ParseStatus("approved")
	assert.Error(t, err)
}

func newTestService(t *testing.T) (*Service, *database.Store) {
	t.Helper()

	db, err := database.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db, zap.NewNop())
	return NewService(store, zap.NewNop()), store
}

func seedDraft(t *testing.T, store *database.Store) *models.PreparedApplication {
	t.Helper()
	ctx := context.Background()

	profile := &models.UserProfile{
		Name: "Dana Smith", Email: "dana@example.com",
		EmploymentType: models.EmploymentFullTime,
		LetterQuota:    10, Active: true,
	}
	require.NoError(t, store.CreateProfile(ctx, profile))

	_, _, err := store.UpsertListings(ctx, []models.JobListing{{
		Source: "startupjobs", ExternalID: "q-1",
		Title: "Backend Engineer", Company: "Acme",
		EmploymentType: models.EmploymentFullTime, Active: true,
	}})
	require.NoError(t, err)
	listings, err := store.ListActiveListings(ctx)
	require.NoError(t, err)

	app := &models.PreparedApplication{
		MatchID:      1,
		ProfileID:    profile.ID,
		ListingID:    listings[0].ID,
		CoverLetter:  "Dear Acme Hiring Team,",
		LetterSource: models.LetterSourceTemplate,
		Status:       models.ApplicationPrepared,
	}
	require.NoError(t, store.CreateApplication(ctx, app))
	return app
}

func TestApproveHappyPath(t *testing.T) {
	svc, store := newTestService(t)
	draft := seedDraft(t, store)
	ctx := context.Background()

	got, err := svc.Approve(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, got.Status)
	assert.NotNil(t, got.SubmittedAt)

	// Approving again is an idempotent success.
	again, err := svc.Approve(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, again.Status)

	// The draft left the ready queue.
	ready, err := svc.ListReady(ctx, draft.ProfileID)
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestApproveAfterDismissFails(t *testing.T) {
	svc, store := newTestService(t)
	draft := seedDraft(t, store)
	ctx := context.Background()

	_, err := svc.Dismiss(ctx, draft.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestDismissAfterApproveFails(t *testing.T) {
	svc, store := newTestService(t)
	draft := seedDraft(t, store)
	ctx := context.Background()

	_, err := svc.Approve(ctx, draft.ID)
	require.NoError(t, err)

	_, err = svc.Dismiss(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	// Repeating the dismissal of a dismissed draft stays idempotent too.
	_, err = svc.Dismiss(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestApproveUnknownID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Dismiss(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
