package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// flakySource fails a set number of times before succeeding.
type flakySource struct {
	failures int
	calls    int
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Search(ctx context.Context, criteria Criteria) ([]models.JobListing, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return []models.JobListing{{Source: "flaky", ExternalID: "x-1", Title: "Engineer"}}, nil
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	src := &flakySource{}
	r := WithRetry(src, zap.NewNop())

	listings, err := r.Search(context.Background(), Criteria{Role: "engineer"})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 1, src.calls)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}

	src := &flakySource{failures: 1}
	r := WithRetry(src, zap.NewNop())

	listings, err := r.Search(context.Background(), Criteria{Role: "engineer"})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 2, src.calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	src := &flakySource{failures: 10}
	r := WithRetry(src, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Search(ctx, Criteria{Role: "engineer"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.calls)
}

func TestExternalIDFromURL(t *testing.T) {
	cases := map[string]string{
		"https://startup.jobs/jobs/backend-engineer-4821":      "backend-engineer-4821",
		"https://startup.jobs/jobs/backend-engineer-4821/":     "backend-engineer-4821",
		"https://startup.jobs/jobs/backend-4821?utm_source=x":  "backend-4821",
		"https://www.glassdoor.com/partner/jobListing.htm?q=1": "jobListing.htm",
	}
	for url, want := range cases {
		assert.Equal(t, want, externalIDFromURL(url), url)
	}
}

func TestClassifyRemote(t *testing.T) {
	assert.Equal(t, models.RemoteTypeRemote, classifyRemote("Remote (US)", ""))
	assert.Equal(t, models.RemoteTypeHybrid, classifyRemote("Berlin", "hybrid schedule, 2 days onsite"))
	assert.Equal(t, models.RemoteTypeRemote, classifyRemote("Berlin", "this role is fully remote"))
	assert.Equal(t, models.RemoteTypeOnsite, classifyRemote("Berlin", "on site in our office"))
}

func TestParseSalaryRange(t *testing.T) {
	min, max := parseSalaryRange("$70k–$90k")
	require.NotNil(t, min)
	require.NotNil(t, max)
	assert.Equal(t, 70000, *min)
	assert.Equal(t, 90000, *max)

	min, max = parseSalaryRange("$70,000 - $90,000 a year")
	require.NotNil(t, min)
	require.NotNil(t, max)
	assert.Equal(t, 70000, *min)
	assert.Equal(t, 90000, *max)

	min, max = parseSalaryRange("competitive compensation")
	assert.Nil(t, min)
	assert.Nil(t, max)
}
