// Package source defines the job-board adapter the pipeline consumes. The
// pipeline depends only on the Search contract; boards may return duplicates
// across calls and the listing store handles deduplication downstream.
package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/pkg/models"
)

// Criteria is one board query: a role/location pair plus employment type.
type Criteria struct {
	Role     string
	Location string
	Type     models.EmploymentType
}

// Source fetches raw postings for one set of criteria. Implementations must
// be safe to call repeatedly with the same criteria.
type Source interface {
	Name() string
	Search(ctx context.Context, criteria Criteria) ([]models.JobListing, error)
}

const (
	maxAttempts  = 3
	initialDelay = 2 * time.Second
)

// Retrying wraps a Source with up to three attempts and doubling delay
// between them. Context cancellation stops the retry loop immediately.
type Retrying struct {
	inner  Source
	logger *zap.Logger
}

// WithRetry wraps src in transient-failure retries.
func WithRetry(src Source, logger *zap.Logger) *Retrying {
	return &Retrying{inner: src, logger: logger}
}

func (r *Retrying) Name() string { return r.inner.Name() }

// Search delegates to the wrapped source, retrying transient failures.
func (r *Retrying) Search(ctx context.Context, criteria Criteria) ([]models.JobListing, error) {
	delay := initialDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		listings, err := r.inner.Search(ctx, criteria)
		if err == nil {
			return listings, nil
		}
		lastErr = err
		r.logger.Warn("job source search failed",
			zap.String("source", r.inner.Name()),
			zap.String("role", criteria.Role),
			zap.String("location", criteria.Location),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
