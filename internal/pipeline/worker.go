package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/internal/matcher"
	"github.com/applypilot/applypilot/internal/preparer"
	"github.com/applypilot/applypilot/internal/source"
	"github.com/applypilot/applypilot/pkg/models"
)

// Worker executes one user's pipeline cycles. Discovery and preparation are
// independent; the caller decides when each runs.
type Worker struct {
	store    *database.Store
	sources  []source.Source
	preparer *preparer.Preparer
	cfg      *config.Config
	logger   *zap.Logger
}

// NewWorker wires a Worker from its collaborators.
func NewWorker(store *database.Store, sources []source.Source, prep *preparer.Preparer, cfg *config.Config, logger *zap.Logger) *Worker {
	return &Worker{
		store:    store,
		sources:  sources,
		preparer: prep,
		cfg:      cfg,
		logger:   logger,
	}
}

// Discover runs one discovery cycle for a profile: scrape every configured
// board for every desired role/location pair, upsert the results, retire
// listings not seen within the grace window, then rescore the profile against
// all active listings. A cycle already in flight for this profile is skipped,
// not queued.
func (w *Worker) Discover(ctx context.Context, profile *models.UserProfile, trigger models.RunTrigger) (*models.ScrapeRun, error) {
	budget := time.Duration(w.cfg.CycleTimeoutMinutes) * time.Minute
	w.reconcileStaleRuns(ctx, budget)

	run, err := w.store.StartRun(ctx, profile.ID, models.RunKindDiscovery, trigger)
	if errors.Is(err, database.ErrRunInProgress) {
		w.logger.Info("discovery already running, skipping",
			zap.Int("profile_id", profile.ID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start discovery run: %w", err)
	}

	// Finalization must outlive the cycle budget: a run that timed out has
	// to record its own failure, or the overlap guard would block this
	// profile's cycles from then on.
	finishCtx := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	findings, sourceErrs := w.scrapeAll(ctx, profile)
	run.Found = len(findings)
	run.Errored = sourceErrs

	if err := w.ingest(ctx, profile, run, findings); err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if ferr := w.store.FinishRun(finishCtx, run); ferr != nil {
			w.logger.Error("failed to finalize failed run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return run, err
	}

	run.Status = models.RunStatusCompleted
	if err := w.store.FinishRun(finishCtx, run); err != nil {
		return run, fmt.Errorf("finish discovery run: %w", err)
	}

	w.logger.Info("discovery cycle complete",
		zap.Int("profile_id", profile.ID),
		zap.Int("found", run.Found),
		zap.Int("new", run.New),
		zap.Int("updated", run.Updated),
		zap.Int("errored", run.Errored),
	)
	return run, nil
}

// reconcileStaleRuns fails runs that should have finished long ago. A run can
// be left unfinished when the process dies mid-cycle; anything older than
// twice the cycle budget cannot still be live.
func (w *Worker) reconcileStaleRuns(ctx context.Context, budget time.Duration) {
	n, err := w.store.FailStaleRuns(ctx, time.Now().UTC().Add(-2*budget))
	if err != nil {
		w.logger.Warn("stale run reconciliation failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Warn("failed abandoned runs", zap.Int("count", n))
	}
}

// scrapeAll queries every source for every role/location combination the
// profile asks for. A failing source costs one errored increment per query
// and never aborts the cycle.
func (w *Worker) scrapeAll(ctx context.Context, profile *models.UserProfile) ([]models.JobListing, int) {
	locations := profile.DesiredLocations
	if len(locations) == 0 {
		locations = []string{""}
	}

	var findings []models.JobListing
	errored := 0
	for _, src := range w.sources {
		for _, role := range profile.DesiredRoles {
			for _, loc := range locations {
				if ctx.Err() != nil {
					return findings, errored
				}
				crit := source.Criteria{
					Role:     role,
					Location: loc,
					Type:     profile.EmploymentType,
				}
				listings, err := src.Search(ctx, crit)
				if err != nil {
					errored++
					w.logger.Warn("source search failed",
						zap.String("source", src.Name()),
						zap.String("role", role),
						zap.String("location", loc),
						zap.Error(err),
					)
					continue
				}
				findings = append(findings, listings...)
			}
		}
	}
	return findings, errored
}

// ingest persists scraped listings, retires stale ones, and rescores the
// profile against everything still active.
func (w *Worker) ingest(ctx context.Context, profile *models.UserProfile, run *models.ScrapeRun, findings []models.JobListing) error {
	inserted, updated, err := w.store.UpsertListings(ctx, findings)
	if err != nil {
		return fmt.Errorf("upsert listings: %w", err)
	}
	run.New = inserted
	run.Updated = updated

	grace := time.Duration(w.cfg.ListingGraceDays) * 24 * time.Hour
	for _, src := range w.sources {
		retired, err := w.store.MarkStaleListings(ctx, src.Name(), grace)
		if err != nil {
			return fmt.Errorf("retire stale listings for %s: %w", src.Name(), err)
		}
		if retired > 0 {
			w.logger.Info("retired stale listings",
				zap.String("source", src.Name()),
				zap.Int("count", retired))
		}
	}

	active, err := w.store.ListActiveListings(ctx)
	if err != nil {
		return fmt.Errorf("load active listings: %w", err)
	}

	matches := matcher.Match(profile, active)
	if err := w.store.UpsertMatches(ctx, matches); err != nil {
		return fmt.Errorf("upsert matches: %w", err)
	}
	return nil
}

// PrepareBatch runs one preparation cycle for a profile: take the top
// qualifying matches up to the per-run cap and turn each into a draft. The
// run's New counter records drafts created; Errored records matches that
// failed preparation.
func (w *Worker) PrepareBatch(ctx context.Context, profile *models.UserProfile, trigger models.RunTrigger) (*models.ScrapeRun, error) {
	budget := time.Duration(w.cfg.CycleTimeoutMinutes) * time.Minute
	w.reconcileStaleRuns(ctx, budget)

	run, err := w.store.StartRun(ctx, profile.ID, models.RunKindPreparation, trigger)
	if errors.Is(err, database.ErrRunInProgress) {
		w.logger.Info("preparation already running, skipping",
			zap.Int("profile_id", profile.ID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start preparation run: %w", err)
	}

	finishCtx := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	matches, err := w.store.ListPreparableMatches(ctx, profile.ID, matcher.PrepareScore, w.cfg.PrepareRunCap)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if ferr := w.store.FinishRun(finishCtx, run); ferr != nil {
			w.logger.Error("failed to finalize failed run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return run, fmt.Errorf("list preparable matches: %w", err)
	}
	run.Found = len(matches)

	listingIDs := make([]int, 0, len(matches))
	for _, m := range matches {
		listingIDs = append(listingIDs, m.ListingID)
	}
	listings, err := w.store.ListListingsByIDs(ctx, listingIDs)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if ferr := w.store.FinishRun(finishCtx, run); ferr != nil {
			w.logger.Error("failed to finalize failed run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return run, fmt.Errorf("load match listings: %w", err)
	}

	for i := range matches {
		m := &matches[i]
		listing, ok := listings[m.ListingID]
		if !ok {
			run.Errored++
			continue
		}
		if _, err := w.preparer.Prepare(ctx, m, &listing); err != nil {
			run.Errored++
			w.logger.Warn("preparation failed for match",
				zap.Int("match_id", m.ID),
				zap.Int("listing_id", m.ListingID),
				zap.Error(err),
			)
			continue
		}
		run.New++
	}

	run.Status = models.RunStatusCompleted
	if err := w.store.FinishRun(finishCtx, run); err != nil {
		return run, fmt.Errorf("finish preparation run: %w", err)
	}

	w.logger.Info("preparation cycle complete",
		zap.Int("profile_id", profile.ID),
		zap.Int("candidates", run.Found),
		zap.Int("drafted", run.New),
		zap.Int("errored", run.Errored),
	)
	return run, nil
}
