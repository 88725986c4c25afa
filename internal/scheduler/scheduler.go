package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/internal/pipeline"
	"github.com/applypilot/applypilot/pkg/models"
)

// Scheduler drives the two recurring cadences: a discovery sweep every few
// hours and a preparation sweep every few minutes. Each sweep fans out over
// all active profiles with a bounded level of concurrency; one profile's
// failure never touches another's cycle.
type Scheduler struct {
	cron   *cron.Cron
	worker *pipeline.Worker
	store  *database.Store
	cfg    *config.Config
	logger *zap.Logger

	// sem bounds how many user cycles run at once across both cadences.
	sem chan struct{}
	wg  sync.WaitGroup
}

// New builds a Scheduler around the given worker.
func New(worker *pipeline.Worker, store *database.Store, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		worker: worker,
		store:  store,
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentUsers),
	}
}

// Start registers both cadences and begins ticking. It returns once the cron
// loop is running; ctx cancellation stops new sweeps from being scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	discoverySpec := fmt.Sprintf("@every %dh", s.cfg.DiscoveryIntervalHours)
	prepareSpec := fmt.Sprintf("@every %dm", s.cfg.PrepareIntervalMinutes)

	if _, err := s.cron.AddFunc(discoverySpec, func() {
		s.sweep(ctx, models.RunKindDiscovery)
	}); err != nil {
		return fmt.Errorf("register discovery cadence: %w", err)
	}
	if _, err := s.cron.AddFunc(prepareSpec, func() {
		s.sweep(ctx, models.RunKindPreparation)
	}); err != nil {
		return fmt.Errorf("register preparation cadence: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("discovery", discoverySpec),
		zap.String("preparation", prepareSpec),
		zap.Int("max_concurrent_users", s.cfg.MaxConcurrentUsers),
	)

	// First discovery sweep runs immediately rather than one full interval
	// from now.
	go s.sweep(ctx, models.RunKindDiscovery)
	return nil
}

// Stop halts the cron loop and waits for in-flight user cycles to drain.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// TriggerDiscovery runs a discovery cycle for one profile outside the
// schedule, e.g. from the CLI. It respects the same overlap guard as the
// scheduled path.
func (s *Scheduler) TriggerDiscovery(ctx context.Context, profileID int) (*models.ScrapeRun, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %d not found", profileID)
	}
	return s.worker.Discover(ctx, profile, models.RunTriggerManual)
}

// sweep runs one cadence tick across every active profile.
func (s *Scheduler) sweep(ctx context.Context, kind models.RunKind) {
	if ctx.Err() != nil {
		return
	}

	profiles, err := s.store.ListActiveProfiles(ctx)
	if err != nil {
		s.logger.Error("failed to list active profiles", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if len(profiles) == 0 {
		return
	}

	s.logger.Debug("sweep starting",
		zap.String("kind", string(kind)),
		zap.Int("profiles", len(profiles)),
	)

	for _, profile := range profiles {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		s.wg.Add(1)
		go func(p *models.UserProfile) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			// A panic in one user's cycle must not take the process down
			// with every other user's schedule.
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("cycle panicked",
						zap.String("kind", string(kind)),
						zap.Int("profile_id", p.ID),
						zap.Any("panic", r),
						zap.Stack("stack"),
					)
				}
			}()

			var err error
			switch kind {
			case models.RunKindDiscovery:
				_, err = s.worker.Discover(ctx, p, models.RunTriggerScheduled)
			case models.RunKindPreparation:
				_, err = s.worker.PrepareBatch(ctx, p, models.RunTriggerScheduled)
			}
			if err != nil {
				s.logger.Error("cycle failed",
					zap.String("kind", string(kind)),
					zap.Int("profile_id", p.ID),
					zap.Error(err),
				)
			}
		}(profile)
	}
}
