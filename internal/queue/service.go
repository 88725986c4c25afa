package queue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/pkg/models"
)

// Sentinel errors surfaced synchronously to callers.
var (
	// ErrNotFound is returned when no draft exists for the given id.
	ErrNotFound = errors.New("application not found")
	// ErrAlreadyTerminal is returned when the requested transition conflicts
	// with a terminal state the draft already reached via the other path.
	ErrAlreadyTerminal = errors.New("application is already in a terminal state")
)

// Service exposes the queue's read/write contract to the surrounding
// application. It is transport-agnostic.
type Service struct {
	store  *database.Store
	logger *zap.Logger
}

// NewService returns a configured Service.
func NewService(store *database.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListReady returns all prepared drafts for a profile, most recent first.
func (s *Service) ListReady(ctx context.Context, profileID int) ([]models.PreparedApplication, error) {
	return s.store.ListPreparedApplications(ctx, profileID)
}

// Approve transitions a prepared draft to submitted. Approving an
// already-submitted draft is an idempotent success; approving a dismissed
// draft fails with ErrAlreadyTerminal. Only this explicit user action may
// produce the submitted state.
func (s *Service) Approve(ctx context.Context, id int) (*models.PreparedApplication, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}

	switch app.Status {
	case models.ApplicationSubmitted:
		return app, nil // idempotent
	case models.ApplicationDismissed:
		return nil, ErrAlreadyTerminal
	}

	moved, err := s.store.MarkApplicationSubmitted(ctx, id)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race to the other transition; re-read and re-apply the rules.
		return s.Approve(ctx, id)
	}

	s.logger.Info("application approved",
		zap.Int("application_id", id),
		zap.Int("profile_id", app.ProfileID),
	)
	return s.store.GetApplication(ctx, id)
}

// Dismiss transitions a prepared draft to dismissed, with the mirror-image
// idempotency rules of Approve.
func (s *Service) Dismiss(ctx context.Context, id int) (*models.PreparedApplication, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		return nil, ErrNotFound
	}

	switch app.Status {
	case models.ApplicationDismissed:
		return app, nil // idempotent
	case models.ApplicationSubmitted:
		return nil, ErrAlreadyTerminal
	}

	moved, err := s.store.MarkApplicationDismissed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !moved {
		return s.Dismiss(ctx, id)
	}

	s.logger.Info("application dismissed",
		zap.Int("application_id", id),
		zap.Int("profile_id", app.ProfileID),
	)
	return s.store.GetApplication(ctx, id)
}
