package generation

import (
	"context"

	"kynto-backend/application/ports"
	"kynto-backend/domain/plan"
	pkgerrors "kynto-backend/pkg/errors"

	"go.uber.org/zap"
)

// Service orchestrates roadmap generation and plan persistence
type Service struct {
	completions ports.CompletionClient
	plans       ports.PlanRepository
	retry       RetryPolicy
	logger      *zap.Logger
}

// NewService creates a new generation service
func NewService(completions ports.CompletionClient, plans ports.PlanRepository, retry RetryPolicy, logger *zap.Logger) *Service {
	return &Service{
		completions: completions,
		plans:       plans,
		retry:       retry,
		logger:      logger,
	}
}

// Generate produces the complete roadmap text for a validated goal,
// retrying rate-limited attempts per the service policy
func (s *Service) Generate(ctx context.Context, goal string) (string, error) {
	var text string
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		text, err = s.completions.Complete(ctx, goal)
		return err
	})
	return text, err
}

// GenerateStream establishes a streamed generation for a validated goal.
// Retries protect connection establishment only: once a stream exists, a
// later failure surfaces as a terminal stream error and is never retried.
func (s *Service) GenerateStream(ctx context.Context, goal string) (ports.CompletionStream, error) {
	var stream ports.CompletionStream
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		stream, err = s.completions.Stream(ctx, goal)
		return err
	})
	return stream, err
}

// SaveResult persists a generated roadmap for an authenticated owner.
// Persistence is best effort: a storage failure is logged and swallowed so
// it never masks a successful generation.
func (s *Service) SaveResult(ctx context.Context, owner, goal, content string) {
	if owner == "" || !plan.Saveable(content) {
		return
	}

	p, err := plan.NewPlan(owner, goal, content)
	if err != nil {
		s.logger.Error("Failed to build plan from generation result",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return
	}

	if err := s.plans.Insert(ctx, p); err != nil {
		s.logger.Error("Failed to save generated plan",
			zap.String("owner", owner),
			zap.String("planID", p.ID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Saved generated plan",
		zap.String("owner", owner),
		zap.String("planID", p.ID),
		zap.Int("contentLength", len(content)),
	)
}

// ListPlans returns the owner's saved plans, newest first
func (s *Service) ListPlans(ctx context.Context, owner string) ([]*plan.Plan, error) {
	if owner == "" {
		return nil, pkgerrors.NewUnauthorizedError("")
	}
	plans, err := s.plans.ListByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list plans", err)
	}
	return plans, nil
}

// DeletePlan removes one of the owner's plans. Deleting a plan that does
// not belong to the owner is a benign no-op.
func (s *Service) DeletePlan(ctx context.Context, owner, id string) error {
	if owner == "" {
		return pkgerrors.NewUnauthorizedError("")
	}
	if id == "" {
		return pkgerrors.NewValidationError("plan ID required")
	}
	if err := s.plans.Delete(ctx, owner, id); err != nil {
		return pkgerrors.NewDatabaseError("delete plan", err)
	}
	return nil
}
