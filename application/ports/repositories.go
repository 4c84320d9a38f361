package ports

import (
	"context"

	"kynto-backend/domain/plan"
)

// PlanRepository is the persistence port for saved roadmaps.
// Every operation is scoped by owner; implementations must never let one
// owner read or mutate another owner's plans.
type PlanRepository interface {
	// Insert persists a new plan for its owner
	Insert(ctx context.Context, p *plan.Plan) error

	// ListByOwner returns the owner's plans ordered newest first
	ListByOwner(ctx context.Context, owner string) ([]*plan.Plan, error)

	// Delete removes a plan matched on both id and owner. Deleting a plan
	// that does not exist, or that belongs to someone else, is a no-op.
	Delete(ctx context.Context, owner, id string) error
}
