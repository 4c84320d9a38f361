package memory

import (
	"context"
	"sync"

	"kynto-backend/application/ports"
	"kynto-backend/domain/plan"
)

// PlanRepository is an in-memory ports.PlanRepository used by tests and
// local development when no DynamoDB table is available
type PlanRepository struct {
	mu    sync.RWMutex
	plans map[string][]*plan.Plan // keyed by owner, newest first
}

// NewPlanRepository creates a new in-memory plan repository
func NewPlanRepository() *PlanRepository {
	return &PlanRepository{
		plans: make(map[string][]*plan.Plan),
	}
}

// Insert stores a copy of the plan at the head of the owner's list
func (r *PlanRepository) Insert(ctx context.Context, p *plan.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *p
	r.plans[p.Owner] = append([]*plan.Plan{&copied}, r.plans[p.Owner]...)
	return nil
}

// ListByOwner returns the owner's plans, newest first
func (r *PlanRepository) ListByOwner(ctx context.Context, owner string) ([]*plan.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.plans[owner]
	out := make([]*plan.Plan, len(stored))
	for i, p := range stored {
		copied := *p
		out[i] = &copied
	}
	return out, nil
}

// Delete removes the plan matching both owner and id; otherwise a no-op
func (r *PlanRepository) Delete(ctx context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.plans[owner]
	for i, p := range stored {
		if p.ID == id {
			r.plans[owner] = append(stored[:i], stored[i+1:]...)
			return nil
		}
	}
	return nil
}

var _ ports.PlanRepository = (*PlanRepository)(nil)
