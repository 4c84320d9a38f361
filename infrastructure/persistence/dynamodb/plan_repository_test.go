package dynamodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "USER#user123", ownerKey("user123"))
	assert.Equal(t, "PLAN#0190a8f0-0000-7000-8000-000000000000", planKey("0190a8f0-0000-7000-8000-000000000000"))
}

func TestItemToPlan(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 30, 0, 123456789, time.UTC)
	item := planItem{
		PK:         ownerKey("user123"),
		SK:         planKey("plan-1"),
		EntityType: "PLAN",
		PlanID:     "plan-1",
		UserID:     "user123",
		Title:      "learn the cello",
		Content:    "## Phase 1",
		CreatedAt:  created.Format(time.RFC3339Nano),
	}

	p := itemToPlan(item)

	assert.Equal(t, "plan-1", p.ID)
	assert.Equal(t, "user123", p.Owner)
	assert.Equal(t, "learn the cello", p.Title)
	assert.Equal(t, "## Phase 1", p.Content)
	assert.True(t, p.CreatedAt.Equal(created))
}

func TestItemToPlan_BadTimestamp(t *testing.T) {
	p := itemToPlan(planItem{PlanID: "plan-1", CreatedAt: "not-a-time"})

	assert.True(t, p.CreatedAt.IsZero())
}
