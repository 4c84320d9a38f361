package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kynto-backend/application/generation"
	"kynto-backend/domain/plan"
	"kynto-backend/infrastructure/persistence/memory"
	"kynto-backend/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPlanFixture(t *testing.T) (*PlanHandler, *memory.PlanRepository) {
	t.Helper()
	repo := memory.NewPlanRepository()
	svc := generation.NewService(&stubCompletions{}, repo, generation.DefaultRetryPolicy().WithSleep(noSleep), zap.NewNop())
	return NewPlanHandler(svc, zap.NewNop()), repo
}

func seedPlan(t *testing.T, repo *memory.PlanRepository, owner, goal string) *plan.Plan {
	t.Helper()
	p, err := plan.NewPlan(owner, goal, strings.Repeat("roadmap content ", 8))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), p))
	// Keep CreatedAt strictly increasing across seeds
	time.Sleep(time.Millisecond)
	return p
}

func doRequest(handler http.HandlerFunc, method, target string, user *auth.UserContext) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if user != nil {
		req = req.WithContext(auth.SetUserInContext(req.Context(), user))
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestPlanHandler_List_RequiresAuth(t *testing.T) {
	handler, _ := newPlanFixture(t)

	w := doRequest(handler.List, http.MethodGet, "/api/v1/plans", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanHandler_List_EmptyIsAnArray(t *testing.T) {
	handler, _ := newPlanFixture(t)
	user := &auth.UserContext{UserID: "user123"}

	w := doRequest(handler.List, http.MethodGet, "/api/v1/plans", user)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"plans":[]}`, w.Body.String())
}

func TestPlanHandler_List_NewestFirstOwnerScoped(t *testing.T) {
	handler, repo := newPlanFixture(t)

	older := seedPlan(t, repo, "user123", "first goal")
	newer := seedPlan(t, repo, "user123", "second goal")
	seedPlan(t, repo, "someone-else", "other goal")

	w := doRequest(handler.List, http.MethodGet, "/api/v1/plans", &auth.UserContext{UserID: "user123"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp PlansResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, newer.ID, resp.Plans[0].ID)
	assert.Equal(t, older.ID, resp.Plans[1].ID)
}

func TestPlanHandler_Delete_RequiresAuth(t *testing.T) {
	handler, _ := newPlanFixture(t)

	w := doRequest(handler.Delete, http.MethodDelete, "/api/v1/plans?id=abc", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlanHandler_Delete_MissingID(t *testing.T) {
	handler, _ := newPlanFixture(t)

	w := doRequest(handler.Delete, http.MethodDelete, "/api/v1/plans", &auth.UserContext{UserID: "user123"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Plan ID required.")
}

func TestPlanHandler_Delete_RemovesOwnPlan(t *testing.T) {
	handler, repo := newPlanFixture(t)
	p := seedPlan(t, repo, "user123", "learn woodworking")

	w := doRequest(handler.Delete, http.MethodDelete, "/api/v1/plans?id="+p.ID, &auth.UserContext{UserID: "user123"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	remaining, err := repo.ListByOwner(context.Background(), "user123")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPlanHandler_Delete_CrossOwnerIsNoOp(t *testing.T) {
	handler, repo := newPlanFixture(t)
	p := seedPlan(t, repo, "someone-else", "their goal")

	w := doRequest(handler.Delete, http.MethodDelete, "/api/v1/plans?id="+p.ID, &auth.UserContext{UserID: "user123"})

	// Deletes are keyed by owner and ID together, so this touches nothing
	assert.Equal(t, http.StatusOK, w.Code)

	remaining, err := repo.ListByOwner(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
