package handlers

import (
	"net/http"

	"kynto-backend/application/generation"
	"kynto-backend/domain/plan"
	"kynto-backend/pkg/auth"
	"kynto-backend/pkg/common"

	"go.uber.org/zap"
)

// PlansResponse is the list response body
type PlansResponse struct {
	Plans []*plan.Plan `json:"plans"`
}

// PlanHandler handles saved-plan HTTP requests
type PlanHandler struct {
	service *generation.Service
	logger  *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(service *generation.Service, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		logger:  logger,
	}
}

// List handles GET /plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	plans, err := h.service.ListPlans(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("Failed to list plans",
			zap.String("userID", user.UserID),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "Failed to fetch plans.")
		return
	}

	if plans == nil {
		plans = []*plan.Plan{}
	}
	common.RespondJSON(w, http.StatusOK, PlansResponse{Plans: plans})
}

// Delete handles DELETE /plans?id=<id>
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		common.RespondError(w, http.StatusBadRequest, "Plan ID required.")
		return
	}

	if err := h.service.DeletePlan(r.Context(), user.UserID, id); err != nil {
		h.logger.Error("Failed to delete plan",
			zap.String("userID", user.UserID),
			zap.String("planID", id),
			zap.Error(err),
		)
		common.RespondError(w, http.StatusInternalServerError, "Failed to delete plan.")
		return
	}

	common.RespondSuccess(w)
}
