// File path: internal/api/plans_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/common/telemetry"
	"github.com/nicodishanthj/planbuilder/internal/plan"
	"github.com/nicodishanthj/planbuilder/internal/planstore"
)

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Title == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}
	created, err := s.plans.Create(r.Context(), *req.Title)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	logger.Info("api: plan created", "plan_id", created.PlanID)
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	found, err := s.plans.Get(r.Context(), planID)
	if err != nil {
		writePlanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	ctx, finish := telemetry.StartSpan(r.Context(), "api.plans.update")
	defer finish("plan_id", planID)
	var update plan.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if !errors.Is(err, plan.ErrInvalidUpdate) {
			err = fmt.Errorf("%w: %v", plan.ErrInvalidUpdate, err)
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.plans.Update(ctx, planID, update)
	if err != nil {
		writePlanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	if err := s.plans.Delete(r.Context(), planID); err != nil {
		writePlanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Plan deleted successfully"})
}

// writePlanError reports a plan miss with the fixed "Plan not found" detail.
func writePlanError(w http.ResponseWriter, err error) {
	if errors.Is(err, planstore.ErrNotFound) {
		common.Logger().Warn("api: plan not found", "error", err)
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Plan not found"})
		return
	}
	writeError(w, statusFor(err), err)
}
