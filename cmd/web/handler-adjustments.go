package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mlahtinen/formcoach/internal/readiness"
)

type evaluateRequest struct {
	PlanID int `json:"plan_id"`
	// Date defaults to today when omitted.
	Date string `json:"date"`
}

type recommendationResponse struct {
	ID               int      `json:"id"`
	PlanID           int      `json:"plan_id"`
	TargetWorkoutID  *int     `json:"target_workout_id,omitempty"`
	Date             string   `json:"date"`
	AdjustmentFactor float64  `json:"adjustment_factor"`
	ApplyTo          string   `json:"apply_to"`
	Reasoning        string   `json:"reasoning"`
	ConfidenceScore  float64  `json:"confidence_score"`
	Priority         int      `json:"priority"`
	Status           string   `json:"status"`
	ExpiresAt        string   `json:"expires_at"`
	CreatedAt        string   `json:"created_at"`
}

func newRecommendationResponse(rec readiness.Recommendation) recommendationResponse {
	return recommendationResponse{
		ID:               rec.ID,
		PlanID:           rec.PlanID,
		TargetWorkoutID:  rec.TargetWorkoutID,
		Date:             rec.Date.Format(time.DateOnly),
		AdjustmentFactor: rec.AdjustmentFactor,
		ApplyTo:          string(rec.ApplyTo),
		Reasoning:        rec.Reasoning,
		ConfidenceScore:  rec.ConfidenceScore,
		Priority:         rec.Priority,
		Status:           string(rec.Status),
		ExpiresAt:        rec.ExpiresAt.Format(time.RFC3339),
		CreatedAt:        rec.CreatedAt.Format(time.RFC3339),
	}
}

type evaluationResponse struct {
	HasRecommendation bool                       `json:"has_recommendation"`
	Recommendation    *recommendationResponse    `json:"recommendation,omitempty"`
	Workouts          []suggestedWorkoutResponse `json:"workouts"`
}

func (app *application) adjustmentEvaluatePOST(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		var err error
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			app.badRequest(w, r, err)
			return
		}
	}

	evaluation, err := app.readinessService.EvaluateDayOf(r.Context(), req.PlanID, date)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	resp := evaluationResponse{
		HasRecommendation: evaluation.HasRecommendation,
		Workouts:          make([]suggestedWorkoutResponse, 0, len(evaluation.Workouts)),
	}
	for _, workout := range evaluation.Workouts {
		resp.Workouts = append(resp.Workouts, newSuggestedWorkoutResponse(workout))
	}
	if evaluation.Recommendation != nil {
		dto := newRecommendationResponse(*evaluation.Recommendation)
		resp.Recommendation = &dto
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

func (app *application) adjustmentDismissPOST(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = app.readinessService.DismissRecommendation(r.Context(), id)
	if errors.Is(err, readiness.ErrNotFound) {
		app.writeJSONError(w, r, http.StatusNotFound, "no pending recommendation with that id")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
