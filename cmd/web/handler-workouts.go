package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mlahtinen/formcoach/internal/readiness"
)

type suggestedWorkoutRequest struct {
	PlanID int `json:"plan_id"`
	// Date defaults to today when omitted.
	Date             string  `json:"date"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	PlannedIntensity float64 `json:"planned_intensity"`
}

type suggestedWorkoutResponse struct {
	ID               int     `json:"id"`
	PlanID           int     `json:"plan_id"`
	Date             string  `json:"date"`
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	PlannedIntensity float64 `json:"planned_intensity"`
}

func newSuggestedWorkoutResponse(workout readiness.SuggestedWorkout) suggestedWorkoutResponse {
	return suggestedWorkoutResponse{
		ID:               workout.ID,
		PlanID:           workout.PlanID,
		Date:             workout.Date.Format(time.DateOnly),
		Name:             workout.Name,
		Category:         string(workout.Category),
		PlannedIntensity: workout.PlannedIntensity,
	}
}

func (app *application) suggestedWorkoutsGET(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	planID := 0
	if planIDStr := r.URL.Query().Get("planID"); planIDStr != "" {
		if planID, err = strconv.Atoi(planIDStr); err != nil {
			app.writeJSONError(w, r, http.StatusBadRequest, "planID must be an integer")
			return
		}
	}

	workouts, err := app.readinessService.SuggestedWorkouts(r.Context(), planID, date)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	resp := make([]suggestedWorkoutResponse, 0, len(workouts))
	for _, workout := range workouts {
		resp = append(resp, newSuggestedWorkoutResponse(workout))
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

func (app *application) suggestedWorkoutsPOST(w http.ResponseWriter, r *http.Request) {
	var req suggestedWorkoutRequest
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
	if req.Name == "" {
		app.writeJSONError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	created, err := app.readinessService.AddSuggestedWorkout(r.Context(), readiness.SuggestedWorkout{
		PlanID:           req.PlanID,
		Date:             date,
		Name:             req.Name,
		Category:         readiness.Category(req.Category),
		PlannedIntensity: req.PlannedIntensity,
	})
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, newSuggestedWorkoutResponse(created))
}
