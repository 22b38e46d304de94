package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/mlahtinen/formcoach/internal/readiness"
)

type assessmentRequest struct {
	// Date defaults to today when omitted.
	Date                string   `json:"date"`
	SubjectiveReadiness int      `json:"subjective_readiness"`
	GripStrength        *float64 `json:"grip_strength"`
	VerticalJump        *float64 `json:"vertical_jump"`
	HRVReading          *float64 `json:"hrv_reading"`
	RestingHR           *float64 `json:"resting_hr"`
	SleepQuality        *int     `json:"sleep_quality"`
	SleepHours          *float64 `json:"sleep_hours"`
}

type assessmentResponse struct {
	Date                 string   `json:"date"`
	SubjectiveReadiness  int      `json:"subjective_readiness"`
	GripStrength         *float64 `json:"grip_strength,omitempty"`
	VerticalJump         *float64 `json:"vertical_jump,omitempty"`
	HRVReading           *float64 `json:"hrv_reading,omitempty"`
	RestingHR            *float64 `json:"resting_hr,omitempty"`
	SleepQuality         *int     `json:"sleep_quality,omitempty"`
	SleepHours           *float64 `json:"sleep_hours,omitempty"`
	TSB                  *float64 `json:"tsb,omitempty"`
	ATL                  *float64 `json:"atl,omitempty"`
	CTL                  *float64 `json:"ctl,omitempty"`
	CalculatedScore      float64  `json:"calculated_score"`
	RecommendedIntensity string   `json:"recommended_intensity"`
	AdjustmentFactor     float64  `json:"adjustment_factor"`
	Suggestions          []string `json:"suggestions,omitempty"`
}

func newAssessmentResponse(a readiness.Assessment) assessmentResponse {
	return assessmentResponse{
		Date:                 a.Date.Format(time.DateOnly),
		SubjectiveReadiness:  a.SubjectiveReadiness,
		GripStrength:         a.GripStrength,
		VerticalJump:         a.VerticalJump,
		HRVReading:           a.HRVReading,
		RestingHR:            a.RestingHR,
		SleepQuality:         a.SleepQuality,
		SleepHours:           a.SleepHours,
		TSB:                  a.TSB,
		ATL:                  a.ATL,
		CTL:                  a.CTL,
		CalculatedScore:      a.CalculatedScore,
		RecommendedIntensity: string(a.RecommendedIntensity),
		AdjustmentFactor:     a.AdjustmentFactor,
		Suggestions:          a.Suggestions,
	}
}

type baselineStatResponse struct {
	Mean        *float64 `json:"mean"`
	Std         *float64 `json:"std"`
	SampleCount int      `json:"sample_count"`
}

type baselinesResponse struct {
	GripStrength baselineStatResponse `json:"grip_strength"`
	VerticalJump baselineStatResponse `json:"vertical_jump"`
	HRV          baselineStatResponse `json:"hrv"`
	RestingHR    baselineStatResponse `json:"resting_hr"`
	SleepHours   baselineStatResponse `json:"sleep_hours"`
	Version      int                  `json:"version"`
	LastUpdated  string               `json:"last_updated"`
}

func newBaselineStatResponse(stat readiness.BaselineStat) baselineStatResponse {
	return baselineStatResponse{Mean: stat.Mean, Std: stat.Std, SampleCount: stat.SampleCount}
}

func (app *application) readinessPOST(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
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

	assessment, err := app.readinessService.SubmitAssessment(r.Context(), readiness.AssessmentInput{
		Date:                date,
		SubjectiveReadiness: req.SubjectiveReadiness,
		GripStrength:        req.GripStrength,
		VerticalJump:        req.VerticalJump,
		HRVReading:          req.HRVReading,
		RestingHR:           req.RestingHR,
		SleepQuality:        req.SleepQuality,
		SleepHours:          req.SleepHours,
	})
	if errors.Is(err, readiness.ErrInvalidAssessment) {
		app.badRequest(w, r, err)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newAssessmentResponse(assessment))
}

func (app *application) readinessGET(w http.ResponseWriter, r *http.Request) {
	date, ok := app.parseDateParam(w, r)
	if !ok {
		return
	}
	assessment, err := app.readinessService.Assessment(r.Context(), date)
	if errors.Is(err, readiness.ErrNotFound) {
		app.writeJSONError(w, r, http.StatusNotFound, "no assessment for date")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newAssessmentResponse(assessment))
}

func (app *application) baselinesGET(w http.ResponseWriter, r *http.Request) {
	baselines, err := app.readinessService.Baselines(r.Context())
	if errors.Is(err, readiness.ErrNotFound) {
		app.writeJSONError(w, r, http.StatusNotFound, "no baselines yet")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, baselinesResponse{
		GripStrength: newBaselineStatResponse(baselines.GripStrength),
		VerticalJump: newBaselineStatResponse(baselines.VerticalJump),
		HRV:          newBaselineStatResponse(baselines.HRV),
		RestingHR:    newBaselineStatResponse(baselines.RestingHR),
		SleepHours:   newBaselineStatResponse(baselines.SleepHours),
		Version:      baselines.Version,
		LastUpdated:  baselines.LastUpdated.Format(time.RFC3339),
	})
}
