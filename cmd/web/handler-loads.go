package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlahtinen/formcoach/internal/readiness"
	"github.com/mlahtinen/formcoach/internal/training"
)

type dailyLoadRequest struct {
	// Date defaults to today when omitted.
	Date                 string   `json:"date"`
	TotalStressScore     float64  `json:"total_stress_score"`
	TotalDurationMinutes float64  `json:"total_duration_minutes"`
	SessionRPEAvg        *float64 `json:"session_rpe_avg"`
	TrainingLoad         float64  `json:"training_load"`
	Zone1Seconds         int      `json:"zone_1_seconds"`
	Zone2Seconds         int      `json:"zone_2_seconds"`
	Zone3Seconds         int      `json:"zone_3_seconds"`
	Zone4Seconds         int      `json:"zone_4_seconds"`
	Zone5Seconds         int      `json:"zone_5_seconds"`
}

type dailyLoadResponse struct {
	Date                 string   `json:"date"`
	TotalStressScore     float64  `json:"total_stress_score"`
	TotalDurationMinutes float64  `json:"total_duration_minutes"`
	SessionRPEAvg        *float64 `json:"session_rpe_avg,omitempty"`
	TrainingLoad         float64  `json:"training_load"`
	Zone1Seconds         int      `json:"zone_1_seconds"`
	Zone2Seconds         int      `json:"zone_2_seconds"`
	Zone3Seconds         int      `json:"zone_3_seconds"`
	Zone4Seconds         int      `json:"zone_4_seconds"`
	Zone5Seconds         int      `json:"zone_5_seconds"`
}

func newDailyLoadResponse(load training.DailyLoad) dailyLoadResponse {
	return dailyLoadResponse{
		Date:                 load.Date.Format(time.DateOnly),
		TotalStressScore:     load.TotalStressScore,
		TotalDurationMinutes: load.TotalDurationMinutes,
		SessionRPEAvg:        load.SessionRPEAvg,
		TrainingLoad:         load.TrainingLoad,
		Zone1Seconds:         load.Zone1Seconds,
		Zone2Seconds:         load.Zone2Seconds,
		Zone3Seconds:         load.Zone3Seconds,
		Zone4Seconds:         load.Zone4Seconds,
		Zone5Seconds:         load.Zone5Seconds,
	}
}

type trendPointResponse struct {
	Date         string  `json:"date"`
	CTL          float64 `json:"ctl"`
	ATL          float64 `json:"atl"`
	TSB          float64 `json:"tsb"`
	Monotony     float64 `json:"monotony"`
	Strain       float64 `json:"strain"`
	ACWR         float64 `json:"acwr"`
	TSBBand      string  `json:"tsb_band"`
	ACWRRisk     string  `json:"acwr_risk"`
	MonotonyRisk string  `json:"monotony_risk"`
}

func newTrendPointResponse(point training.TrainingLoadPoint) trendPointResponse {
	return trendPointResponse{
		Date:         point.Date.Format(time.DateOnly),
		CTL:          point.CTL,
		ATL:          point.ATL,
		TSB:          point.TSB,
		Monotony:     point.Monotony,
		Strain:       point.Strain,
		ACWR:         point.ACWR,
		TSBBand:      string(point.TSBBand),
		ACWRRisk:     string(point.ACWRRisk),
		MonotonyRisk: string(point.MonotonyRisk),
	}
}

type trendResponse struct {
	Points    []trendPointResponse `json:"points"`
	Current   trendPointResponse   `json:"current"`
	Readiness *assessmentResponse  `json:"readiness,omitempty"`
}

func (app *application) loadsPOST(w http.ResponseWriter, r *http.Request) {
	var req dailyLoadRequest
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

	stored, err := app.trainingService.LogLoad(r.Context(), training.DailyLoad{
		Date:                 date,
		TotalStressScore:     req.TotalStressScore,
		TotalDurationMinutes: req.TotalDurationMinutes,
		SessionRPEAvg:        req.SessionRPEAvg,
		TrainingLoad:         req.TrainingLoad,
		Zone1Seconds:         req.Zone1Seconds,
		Zone2Seconds:         req.Zone2Seconds,
		Zone3Seconds:         req.Zone3Seconds,
		Zone4Seconds:         req.Zone4Seconds,
		Zone5Seconds:         req.Zone5Seconds,
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newDailyLoadResponse(stored))
}

// loadTrendGET serves the training-load trend together with today's
// readiness assessment when one exists. The two reads fan out concurrently.
func (app *application) loadTrendGET(w http.ResponseWriter, r *http.Request) {
	days := 28
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			app.writeJSONError(w, r, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var (
		points     []training.TrainingLoadPoint
		assessment *readiness.Assessment
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		points, err = app.trainingService.Trend(ctx, today, days)
		return err
	})
	g.Go(func() error {
		found, err := app.readinessService.Assessment(ctx, today)
		if errors.Is(err, readiness.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		assessment = &found
		return nil
	})
	if err := g.Wait(); err != nil {
		app.serverError(w, r, err)
		return
	}

	resp := trendResponse{Points: make([]trendPointResponse, 0, len(points))}
	for _, point := range points {
		resp.Points = append(resp.Points, newTrendPointResponse(point))
	}
	if len(resp.Points) > 0 {
		resp.Current = resp.Points[len(resp.Points)-1]
	}
	if assessment != nil {
		dto := newAssessmentResponse(*assessment)
		resp.Readiness = &dto
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}
