package main

import (
	"net/http"

	"github.com/mlahtinen/formcoach/internal/readiness"
)

type settingsPayload struct {
	AutoAdjustEnabled  bool    `json:"auto_adjust_enabled"`
	ReadinessThreshold float64 `json:"readiness_threshold"`
}

func (app *application) settingsGET(w http.ResponseWriter, r *http.Request) {
	settings, err := app.readinessService.Settings(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, settingsPayload{
		AutoAdjustEnabled:  settings.AutoAdjustEnabled,
		ReadinessThreshold: settings.ReadinessThreshold,
	})
}

func (app *application) settingsPUT(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := decodeJSON(r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}

	err := app.readinessService.SaveSettings(r.Context(), readiness.Settings{
		AutoAdjustEnabled:  req.AutoAdjustEnabled,
		ReadinessThreshold: req.ReadinessThreshold,
	})
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, req)
}
