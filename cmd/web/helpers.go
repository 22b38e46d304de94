package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mlahtinen/formcoach/internal/errors"
)

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", slog.Any("error", err))
	}
}

func (app *application) writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.writeJSON(w, r, status, map[string]string{"error": message})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSONError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (app *application) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "bad request", slog.Any("error", err))
	app.writeJSONError(w, r, http.StatusBadRequest, err.Error())
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// parseDateParam parses the "date" path parameter from the request URL.
// On failure, sends HTTP 404 response automatically.
func (app *application) parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := r.PathValue("date")
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		http.NotFound(w, r)
		return time.Time{}, false
	}
	return date, true
}

// parseDateQuery parses an optional date query parameter, defaulting to
// today in UTC.
func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	dateStr := r.URL.Query().Get(key)
	if dateStr == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse date", slog.String("value", dateStr))
	}
	return date, nil
}
