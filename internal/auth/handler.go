// Package auth binds users to scs sessions. Credential verification is
// delegated to the hosted auth provider in front of the app, so login only
// needs to establish which user row the session belongs to.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexedwards/scs/v2"

	"github.com/mlahtinen/formcoach/internal/sqlite"
)

const userIDSessionKey = "userID"

// SessionHandler manages the session lifecycle around login and logout.
type SessionHandler struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	database       *sqlite.Database
}

func New(logger *slog.Logger, sessionManager *scs.SessionManager, dbs *sqlite.Database) *SessionHandler {
	return &SessionHandler{
		logger:         logger,
		sessionManager: sessionManager,
		database:       dbs,
	}
}

// Login binds the session to the given user, creating the user row when
// userID is zero. The session token is renewed to prevent session fixation.
func (h *SessionHandler) Login(ctx context.Context, userID int) (int, error) {
	if userID == 0 {
		err := h.database.ReadWrite.QueryRowContext(ctx,
			`INSERT INTO users DEFAULT VALUES RETURNING id`).Scan(&userID)
		if err != nil {
			return 0, fmt.Errorf("create user: %w", err)
		}
		h.logger.LogAttrs(ctx, slog.LevelInfo, "created user", slog.Int("user_id", userID))
	} else {
		var exists int
		err := h.database.ReadOnly.QueryRowContext(ctx,
			`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("verify user: %w", err)
		}
	}

	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return 0, fmt.Errorf("renew session token: %w", err)
	}
	h.sessionManager.Put(ctx, userIDSessionKey, userID)
	return userID, nil
}

// Logout destroys the session data and rotates the token.
func (h *SessionHandler) Logout(ctx context.Context) error {
	if err := h.sessionManager.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// userExists reports whether the user row is still present. Sessions can
// outlive their user when the account is deleted.
func (h *SessionHandler) userExists(ctx context.Context, userID int) (bool, error) {
	var one int
	err := h.database.ReadOnly.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}
