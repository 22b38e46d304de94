package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/logging"
)

// AuthenticateMiddleware resolves the session's user id into the request
// context. Requests without a session pass through unauthenticated.
func (h *SessionHandler) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := h.sessionManager.GetInt(ctx, userIDSessionKey)

		// User has not yet authenticated.
		if userID == 0 {
			next.ServeHTTP(w, r)
			return
		}

		exists, err := h.userExists(ctx, userID)
		if err != nil {
			h.logger.LogAttrs(ctx, slog.LevelError, "unable to fetch user", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		// Do not authenticate if the user row is gone.
		if exists {
			r = contexthelpers.AuthenticateContext(r, userID)
		}

		// Add session information to the logging context. The token is
		// hashed to avoid leaking it in logs.
		token := h.sessionManager.Token(ctx)
		tokenHash := sha256.Sum256([]byte(token))
		ctx = logging.WithAttrs(r.Context(),
			slog.String("session_hash", hex.EncodeToString(tokenHash[:])),
			slog.Int("user_id", userID),
		)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}
