package contexthelpers

import (
	"context"
	"net/http"
)

// AuthenticateContext marks the request as authenticated for the given user.
func AuthenticateContext(r *http.Request, userID int) *http.Request {
	ctx := r.Context()
	ctx = context.WithValue(ctx, IsAuthenticatedContextKey, true)
	ctx = context.WithValue(ctx, AuthenticatedUserIDContextKey, userID)
	return r.WithContext(ctx)
}

func SetCurrentPath(r *http.Request, currentPath string) *http.Request {
	ctx := r.Context()
	ctx = context.WithValue(ctx, CurrentPathContextKey, currentPath)
	return r.WithContext(ctx)
}
