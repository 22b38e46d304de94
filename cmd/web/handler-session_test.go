package main

import (
	"net/http"
	"testing"

	"github.com/mlahtinen/formcoach/internal/e2etest"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
)

func Test_application_session(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	client := server.Client()

	var userID int

	t.Run("Protected endpoints require a session", func(t *testing.T) {
		err = client.GetJSON(ctx, "/api/settings", nil)
		if got := statusCode(err); got != http.StatusUnauthorized {
			t.Errorf("expected status 401 without a session, got %d (%v)", got, err)
		}
	})

	t.Run("Login creates a user", func(t *testing.T) {
		if userID, err = client.Login(ctx, 0); err != nil {
			t.Fatalf("Failed to login: %v", err)
		}
		if userID == 0 {
			t.Error("expected a non-zero user id")
		}
		if err = client.GetJSON(ctx, "/api/settings", nil); err != nil {
			t.Errorf("expected settings to be reachable after login: %v", err)
		}
	})

	t.Run("Logout tears down the session", func(t *testing.T) {
		if err = client.Logout(ctx); err != nil {
			t.Fatalf("Failed to logout: %v", err)
		}
		err = client.GetJSON(ctx, "/api/settings", nil)
		if got := statusCode(err); got != http.StatusUnauthorized {
			t.Errorf("expected status 401 after logout, got %d (%v)", got, err)
		}
	})

	t.Run("Login binds to an existing user", func(t *testing.T) {
		var again int
		if again, err = client.Login(ctx, userID); err != nil {
			t.Fatalf("Failed to login as existing user: %v", err)
		}
		if again != userID {
			t.Errorf("expected user id %d, got %d", userID, again)
		}
	})

	t.Run("Login rejects an unknown user", func(t *testing.T) {
		fresh, err := e2etest.NewClient(server.URL())
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		if _, err = fresh.Login(ctx, 987654); err == nil {
			t.Error("expected login with unknown user id to fail")
		}
	})
}
