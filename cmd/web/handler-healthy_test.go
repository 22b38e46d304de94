package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/mlahtinen/formcoach/internal/e2etest"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "FORMCOACH_SQLITE_URL":
		return ":memory:", true
	case "FORMCOACH_ADDR":
		return "localhost:0", true
	default:
		return "", false
	}
}

// statusCode unwraps the HTTP status from a client error, or 0.
func statusCode(err error) int {
	var statusErr *e2etest.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func Test_application_healthy(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err = server.Client().GetJSON(ctx, "/api/healthy", &resp); err != nil {
		t.Fatalf("Failed to get health check: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func Test_crossOriginProtection(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	// A cross-site Sec-Fetch-Site header simulates a forged browser request.
	maliciousClient, err := e2etest.NewClientWithSecFetchSite(server.URL(), "cross-site")
	if err != nil {
		t.Fatalf("Failed to create malicious client: %v", err)
	}

	err = maliciousClient.PostJSON(ctx, "/api/session", map[string]int{"user_id": 0}, nil)
	if err == nil {
		t.Fatal("Expected cross-origin request to be blocked, but it succeeded")
	}
	if got := statusCode(err); got != http.StatusForbidden {
		t.Errorf("expected status 403 for blocked request, got %d (%v)", got, err)
	}
}
