// Command stresstest exercises a running server with concurrent users: it
// seeds weeks of training history per user and then fires the common
// check-in/trend/adjustment flow against the JSON API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlahtinen/formcoach/internal/e2etest"
	"github.com/mlahtinen/formcoach/internal/logging"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
)

const (
	smokeTimeout            = 10 * time.Second
	loginTimeout            = 30 * time.Second
	scenarioTimeout         = 30 * time.Second
	historyTimeout          = 5 * time.Minute
	maxConcurrentLogins     = 10
	maxConcurrentOperations = 20
	numUsers                = 10
	historyWeeks            = 12
	daysPerWeek             = 7
	baseTrainingLoad        = 250.0
	trainingLoadRange       = 150
	successRateThreshold    = 95.0
	percentageMultiplier    = 100
	expectedArgsCount       = 2
)

// AuthenticatedUser holds a client with a valid session.
type AuthenticatedUser struct {
	Client *e2etest.Client
	UserID int
}

// TestAuth smoke-tests the session lifecycle before load is applied.
func TestAuth(client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), smokeTimeout)
	defer cancel()

	userID, err := client.Login(ctx, 0)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if err = client.Logout(ctx); err != nil {
		return fmt.Errorf("logout user: %w", err)
	}
	if _, err = client.Login(ctx, userID); err != nil {
		return fmt.Errorf("login user: %w", err)
	}
	return nil
}

// LoginUser creates a fresh user with its own session.
func LoginUser(ctx context.Context, url string, userIndex int, logger *slog.Logger) (*AuthenticatedUser, error) {
	// Each user needs their own cookie jar.
	client, err := e2etest.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("creating client for user %d: %w", userIndex, err)
	}

	userID, err := client.Login(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("logging in user %d: %w", userIndex, err)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "User logged in",
		slog.Int("user_index", userIndex),
		slog.Int("user_id", userID))

	return &AuthenticatedUser{Client: client, UserID: userID}, nil
}

// SetupUsers creates and authenticates the specified number of users.
func SetupUsers(ctx context.Context, url string, numUsers int, logger *slog.Logger) ([]*AuthenticatedUser, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting user setup", slog.Int("num_users", numUsers))

	var (
		users   = make([]*AuthenticatedUser, 0, numUsers)
		usersMu sync.Mutex
		wg      sync.WaitGroup
		errCh   = make(chan error, numUsers)
	)

	// Limit concurrency to avoid overwhelming the server.
	semaphore := make(chan struct{}, maxConcurrentLogins)

	for i := range numUsers {
		wg.Add(1)
		go func(userIndex int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			userCtx, cancel := context.WithTimeout(ctx, loginTimeout)
			defer cancel()

			user, err := LoginUser(userCtx, url, userIndex, logger)
			if err != nil {
				errCh <- fmt.Errorf("user %d: %w", userIndex, err)
				return
			}

			usersMu.Lock()
			users = append(users, user)
			usersMu.Unlock()
		}(i)
	}

	wg.Wait()
	close(errCh)

	failures := make([]error, 0, numUsers)
	for err := range errCh {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		logger.LogAttrs(ctx, slog.LevelError, "Some user setups failed",
			slog.Int("failed_count", len(failures)),
			slog.Int("successful_count", len(users)))
		return users, fmt.Errorf("setup failures: %w", failures[0])
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "All users logged in", slog.Int("total_users", len(users)))
	return users, nil
}

// GenerateTrainingHistory seeds weeks of daily loads so the trend and
// baseline maths have realistic data to chew on.
func GenerateTrainingHistory(ctx context.Context, user *AuthenticatedUser, logger *slog.Logger) error {
	client := user.Client
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -historyWeeks*daysPerWeek)

	for day := range historyWeeks * daysPerWeek {
		date := start.AddDate(0, 0, day)
		if date.After(today) {
			continue
		}
		// Vary the load so monotony stays out of the degenerate zero-variance case.
		load := baseTrainingLoad + float64(day*37%trainingLoadRange)
		body := map[string]any{
			"date":                   date.Format(time.DateOnly),
			"training_load":          load,
			"total_stress_score":     load,
			"total_duration_minutes": 60,
			"zone_2_seconds":         2400,
			"zone_3_seconds":         1200,
		}
		if err := client.PostJSON(ctx, "/api/loads", body, nil); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "Failed to log load",
				slog.Int("user_id", user.UserID),
				slog.String("date", date.Format(time.DateOnly)),
				slog.Any("error", err))
			continue
		}
	}
	return nil
}

// GenerateTrainingHistoryForUsers seeds history for all users concurrently.
func GenerateTrainingHistoryForUsers(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	var (
		wg    sync.WaitGroup
		errCh = make(chan error, len(users))
	)

	semaphore := make(chan struct{}, maxConcurrentLogins)

	for _, user := range users {
		wg.Add(1)
		go func(u *AuthenticatedUser) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			historyCtx, cancel := context.WithTimeout(ctx, historyTimeout)
			defer cancel()

			if err := GenerateTrainingHistory(historyCtx, u, logger); err != nil {
				errCh <- fmt.Errorf("user %d: %w", u.UserID, err)
				return
			}

			logger.LogAttrs(historyCtx, slog.LevelDebug, "Generated training history",
				slog.Int("user_id", u.UserID))
		}(user)
	}

	wg.Wait()
	close(errCh)

	failures := make([]error, 0, len(users))
	for err := range errCh {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		logger.LogAttrs(ctx, slog.LevelError, "Some history generations failed",
			slog.Int("failed_count", len(failures)),
			slog.Int("successful_count", len(users)-len(failures)))
		return fmt.Errorf("history generation failures: %w", failures[0])
	}
	return nil
}

// CheckInScenario is one user's morning flow: plan a workout, submit a
// check-in, read the trend, and run the day-of adjustment evaluation.
func CheckInScenario(ctx context.Context, user *AuthenticatedUser, logger *slog.Logger) error {
	client := user.Client
	today := time.Now().UTC().Truncate(24 * time.Hour).Format(time.DateOnly)

	workout := map[string]any{
		"plan_id":           1,
		"date":              today,
		"name":              "Intervals",
		"category":          "cardio",
		"planned_intensity": 0.9,
	}
	if err := client.PostJSON(ctx, "/api/workouts/suggested", workout, nil); err != nil {
		return fmt.Errorf("add suggested workout: %w", err)
	}

	// 1-10 with a bias toward the low end so adjustments trigger regularly.
	rating := 1 + int(time.Now().UnixNano()%6)
	checkIn := map[string]any{
		"date":                 today,
		"subjective_readiness": rating,
		"sleep_hours":          6.5,
		"hrv_reading":          55.0,
	}
	var assessment struct {
		CalculatedScore float64 `json:"calculated_score"`
	}
	if err := client.PostJSON(ctx, "/api/readiness", checkIn, &assessment); err != nil {
		return fmt.Errorf("submit check-in: %w", err)
	}

	var trend struct {
		Points []struct {
			Date string `json:"date"`
		} `json:"points"`
	}
	if err := client.GetJSON(ctx, "/api/loads/trend?days=28", &trend); err != nil {
		return fmt.Errorf("get trend: %w", err)
	}
	if len(trend.Points) == 0 {
		return fmt.Errorf("expected trend points, got none")
	}

	var evaluation struct {
		HasRecommendation bool `json:"has_recommendation"`
		Recommendation    *struct {
			ID int `json:"id"`
		} `json:"recommendation"`
	}
	if err := client.PostJSON(ctx, "/api/adjustments/evaluate",
		map[string]any{"plan_id": 1, "date": today}, &evaluation); err != nil {
		return fmt.Errorf("evaluate adjustments: %w", err)
	}
	if evaluation.HasRecommendation {
		urlPath := fmt.Sprintf("/api/adjustments/%d/dismiss", evaluation.Recommendation.ID)
		if err := client.PostJSON(ctx, urlPath, nil, nil); err != nil {
			return fmt.Errorf("dismiss recommendation: %w", err)
		}
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "Check-in scenario completed",
		slog.Int("user_id", user.UserID),
		slog.Float64("score", assessment.CalculatedScore),
		slog.Bool("had_recommendation", evaluation.HasRecommendation))

	return nil
}

// RunLoadTest fires the scenario for every user and fails when the success
// rate drops below the threshold.
func RunLoadTest(ctx context.Context, users []*AuthenticatedUser, logger *slog.Logger) error {
	userCount := len(users)
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", userCount))

	var successCount, failureCount int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)

	for _, user := range users {
		g.Go(func() error {
			u := user
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := CheckInScenario(scenarioCtx, u, logger); err != nil {
				atomic.AddInt64(&failureCount, 1)
				// Individual failures count against the rate instead of
				// stopping the other scenarios.
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.Int("user_id", u.UserID),
					slog.Any("error", err))
				return nil
			}

			atomic.AddInt64(&successCount, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	successRate := float64(successCount) / float64(userCount) * percentageMultiplier

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount),
		slog.Int64("failed", failureCount),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}

	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)

	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))

	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}
	client, err := e2etest.NewClient(url)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}

	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Running smoke test first...")
	if err = TestAuth(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "smoke test failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test passed")

	setupStart := time.Now()
	users, err := SetupUsers(ctx, url, numUsers, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup users", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "User setup completed",
		slog.Duration("setup_duration", time.Since(setupStart)),
		slog.Int("authenticated_users", len(users)))

	historyStart := time.Now()
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting training history generation",
		slog.Int("num_users", len(users)),
		slog.Int("weeks_per_user", historyWeeks))

	if err = GenerateTrainingHistoryForUsers(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "some history generation failed, continuing with load test",
			slog.Any("error", err))
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Training history generation completed",
		slog.Duration("history_duration", time.Since(historyStart)),
		slog.Int("users_with_history", len(users)))

	loadTestStart := time.Now()
	if err = RunLoadTest(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("users_tested", len(users)))
}
