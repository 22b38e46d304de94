package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mlahtinen/formcoach/internal/assistant"
	"github.com/mlahtinen/formcoach/internal/auth"
	"github.com/mlahtinen/formcoach/internal/envstruct"
	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/flightrecorder"
	"github.com/mlahtinen/formcoach/internal/logging"
	"github.com/mlahtinen/formcoach/internal/readiness"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/training"
)

type application struct {
	logger           *slog.Logger
	sessionManager   *scs.SessionManager
	sessionHandler   *auth.SessionHandler
	flightRecorder   *flightrecorder.Service
	trainingService  *training.Service
	readinessService *readiness.Service
	assistantService *assistant.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FORMCOACH_ADDR" envDefault:"localhost:8080"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"FORMCOACH_SQLITE_URL" envDefault:"./formcoach.sqlite3"`
	// OpenAIAPIKey authorizes the assistant's chat completions.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// TracesDirectory enables flight-recorder trace capture on request timeouts when set.
	TracesDirectory string `env:"FORMCOACH_TRACES_DIR" envDefault:""`
	// ReadinessThreshold is the default score below which day-of adjustments trigger.
	ReadinessThreshold float64 `env:"FORMCOACH_READINESS_THRESHOLD" envDefault:"50"`
	// AdjustmentFloor and AdjustmentCeiling bound the intensity adjustment factor.
	AdjustmentFloor   float64 `env:"FORMCOACH_ADJUSTMENT_FLOOR" envDefault:"0.70"`
	AdjustmentCeiling float64 `env:"FORMCOACH_ADJUSTMENT_CEILING" envDefault:"1.10"`
	// SessionLifetimeDays is how long sessions stay valid.
	SessionLifetimeDays int `env:"FORMCOACH_SESSION_LIFETIME_DAYS" envDefault:"30"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	sessionManager := initializeSessionManager(db, cfg.SessionLifetimeDays)

	var recorder *flightrecorder.Service
	if cfg.TracesDirectory != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:          logger,
			TracesDirectory: cfg.TracesDirectory,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	trainingService := training.NewService(db, logger)
	readinessService := readiness.NewService(db, logger, trainingService).
		WithDefaultThreshold(cfg.ReadinessThreshold).
		WithFactorBounds(cfg.AdjustmentFloor, cfg.AdjustmentCeiling)

	app := application{
		logger:           logger,
		sessionManager:   sessionManager,
		sessionHandler:   auth.New(logger, sessionManager, db),
		flightRecorder:   recorder,
		trainingService:  trainingService,
		readinessService: readinessService,
		assistantService: assistant.NewService(db, logger, cfg.OpenAIAPIKey, trainingService, readinessService),
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func initializeSessionManager(dbs *sqlite.Database, lifetimeDays int) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = time.Duration(lifetimeDays) * 24 * time.Hour                  //nolint:mnd // days
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
