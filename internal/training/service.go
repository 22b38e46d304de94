// Package training maintains the daily training-load log and derives the
// load model (CTL, ATL, TSB, monotony, strain, ACWR) from it.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/training/internal/metrics"
)

const (
	// monotonyWindowDays is the rolling window for Foster's monotony and strain.
	monotonyWindowDays = 7
	// defaultTrendDays is used when the caller does not bound the trend.
	defaultTrendDays = 28
	// maxTrendDays bounds the per-request computation.
	maxTrendDays = 365
	// trendConcurrency bounds the per-point workers for trend computation.
	trendConcurrency = 4
)

// ErrUnauthenticated is returned when no authenticated user is in the context.
var ErrUnauthenticated = errors.NewSentinel("no authenticated user in context")

// Service handles the business logic for training-load tracking.
type Service struct {
	repo   *sqliteRepository
	logger *slog.Logger
}

// NewService creates a new training service.
func NewService(db *sqlite.Database, logger *slog.Logger) *Service {
	return &Service{
		repo:   newSQLiteRepository(db, logger),
		logger: logger,
	}
}

// LogLoad records the load for a day, replacing any previous entry for the
// same date. When the training load is not given but session RPE and
// duration are, it is derived as their product.
func (s *Service) LogLoad(ctx context.Context, load DailyLoad) (DailyLoad, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return DailyLoad{}, ErrUnauthenticated
	}
	if load.Date.IsZero() {
		return DailyLoad{}, errors.New("load date is required")
	}
	if load.TrainingLoad == 0 && load.SessionRPEAvg != nil {
		load.TrainingLoad = *load.SessionRPEAvg * load.TotalDurationMinutes
	}
	if err := s.repo.upsertLoad(ctx, userID, load); err != nil {
		return DailyLoad{}, fmt.Errorf("upsert load: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "logged daily load",
		slog.String("date", load.Date.Format(dateFormat)),
		slog.Float64("training_load", load.TrainingLoad))
	return load, nil
}

// Loads returns the user's raw load entries between since and until inclusive.
func (s *Service) Loads(ctx context.Context, since, until time.Time) ([]DailyLoad, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	loads, err := s.repo.listLoads(ctx, userID, since, until)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	return loads, nil
}

// Trend computes one TrainingLoadPoint per day for the trailing days window
// ending at the given date. The averages are always folded from the full
// history up to each day, so a point never depends on data after its date.
func (s *Service) Trend(ctx context.Context, until time.Time, days int) ([]TrainingLoadPoint, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	until = until.Truncate(24 * time.Hour)
	loads, err := s.repo.listLoads(ctx, userID, time.Time{}, until)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}

	points := make([]TrainingLoadPoint, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendConcurrency)
	for i := range points {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("trend point cancelled: %w", err)
			}
			date := until.AddDate(0, 0, i-days+1)
			points[i] = computePoint(loads, date)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, fmt.Errorf("compute trend: %w", err)
	}
	return points, nil
}

// MetricsAt computes the load model snapshot for a single day.
func (s *Service) MetricsAt(ctx context.Context, date time.Time) (TrainingLoadPoint, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return TrainingLoadPoint{}, ErrUnauthenticated
	}
	date = date.Truncate(24 * time.Hour)
	loads, err := s.repo.listLoads(ctx, userID, time.Time{}, date)
	if err != nil {
		return TrainingLoadPoint{}, fmt.Errorf("list loads: %w", err)
	}
	return computePoint(loads, date), nil
}

// computePoint folds the history up to date into a TrainingLoadPoint.
func computePoint(loads []DailyLoad, date time.Time) TrainingLoadPoint {
	var history []metrics.LoadSample
	weekStart := date.AddDate(0, 0, -(monotonyWindowDays - 1))
	weekLoads := make([]float64, monotonyWindowDays)
	weeklyTotal := 0.0
	for _, load := range loads {
		if load.Date.After(date) {
			continue
		}
		stress := load.stress()
		history = append(history, metrics.LoadSample{Date: load.Date, Load: stress})
		if !load.Date.Before(weekStart) {
			offset := int(load.Date.Sub(weekStart).Hours() / 24)
			if offset >= 0 && offset < monotonyWindowDays {
				weekLoads[offset] = stress
				weeklyTotal += stress
			}
		}
	}

	ctl := metrics.CTL(history)
	atl := metrics.ATL(history)
	tsb := metrics.TSB(ctl, atl)
	monotony := metrics.Monotony(weekLoads)
	acwr := metrics.ACWR(atl, ctl)

	return TrainingLoadPoint{
		Date:         date,
		CTL:          ctl,
		ATL:          atl,
		TSB:          tsb,
		Monotony:     monotony,
		Strain:       metrics.Strain(weeklyTotal, monotony),
		ACWR:         acwr,
		TSBBand:      metrics.ClassifyTSB(tsb),
		ACWRRisk:     metrics.ClassifyACWR(acwr),
		MonotonyRisk: metrics.ClassifyMonotony(monotony),
	}
}
