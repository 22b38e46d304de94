package training

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/ptr"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
)

// newTestService opens an in-memory database with its own user so fixtures
// for user 1 never leak into assertions.
func newTestService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	if _, err = db.ReadWrite.ExecContext(ctx, "INSERT INTO users (id) VALUES (2)"); err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	ctx = context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, 2)
	return NewService(db, logger), ctx
}

func TestService_LogLoad(t *testing.T) {
	t.Parallel()
	svc, ctx := newTestService(t)
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("derives training load from session RPE", func(t *testing.T) {
		logged, err := svc.LogLoad(ctx, DailyLoad{
			Date:                 date,
			TotalDurationMinutes: 60,
			SessionRPEAvg:        ptr.Ref(7.0),
		})
		if err != nil {
			t.Fatalf("log load: %v", err)
		}
		if logged.TrainingLoad != 420 {
			t.Errorf("TrainingLoad = %v, want 420", logged.TrainingLoad)
		}
	})

	t.Run("replaces previous entry for the same day", func(t *testing.T) {
		if _, err := svc.LogLoad(ctx, DailyLoad{Date: date, TrainingLoad: 100}); err != nil {
			t.Fatalf("log load: %v", err)
		}
		loads, err := svc.Loads(ctx, date, date)
		if err != nil {
			t.Fatalf("list loads: %v", err)
		}
		if len(loads) != 1 {
			t.Fatalf("got %d loads, want 1", len(loads))
		}
		if loads[0].TrainingLoad != 100 {
			t.Errorf("TrainingLoad = %v, want 100", loads[0].TrainingLoad)
		}
	})

	t.Run("rejects missing date", func(t *testing.T) {
		if _, err := svc.LogLoad(ctx, DailyLoad{TrainingLoad: 100}); err == nil {
			t.Error("expected error for zero date")
		}
	})

	t.Run("rejects unauthenticated context", func(t *testing.T) {
		if _, err := svc.LogLoad(t.Context(), DailyLoad{Date: date, TrainingLoad: 10}); err == nil {
			t.Error("expected error without authenticated user")
		}
	})
}

func TestService_Trend(t *testing.T) {
	t.Parallel()
	svc, ctx := newTestService(t)
	until := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)
	loads := []float64{50, 60, 55, 70, 0, 0, 65}
	for i, load := range loads {
		date := until.AddDate(0, 0, i-len(loads)+1)
		if _, err := svc.LogLoad(ctx, DailyLoad{Date: date, TrainingLoad: load}); err != nil {
			t.Fatalf("log load: %v", err)
		}
	}

	days := 14
	points, err := svc.Trend(ctx, until, days)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(points) != days {
		t.Fatalf("got %d points, want %d", len(points), days)
	}
	for i, point := range points {
		wantDate := until.AddDate(0, 0, i-days+1)
		if !point.Date.Equal(wantDate) {
			t.Errorf("point %d date = %v, want %v", i, point.Date, wantDate)
		}
		if point.TSB != point.CTL-point.ATL {
			t.Errorf("point %d TSB = %v, want CTL-ATL = %v", i, point.TSB, point.CTL-point.ATL)
		}
		if math.IsNaN(point.Monotony) || math.IsInf(point.ACWR, 0) {
			t.Errorf("point %d has non-finite metrics: %+v", i, point)
		}
	}

	last := points[len(points)-1]
	if last.ATL <= 0 || last.CTL <= 0 {
		t.Errorf("expected positive loads at the end of the window, got %+v", last)
	}

	snapshot, err := svc.MetricsAt(ctx, until)
	if err != nil {
		t.Fatalf("metrics at: %v", err)
	}
	if snapshot != last {
		t.Errorf("MetricsAt = %+v, want last trend point %+v", snapshot, last)
	}

	t.Run("empty history yields sentinel points", func(t *testing.T) {
		empty, ctx := newTestService(t)
		points, err := empty.Trend(ctx, until, 7)
		if err != nil {
			t.Fatalf("trend: %v", err)
		}
		for _, point := range points {
			if point.CTL != 0 || point.ATL != 0 || point.Monotony != 0 || point.ACWR != 0 {
				t.Errorf("expected zero metrics for empty history, got %+v", point)
			}
		}
	})
}

func TestService_MetricsAt_StressSignal(t *testing.T) {
	t.Parallel()
	until := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)

	logWeek := func(t *testing.T, svc *Service, ctx context.Context, day func(i int) DailyLoad) TrainingLoadPoint {
		t.Helper()
		for i := range 7 {
			load := day(i)
			load.Date = until.AddDate(0, 0, i-6)
			if _, err := svc.LogLoad(ctx, load); err != nil {
				t.Fatalf("log load: %v", err)
			}
		}
		point, err := svc.MetricsAt(ctx, until)
		if err != nil {
			t.Fatalf("metrics at: %v", err)
		}
		return point
	}

	t.Run("TSS-only days drive the averages", func(t *testing.T) {
		svc, ctx := newTestService(t)
		point := logWeek(t, svc, ctx, func(int) DailyLoad {
			return DailyLoad{TotalStressScore: 100}
		})
		if point.CTL <= 0 || point.ATL <= 0 {
			t.Fatalf("expected positive CTL/ATL from TSS-only history, got %+v", point)
		}
	})

	t.Run("TSS takes precedence over session-RPE load", func(t *testing.T) {
		tssService, tssCtx := newTestService(t)
		tssPoint := logWeek(t, tssService, tssCtx, func(int) DailyLoad {
			return DailyLoad{TotalStressScore: 100, TrainingLoad: 999}
		})

		rpeService, rpeCtx := newTestService(t)
		rpePoint := logWeek(t, rpeService, rpeCtx, func(int) DailyLoad {
			return DailyLoad{TrainingLoad: 100}
		})

		// Identical daily stress, whichever field carries it.
		if tssPoint.CTL != rpePoint.CTL || tssPoint.ATL != rpePoint.ATL || tssPoint.Strain != rpePoint.Strain {
			t.Errorf("TSS week = %+v, session-RPE fallback week = %+v, want equal load metrics", tssPoint, rpePoint)
		}
	})
}
