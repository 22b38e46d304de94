package training

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlahtinen/formcoach/internal/sqlite"
)

const dateFormat = time.DateOnly

// sqliteRepository handles database operations for daily training loads.
type sqliteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRepository {
	return &sqliteRepository{
		db:     db,
		logger: logger,
	}
}

// upsertLoad stores or replaces the load entry for a user and date.
func (r *sqliteRepository) upsertLoad(ctx context.Context, userID int, load DailyLoad) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO daily_loads (
			user_id, date, total_stress_score, total_duration_minutes, session_rpe_avg,
			training_load, zone_1_seconds, zone_2_seconds, zone_3_seconds, zone_4_seconds, zone_5_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_stress_score = excluded.total_stress_score,
			total_duration_minutes = excluded.total_duration_minutes,
			session_rpe_avg = excluded.session_rpe_avg,
			training_load = excluded.training_load,
			zone_1_seconds = excluded.zone_1_seconds,
			zone_2_seconds = excluded.zone_2_seconds,
			zone_3_seconds = excluded.zone_3_seconds,
			zone_4_seconds = excluded.zone_4_seconds,
			zone_5_seconds = excluded.zone_5_seconds`,
		userID,
		load.Date.Format(dateFormat),
		load.TotalStressScore,
		load.TotalDurationMinutes,
		load.SessionRPEAvg,
		load.TrainingLoad,
		load.Zone1Seconds,
		load.Zone2Seconds,
		load.Zone3Seconds,
		load.Zone4Seconds,
		load.Zone5Seconds,
	)
	if err != nil {
		return fmt.Errorf("upsert daily load: %w", err)
	}
	return nil
}

// listLoads retrieves the user's load entries up to and including the given
// date, ordered by date. A zero since means all available history.
func (r *sqliteRepository) listLoads(ctx context.Context, userID int, since, until time.Time) ([]DailyLoad, error) {
	query := `
		SELECT date, total_stress_score, total_duration_minutes, session_rpe_avg,
		       training_load, zone_1_seconds, zone_2_seconds, zone_3_seconds, zone_4_seconds, zone_5_seconds
		FROM daily_loads
		WHERE user_id = ? AND date <= ?`
	args := []any{userID, until.Format(dateFormat)}
	if !since.IsZero() {
		query += " AND date >= ?"
		args = append(args, since.Format(dateFormat))
	}
	query += " ORDER BY date"

	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily loads: %w", err)
	}
	defer rows.Close()

	var loads []DailyLoad
	for rows.Next() {
		var (
			load    DailyLoad
			dateStr string
			rpe     sql.NullFloat64
		)
		if err = rows.Scan(
			&dateStr,
			&load.TotalStressScore,
			&load.TotalDurationMinutes,
			&rpe,
			&load.TrainingLoad,
			&load.Zone1Seconds,
			&load.Zone2Seconds,
			&load.Zone3Seconds,
			&load.Zone4Seconds,
			&load.Zone5Seconds,
		); err != nil {
			return nil, fmt.Errorf("scan daily load row: %w", err)
		}
		if load.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, fmt.Errorf("parse load date: %w", err)
		}
		if rpe.Valid {
			load.SessionRPEAvg = &rpe.Float64
		}
		loads = append(loads, load)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily load rows: %w", err)
	}
	return loads, nil
}
