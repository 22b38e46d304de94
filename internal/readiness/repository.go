package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlahtinen/formcoach/internal/readiness/internal/scoring"
	"github.com/mlahtinen/formcoach/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"
const dateFormat = time.DateOnly

// ErrNotFound is returned when a requested entity is not found.
var ErrNotFound = errors.New("not found")

// sqliteRepository handles database operations for the readiness domain.
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

// upsertAssessment stores or replaces the assessment for a user and date.
func (r *sqliteRepository) upsertAssessment(ctx context.Context, userID int, a Assessment) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO readiness_assessments (
			user_id, date, subjective_readiness, grip_strength, vertical_jump,
			hrv_reading, resting_hr, sleep_quality, sleep_hours, tsb, atl, ctl,
			calculated_score, recommended_intensity, adjustment_factor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			subjective_readiness = excluded.subjective_readiness,
			grip_strength = excluded.grip_strength,
			vertical_jump = excluded.vertical_jump,
			hrv_reading = excluded.hrv_reading,
			resting_hr = excluded.resting_hr,
			sleep_quality = excluded.sleep_quality,
			sleep_hours = excluded.sleep_hours,
			tsb = excluded.tsb,
			atl = excluded.atl,
			ctl = excluded.ctl,
			calculated_score = excluded.calculated_score,
			recommended_intensity = excluded.recommended_intensity,
			adjustment_factor = excluded.adjustment_factor`,
		userID,
		a.Date.Format(dateFormat),
		a.SubjectiveReadiness,
		a.GripStrength,
		a.VerticalJump,
		a.HRVReading,
		a.RestingHR,
		a.SleepQuality,
		a.SleepHours,
		a.TSB,
		a.ATL,
		a.CTL,
		a.CalculatedScore,
		string(a.RecommendedIntensity),
		a.AdjustmentFactor,
	)
	if err != nil {
		return fmt.Errorf("upsert readiness assessment: %w", err)
	}
	return nil
}

// getAssessment retrieves the assessment for a user and date.
func (r *sqliteRepository) getAssessment(ctx context.Context, userID int, date time.Time) (Assessment, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT date, subjective_readiness, grip_strength, vertical_jump,
		       hrv_reading, resting_hr, sleep_quality, sleep_hours, tsb, atl, ctl,
		       calculated_score, recommended_intensity, adjustment_factor
		FROM readiness_assessments
		WHERE user_id = ? AND date = ?`,
		userID, date.Format(dateFormat))
	assessment, err := scanAssessment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, ErrNotFound
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("query readiness assessment: %w", err)
	}
	return assessment, nil
}

// listAssessments retrieves a user's assessments between since and until
// inclusive, ordered by date.
func (r *sqliteRepository) listAssessments(
	ctx context.Context,
	userID int,
	since, until time.Time,
) ([]Assessment, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT date, subjective_readiness, grip_strength, vertical_jump,
		       hrv_reading, resting_hr, sleep_quality, sleep_hours, tsb, atl, ctl,
		       calculated_score, recommended_intensity, adjustment_factor
		FROM readiness_assessments
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		userID, since.Format(dateFormat), until.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("query readiness assessments: %w", err)
	}
	defer rows.Close()

	var assessments []Assessment
	for rows.Next() {
		var assessment Assessment
		if assessment, err = scanAssessment(rows.Scan); err != nil {
			return nil, fmt.Errorf("scan readiness assessment row: %w", err)
		}
		assessments = append(assessments, assessment)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readiness assessment rows: %w", err)
	}
	return assessments, nil
}

// scanAssessment maps one assessment row regardless of whether it came from
// QueryRow or Rows.
func scanAssessment(scan func(dest ...any) error) (Assessment, error) {
	var (
		a            Assessment
		dateStr      string
		grip         sql.NullFloat64
		jump         sql.NullFloat64
		hrv          sql.NullFloat64
		restingHR    sql.NullFloat64
		sleepQuality sql.NullInt64
		sleepHours   sql.NullFloat64
		tsb          sql.NullFloat64
		atl          sql.NullFloat64
		ctl          sql.NullFloat64
		intensity    string
	)
	err := scan(
		&dateStr,
		&a.SubjectiveReadiness,
		&grip,
		&jump,
		&hrv,
		&restingHR,
		&sleepQuality,
		&sleepHours,
		&tsb,
		&atl,
		&ctl,
		&a.CalculatedScore,
		&intensity,
		&a.AdjustmentFactor,
	)
	if err != nil {
		return Assessment{}, err
	}
	if a.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return Assessment{}, fmt.Errorf("parse assessment date: %w", err)
	}
	a.GripStrength = nullableFloat(grip)
	a.VerticalJump = nullableFloat(jump)
	a.HRVReading = nullableFloat(hrv)
	a.RestingHR = nullableFloat(restingHR)
	if sleepQuality.Valid {
		quality := int(sleepQuality.Int64)
		a.SleepQuality = &quality
	}
	a.SleepHours = nullableFloat(sleepHours)
	a.TSB = nullableFloat(tsb)
	a.ATL = nullableFloat(atl)
	a.CTL = nullableFloat(ctl)
	a.RecommendedIntensity = scoring.Recommendation(intensity)
	return a, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
