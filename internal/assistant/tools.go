package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/readiness"
	"github.com/mlahtinen/formcoach/internal/training"
)

// Tool names exposed to the model.
const (
	toolQueryTrainingData = "query_training_data"
	toolTrainingLoadTrend = "get_training_load_trend"
	toolGetReadiness      = "get_readiness"
	toolEvaluateDayOf     = "evaluate_day_of_adjustment"
)

// toolset executes the function calls the model can make. Every tool resolves
// the user from the request context, so the model can only ever see the
// current user's data.
type toolset struct {
	query     *secureQueryTool
	training  *training.Service
	readiness *readiness.Service
	logger    *slog.Logger
}

// definitions returns the function schemas advertised to the model.
func (t *toolset) definitions() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolQueryTrainingData,
			Description: openai.String("Run a read-only SQL query against the training database. " +
				"Tables: daily_loads, readiness_assessments, readiness_baselines, suggested_workouts, " +
				"intensity_recommendations. Always filter by the current user's user_id."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The SQL SELECT statement to run.",
					},
				},
				"required": []string{"query"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolTrainingLoadTrend,
			Description: openai.String("Get the user's training-load trend: CTL, ATL, TSB, monotony, " +
				"strain and ACWR per day with risk classifications."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"days": map[string]any{
						"type":        "integer",
						"description": "Number of trailing days, defaults to 28.",
					},
				},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        toolGetReadiness,
			Description: openai.String("Get the user's readiness assessment for a date."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": "Date in YYYY-MM-DD format, defaults to today.",
					},
				},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolEvaluateDayOf,
			Description: openai.String("Run the day-of adjustment check for a training plan and date. " +
				"Returns the suggested workouts and, when readiness is low, an intensity recommendation."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"plan_id": map[string]any{
						"type":        "integer",
						"description": "The training plan id.",
					},
					"date": map[string]any{
						"type":        "string",
						"description": "Date in YYYY-MM-DD format, defaults to today.",
					},
				},
				"required": []string{"plan_id"},
			},
		}),
	}
}

// dispatch executes one tool call and returns its JSON result.
func (t *toolset) dispatch(ctx context.Context, name, arguments string) (string, error) {
	t.logger.LogAttrs(ctx, slog.LevelInfo, "executing assistant tool",
		slog.String("tool", name))

	switch name {
	case toolQueryTrainingData:
		return t.runQuery(ctx, arguments)
	case toolTrainingLoadTrend:
		return t.runTrend(ctx, arguments)
	case toolGetReadiness:
		return t.runReadiness(ctx, arguments)
	case toolEvaluateDayOf:
		return t.runEvaluate(ctx, arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (t *toolset) runQuery(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse query arguments: %w", err)
	}
	result, err := t.query.execute(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("execute query: %w", err)
	}
	return marshalResult(result)
}

func (t *toolset) runTrend(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse trend arguments: %w", err)
	}
	points, err := t.training.Trend(ctx, time.Now(), args.Days)
	if err != nil {
		return "", fmt.Errorf("training load trend: %w", err)
	}

	type trendPoint struct {
		Date         string  `json:"date"`
		CTL          float64 `json:"ctl"`
		ATL          float64 `json:"atl"`
		TSB          float64 `json:"tsb"`
		Monotony     float64 `json:"monotony"`
		Strain       float64 `json:"strain"`
		ACWR         float64 `json:"acwr"`
		TSBBand      string  `json:"tsb_band"`
		ACWRRisk     string  `json:"acwr_risk"`
		MonotonyRisk string  `json:"monotony_risk"`
	}
	out := make([]trendPoint, 0, len(points))
	for _, p := range points {
		out = append(out, trendPoint{
			Date:         p.Date.Format(time.DateOnly),
			CTL:          p.CTL,
			ATL:          p.ATL,
			TSB:          p.TSB,
			Monotony:     p.Monotony,
			Strain:       p.Strain,
			ACWR:         p.ACWR,
			TSBBand:      string(p.TSBBand),
			ACWRRisk:     string(p.ACWRRisk),
			MonotonyRisk: string(p.MonotonyRisk),
		})
	}
	return marshalResult(out)
}

func (t *toolset) runReadiness(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse readiness arguments: %w", err)
	}
	date, err := parseToolDate(args.Date)
	if err != nil {
		return "", err
	}
	assessment, err := t.readiness.Assessment(ctx, date)
	if errors.Is(err, readiness.ErrNotFound) {
		return `{"found": false}`, nil
	}
	if err != nil {
		return "", fmt.Errorf("get readiness: %w", err)
	}
	return marshalResult(map[string]any{
		"found":                 true,
		"date":                  assessment.Date.Format(time.DateOnly),
		"subjective_readiness":  assessment.SubjectiveReadiness,
		"calculated_score":      assessment.CalculatedScore,
		"recommended_intensity": assessment.RecommendedIntensity,
		"adjustment_factor":     assessment.AdjustmentFactor,
		"tsb":                   assessment.TSB,
		"sleep_hours":           assessment.SleepHours,
		"hrv_reading":           assessment.HRVReading,
	})
}

func (t *toolset) runEvaluate(ctx context.Context, arguments string) (string, error) {
	var args struct {
		PlanID int    `json:"plan_id"`
		Date   string `json:"date"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse evaluate arguments: %w", err)
	}
	date, err := parseToolDate(args.Date)
	if err != nil {
		return "", err
	}
	evaluation, err := t.readiness.EvaluateDayOf(ctx, args.PlanID, date)
	if err != nil {
		return "", fmt.Errorf("evaluate day-of adjustment: %w", err)
	}

	type workout struct {
		ID               int     `json:"id"`
		Name             string  `json:"name"`
		Category         string  `json:"category"`
		PlannedIntensity float64 `json:"planned_intensity"`
	}
	workouts := make([]workout, 0, len(evaluation.Workouts))
	for _, w := range evaluation.Workouts {
		workouts = append(workouts, workout{
			ID:               w.ID,
			Name:             w.Name,
			Category:         string(w.Category),
			PlannedIntensity: w.PlannedIntensity,
		})
	}
	out := map[string]any{
		"has_recommendation": evaluation.HasRecommendation,
		"workouts":           workouts,
	}
	if evaluation.Recommendation != nil {
		rec := evaluation.Recommendation
		out["recommendation"] = map[string]any{
			"id":                rec.ID,
			"adjustment_factor": rec.AdjustmentFactor,
			"apply_to":          string(rec.ApplyTo),
			"reasoning":         rec.Reasoning,
			"confidence_score":  rec.ConfidenceScore,
			"priority":          rec.Priority,
			"expires_at":        rec.ExpiresAt.Format(time.RFC3339),
		}
	}
	return marshalResult(out)
}

func parseToolDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	date, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return date, nil
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
