package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type AreaRepository struct{}

func NewAreaRepository() area.Repository {
	return &AreaRepository{}
}

func (r *AreaRepository) FetchStagedBySurvey(ctx context.Context, surveyID int64) ([]area.RawRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT raw_id, raw_name, raw_parent
		FROM area_stage
		WHERE survey_id = $1
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []area.RawRow
	for rows.Next() {
		var row area.RawRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Parent); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *AreaRepository) FetchBySurvey(ctx context.Context, surveyID int64) ([]area.Area, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, parent_id, level
		FROM areas
		WHERE survey_id = $1
		ORDER BY id
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []area.Area
	for rows.Next() {
		a := area.Area{SurveyID: surveyID}
		if err := rows.Scan(&a.ID, &a.Name, &a.ParentID, &a.Level); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// BulkUpsert replaces the survey's hierarchy: nodes absent from the new set
// are removed (their metrics cascade away), present ones are upserted with
// their stored review and plan left untouched.
func (r *AreaRepository) BulkUpsert(ctx context.Context, areas []area.Area) (int, error) {
	if len(areas) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	surveyID := areas[0].SurveyID
	keep := make([]int64, 0, len(areas))
	for _, a := range areas {
		keep = append(keep, a.ID)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		DELETE FROM areas
		WHERE survey_id = $1 AND NOT (id = ANY($2))
	`, surveyID, keep)
	for _, a := range areas {
		batch.Queue(`
			INSERT INTO areas (survey_id, id, name, parent_id, level)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (survey_id, id) DO UPDATE SET
				name = EXCLUDED.name,
				parent_id = EXCLUDED.parent_id,
				level = EXCLUDED.level
		`, a.SurveyID, a.ID, a.Name, a.ParentID, a.Level)
	}
	return execBatch(ctx, tx, batch)
}

func (r *AreaRepository) BulkUpdateMetrics(ctx context.Context, surveyID int64, snapshots []area.MetricsSnapshot) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM area_metrics WHERE survey_id = $1`, surveyID)
	for _, snap := range snapshots {
		criticized, err := marshalRanks(snap.MostCriticized)
		if err != nil {
			return 0, err
		}
		recognized, err := marshalRanks(snap.MostRecognized)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO area_metrics (
				survey_id, area_id, mode,
				employee_count, commenter_count,
				criticism_count, suggestion_count, recognition_count, neutral_count,
				response_rate, score,
				most_criticized, most_recognized,
				recorded_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb,$13::jsonb,$14)
		`,
			surveyID, snap.AreaID, string(snap.Mode),
			snap.EmployeeCount, snap.CommenterCount,
			snap.CriticismCount, snap.SuggestionCount, snap.RecognitionCount, snap.NeutralCount,
			snap.ResponseRate, snap.Score,
			criticized, recognized,
			snap.RecordedAt,
		)
	}
	return execBatch(ctx, tx, batch)
}

func (r *AreaRepository) FetchMetricsBySurvey(ctx context.Context, surveyID int64) ([]area.MetricsSnapshot, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT
			area_id, mode,
			employee_count, commenter_count,
			criticism_count, suggestion_count, recognition_count, neutral_count,
			response_rate, score,
			most_criticized, most_recognized,
			recorded_at
		FROM area_metrics
		WHERE survey_id = $1
		ORDER BY area_id, mode
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []area.MetricsSnapshot
	for rows.Next() {
		var (
			snap                   area.MetricsSnapshot
			mode                   string
			criticized, recognized []byte
		)
		err := rows.Scan(
			&snap.AreaID, &mode,
			&snap.EmployeeCount, &snap.CommenterCount,
			&snap.CriticismCount, &snap.SuggestionCount, &snap.RecognitionCount, &snap.NeutralCount,
			&snap.ResponseRate, &snap.Score,
			&criticized, &recognized,
			&snap.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		snap.Mode = area.AggregationMode(mode)
		if snap.MostCriticized, err = unmarshalRanks(criticized); err != nil {
			return nil, err
		}
		if snap.MostRecognized, err = unmarshalRanks(recognized); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (r *AreaRepository) FetchReviewsBySurvey(ctx context.Context, surveyID int64) (map[int64]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, review
		FROM areas
		WHERE survey_id = $1 AND review IS NOT NULL
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			id     int64
			review string
		)
		if err := rows.Scan(&id, &review); err != nil {
			return nil, err
		}
		out[id] = review
	}
	return out, rows.Err()
}

func (r *AreaRepository) BulkUpdateReviews(ctx context.Context, surveyID int64, reviews map[int64]string) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for areaID, review := range reviews {
		batch.Queue(`
			UPDATE areas
			SET review = $3
			WHERE survey_id = $1 AND id = $2
		`, surveyID, areaID, review)
	}
	return execBatch(ctx, tx, batch)
}

func (r *AreaRepository) FetchPlansBySurvey(ctx context.Context, surveyID int64) (map[int64]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, plan
		FROM areas
		WHERE survey_id = $1 AND plan IS NOT NULL
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			plan string
		)
		if err := rows.Scan(&id, &plan); err != nil {
			return nil, err
		}
		out[id] = plan
	}
	return out, rows.Err()
}

func (r *AreaRepository) BulkUpdatePlans(ctx context.Context, surveyID int64, plans map[int64]string) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for areaID, plan := range plans {
		batch.Queue(`
			UPDATE areas
			SET plan = $3
			WHERE survey_id = $1 AND id = $2
		`, surveyID, areaID, plan)
	}
	return execBatch(ctx, tx, batch)
}
