package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type PerceptionRepository struct{}

func NewPerceptionRepository() perception.Repository {
	return &PerceptionRepository{}
}

func (r *PerceptionRepository) FetchBySurvey(ctx context.Context, surveyID int64) ([]perception.Perception, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, comment_id, theme, intent, COALESCE(clipping, ''), area_id
		FROM perceptions
		WHERE survey_id = $1
		ORDER BY id
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []perception.Perception
	for rows.Next() {
		var (
			p      perception.Perception
			intent string
		)
		if err := rows.Scan(&p.ID, &p.CommentID, &p.Theme, &intent, &p.Clipping, &p.AreaID); err != nil {
			return nil, err
		}
		p.SurveyID = surveyID
		p.Intent = perception.NormalizeIntent(intent)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PerceptionRepository) BulkInsert(ctx context.Context, perceptions []perception.Perception) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, p := range perceptions {
		batch.Queue(`
			INSERT INTO perceptions (survey_id, comment_id, theme, intent, clipping, area_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.SurveyID, p.CommentID, p.Theme, string(p.Intent), p.Clipping, p.AreaID)
	}
	return execBatch(ctx, tx, batch)
}

func (r *PerceptionRepository) DeleteBySurvey(ctx context.Context, surveyID int64) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM perceptions WHERE survey_id = $1`, surveyID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
