package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type QuestionRepository struct{}

func NewQuestionRepository() question.Repository {
	return &QuestionRepository{}
}

func (r *QuestionRepository) FetchBySurvey(ctx context.Context, surveyID int64) ([]question.Question, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, text
		FROM questions
		WHERE survey_id = $1
		ORDER BY id
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []question.Question
	for rows.Next() {
		q := question.Question{SurveyID: surveyID}
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepository) BulkUpsert(ctx context.Context, questions []question.Question) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`
			INSERT INTO questions (survey_id, id, text)
			VALUES ($1, $2, $3)
			ON CONFLICT (survey_id, id) DO UPDATE SET text = EXCLUDED.text
		`, q.SurveyID, q.ID, q.Text)
	}
	return execBatch(ctx, tx, batch)
}
