package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type CommentRepository struct{}

func NewCommentRepository() comment.Repository {
	return &CommentRepository{}
}

func (r *CommentRepository) FetchBySurvey(ctx context.Context, surveyID int64) ([]comment.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, employee_id, question_id, area_id, text
		FROM comments
		WHERE survey_id = $1
		ORDER BY id
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []comment.Comment
	for rows.Next() {
		c := comment.Comment{SurveyID: surveyID}
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.QuestionID, &c.AreaID, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CommentRepository) BulkInsert(ctx context.Context, comments []comment.Comment) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, c := range comments {
		batch.Queue(`
			INSERT INTO comments (survey_id, employee_id, question_id, area_id, text)
			VALUES ($1, $2, $3, $4, $5)
		`, c.SurveyID, c.EmployeeID, c.QuestionID, c.AreaID, c.Text)
	}
	return execBatch(ctx, tx, batch)
}
