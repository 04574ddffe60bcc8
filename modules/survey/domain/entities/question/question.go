package question

import "context"

// Question is one survey prompt whose free-text answers become comments.
// Its text is part of the classification input contract.
type Question struct {
	ID       int64
	SurveyID int64
	Text     string
}

type Repository interface {
	FetchBySurvey(ctx context.Context, surveyID int64) ([]Question, error)
	BulkUpsert(ctx context.Context, questions []Question) (int, error)
}
