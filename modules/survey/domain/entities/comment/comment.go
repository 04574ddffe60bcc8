package comment

import "context"

// Comment is one free-text survey answer. Immutable after ingest.
type Comment struct {
	ID         int64
	EmployeeID int64
	QuestionID int64
	AreaID     int64
	SurveyID   int64
	Text       string
}

type Repository interface {
	FetchBySurvey(ctx context.Context, surveyID int64) ([]Comment, error)
	BulkInsert(ctx context.Context, comments []Comment) (int, error)
}
