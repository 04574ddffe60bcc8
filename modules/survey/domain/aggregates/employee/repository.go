package employee

import "context"

type Repository interface {
	FetchStagedBySurvey(ctx context.Context, surveyID int64) ([]StagedPerson, error)
	FetchAssignmentsBySurvey(ctx context.Context, surveyID int64) ([]Assignment, error)

	// FetchBySurvey returns resolved employees for aggregation.
	FetchBySurvey(ctx context.Context, surveyID int64) ([]Employee, error)

	// BulkUpsert replaces the resolved employee set for the rows' survey in one batch.
	BulkUpsert(ctx context.Context, employees []Employee) (int, error)
}
