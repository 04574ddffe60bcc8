package area

import (
	"context"

	"github.com/orgpulse/orgpulse/pkg/serrors"
)

var ErrNotFound = serrors.NewError("AREA_NOT_FOUND", "area not found", "")

type Repository interface {
	// FetchStagedBySurvey returns the raw uploaded rows for a survey.
	FetchStagedBySurvey(ctx context.Context, surveyID int64) ([]RawRow, error)

	// FetchBySurvey returns the sanitized hierarchy for a survey.
	FetchBySurvey(ctx context.Context, surveyID int64) ([]Area, error)

	// BulkUpsert replaces the sanitized hierarchy for the rows' survey in one batch.
	BulkUpsert(ctx context.Context, areas []Area) (int, error)

	// BulkUpdateMetrics overwrites metric snapshots for a survey in one batch.
	BulkUpdateMetrics(ctx context.Context, surveyID int64, rows []MetricsSnapshot) (int, error)

	// FetchMetricsBySurvey returns the persisted snapshots, both modes.
	FetchMetricsBySurvey(ctx context.Context, surveyID int64) ([]MetricsSnapshot, error)

	// FetchReviewsBySurvey returns areaID -> stored narrative review.
	FetchReviewsBySurvey(ctx context.Context, surveyID int64) (map[int64]string, error)

	// BulkUpdateReviews writes narrative reviews keyed by area id in one batch.
	BulkUpdateReviews(ctx context.Context, surveyID int64, reviews map[int64]string) (int, error)

	// FetchPlansBySurvey returns areaID -> stored action plan.
	FetchPlansBySurvey(ctx context.Context, surveyID int64) (map[int64]string, error)

	// BulkUpdatePlans writes action plans keyed by area id in one batch.
	BulkUpdatePlans(ctx context.Context, surveyID int64, plans map[int64]string) (int, error)
}
