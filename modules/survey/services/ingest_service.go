package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

// IngestStats describes one import: rows received, rows persisted and rows
// dropped as unusable.
type IngestStats struct {
	Received int `json:"received"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// IngestService loads survey content into the tables the pipeline reads.
// Rows that cannot be used are dropped and counted, never fatal.
type IngestService struct {
	comments  comment.Repository
	questions question.Repository
}

func NewIngestService(comments comment.Repository, questions question.Repository) *IngestService {
	return &IngestService{comments: comments, questions: questions}
}

// ImportQuestions upserts the survey's question catalog.
func (s *IngestService) ImportQuestions(ctx context.Context, surveyID int64, rows []question.Question) (IngestStats, error) {
	keep, stats := prepareQuestions(surveyID, rows)
	if len(keep) == 0 {
		return stats, nil
	}
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		_, txErr := s.questions.BulkUpsert(txCtx, keep)
		return txErr
	})
	if err != nil {
		return stats, errors.Wrap(err, "persist questions")
	}
	return stats, nil
}

// ImportComments appends free-text answers for the survey.
func (s *IngestService) ImportComments(ctx context.Context, surveyID int64, rows []comment.Comment) (IngestStats, error) {
	keep, stats := prepareComments(surveyID, rows)
	if len(keep) == 0 {
		return stats, nil
	}
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		_, txErr := s.comments.BulkInsert(txCtx, keep)
		return txErr
	})
	if err != nil {
		return stats, errors.Wrap(err, "persist comments")
	}
	return stats, nil
}

// prepareQuestions stamps the survey id and drops rows without a usable id
// or text.
func prepareQuestions(surveyID int64, rows []question.Question) ([]question.Question, IngestStats) {
	stats := IngestStats{Received: len(rows)}
	keep := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		if row.ID <= 0 || strings.TrimSpace(row.Text) == "" {
			stats.Skipped++
			continue
		}
		row.SurveyID = surveyID
		keep = append(keep, row)
	}
	stats.Imported = len(keep)
	return keep, stats
}

// prepareComments stamps the survey id and drops rows without an author, a
// question or text.
func prepareComments(surveyID int64, rows []comment.Comment) ([]comment.Comment, IngestStats) {
	stats := IngestStats{Received: len(rows)}
	keep := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		if row.EmployeeID <= 0 || row.QuestionID <= 0 || strings.TrimSpace(row.Text) == "" {
			stats.Skipped++
			continue
		}
		row.SurveyID = surveyID
		keep = append(keep, row)
	}
	stats.Imported = len(keep)
	return keep, stats
}
