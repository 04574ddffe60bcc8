package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/modules/survey/infrastructure/llm"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

const (
	maxClippingLen = 1000
	maxThemeLen    = 255
)

// Classifier is the external collaborator that turns one employee's comments
// into classified blocks.
type Classifier interface {
	Classify(ctx context.Context, items []llm.ClassificationItem, themes []string) ([]llm.Block, error)
}

// ClassificationParams configures one classification run.
type ClassificationParams struct {
	SurveyID      int64
	Themes        []string
	ClearExisting bool
}

// ClassificationStats describes one classification run.
type ClassificationStats struct {
	Employees        int `json:"employees"`
	Perceptions      int `json:"perceptions"`
	UnmatchedBlocks  int `json:"unmatched_blocks"`
	SkippedEmployees int `json:"skipped_employees"`
}

type ClassificationService struct {
	comments    comment.Repository
	questions   question.Repository
	perceptions perception.Repository
	classifier  Classifier
}

func NewClassificationService(
	comments comment.Repository,
	questions question.Repository,
	perceptions perception.Repository,
	classifier Classifier,
) *ClassificationService {
	return &ClassificationService{
		comments:    comments,
		questions:   questions,
		perceptions: perceptions,
		classifier:  classifier,
	}
}

// Classify groups the survey's comments per employee, sends each group to the
// classifier in one request, matches the answer blocks back to comments and
// persists every resulting perception in a single batch. Blocks that cannot
// be matched back to a comment are dropped and counted, never guessed.
func (s *ClassificationService) Classify(ctx context.Context, params ClassificationParams) (ClassificationStats, error) {
	logger := composables.UseLogger(ctx)
	stats := ClassificationStats{}

	comments, err := s.comments.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch comments")
	}
	questions, err := s.questions.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch questions")
	}
	questionText := make(map[int64]string, len(questions))
	for _, q := range questions {
		questionText[q.ID] = q.Text
	}

	byEmployee := make(map[int64][]comment.Comment)
	for _, c := range comments {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		byEmployee[c.EmployeeID] = append(byEmployee[c.EmployeeID], c)
	}
	employeeIDs := make([]int64, 0, len(byEmployee))
	for id := range byEmployee {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Slice(employeeIDs, func(i, j int) bool { return employeeIDs[i] < employeeIDs[j] })
	stats.Employees = len(employeeIDs)

	var perceptions []perception.Perception
	for _, empID := range employeeIDs {
		group := byEmployee[empID]
		items := make([]llm.ClassificationItem, 0, len(group))
		for _, c := range group {
			items = append(items, llm.ClassificationItem{
				CommentID: c.ID,
				Question:  questionText[c.QuestionID],
				Comment:   c.Text,
			})
		}
		if len(items) == 0 {
			stats.SkippedEmployees++
			continue
		}

		blocks, err := s.classifier.Classify(ctx, items, params.Themes)
		if err != nil {
			return stats, errors.Wrapf(err, "classify employee %d", empID)
		}

		areaOf := make(map[int64]int64, len(group))
		for _, c := range group {
			areaOf[c.ID] = c.AreaID
		}
		for _, block := range blocks {
			commentID, ok := matchComment(block, items)
			if !ok {
				stats.UnmatchedBlocks++
				logger.WithFields(logrus.Fields{
					"employee_id": empID,
					"question":    block.Question,
				}).Warn("dropping classification block with no matching comment")
				continue
			}
			for _, f := range block.Findings {
				perceptions = append(perceptions, perception.Perception{
					CommentID: commentID,
					Theme:     normalizeTheme(f.Theme),
					Intent:    perception.NormalizeIntent(f.Intent),
					Clipping:  truncate(f.Clipping, maxClippingLen),
					AreaID:    areaOf[commentID],
					SurveyID:  params.SurveyID,
				})
			}
		}
	}
	stats.Perceptions = len(perceptions)

	if params.ClearExisting || len(perceptions) > 0 {
		err = composables.InTx(ctx, func(txCtx context.Context) error {
			if params.ClearExisting {
				if _, txErr := s.perceptions.DeleteBySurvey(txCtx, params.SurveyID); txErr != nil {
					return txErr
				}
			}
			_, txErr := s.perceptions.BulkInsert(txCtx, perceptions)
			return txErr
		})
		if err != nil {
			return stats, errors.Wrap(err, "persist perceptions")
		}
	}
	return stats, nil
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " ")))
}

// matchComment resolves an answer block back to the comment it classifies:
// exact normalized (question, comment) match first, then a substring
// fallback for models that echo a shortened comment.
func matchComment(block llm.Block, items []llm.ClassificationItem) (int64, bool) {
	q := normalizeText(block.Question)
	c := normalizeText(block.Comment)

	for _, it := range items {
		if normalizeText(it.Question) == q && normalizeText(it.Comment) == c {
			return it.CommentID, true
		}
	}
	if c != "" {
		for _, it := range items {
			if normalizeText(it.Question) == q && strings.Contains(normalizeText(it.Comment), c) {
				return it.CommentID, true
			}
		}
	}
	return 0, false
}

func normalizeTheme(theme string) string {
	t := strings.TrimSpace(theme)
	if t == "" || strings.EqualFold(t, "no theme") || strings.EqualFold(t, perception.NoTheme) {
		return perception.NoTheme
	}
	return truncate(t, maxThemeLen)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
