package services

import (
	"context"
	"sort"

	"github.com/go-faster/errors"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
)

// AreaRankingRow is one area in the worst-first score ranking.
type AreaRankingRow struct {
	AreaID           int64   `json:"area_id"`
	AreaName         string  `json:"area_name"`
	CriticismCount   int     `json:"criticism_count"`
	SuggestionCount  int     `json:"suggestion_count"`
	RecognitionCount int     `json:"recognition_count"`
	ResponseRate     float64 `json:"response_rate"`
	Score            float64 `json:"score"`
}

// ThemeRankingRow is one theme in the survey-wide attention ranking.
type ThemeRankingRow struct {
	Theme string  `json:"theme"`
	Count int     `json:"count"`
	Score float64 `json:"score"`
}

// AreaRanking returns every non-root area with a total-mode snapshot, worst
// score first, so the most attention-needing areas lead the list.
func (s *MetricsService) AreaRanking(ctx context.Context, surveyID int64) ([]AreaRankingRow, error) {
	h, err := s.loadHierarchy(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.areas.FetchMetricsBySurvey(ctx, surveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch snapshots")
	}
	return RankAreas(h, snapshots), nil
}

// ThemeRanking returns the survey-wide themes weighted toward actionable
// feedback: criticisms count double, suggestions single.
func (s *MetricsService) ThemeRanking(ctx context.Context, surveyID int64) ([]ThemeRankingRow, error) {
	perceptions, err := s.perceptions.FetchBySurvey(ctx, surveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch perceptions")
	}
	return RankSurveyThemes(perceptions), nil
}

// RankAreas is the pure core of AreaRanking: non-root areas with a
// total-mode snapshot, ascending score, ties broken by area id.
func RankAreas(h *Hierarchy, snapshots []area.MetricsSnapshot) []AreaRankingRow {
	rows := make([]AreaRankingRow, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Mode != area.ModeTotal {
			continue
		}
		if hasRoot(h) && snap.AreaID == rootID(h) {
			continue
		}
		node, ok := h.Lookup(snap.AreaID)
		if !ok {
			continue
		}
		rows = append(rows, AreaRankingRow{
			AreaID:           snap.AreaID,
			AreaName:         node.Name,
			CriticismCount:   snap.CriticismCount,
			SuggestionCount:  snap.SuggestionCount,
			RecognitionCount: snap.RecognitionCount,
			ResponseRate:     snap.ResponseRate,
			Score:            snap.Score,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score < rows[j].Score
		}
		return rows[i].AreaID < rows[j].AreaID
	})
	return rows
}

// RankSurveyThemes is the pure core of ThemeRanking: score = criticisms×2 +
// suggestions per theme, descending, ties broken alphabetically. Perceptions
// without a classified intent are excluded.
func RankSurveyThemes(perceptions []perception.Perception) []ThemeRankingRow {
	counts := make(map[string]int)
	scores := make(map[string]float64)
	for _, p := range perceptions {
		switch p.Intent {
		case perception.IntentCriticism:
			scores[p.Theme] += 2
		case perception.IntentSuggestion:
			scores[p.Theme]++
		case perception.IntentRecognition, perception.IntentNeutral:
		default:
			continue
		}
		counts[p.Theme]++
	}

	rows := make([]ThemeRankingRow, 0, len(counts))
	for theme, count := range counts {
		rows = append(rows, ThemeRankingRow{Theme: theme, Count: count, Score: scores[theme]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Theme < rows[j].Theme
	})
	return rows
}
