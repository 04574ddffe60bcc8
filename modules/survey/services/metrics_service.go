package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-faster/errors"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/employee"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

// AggregateParams controls which nodes qualify for a snapshot.
type AggregateParams struct {
	SurveyID       int64
	MinLevel       int
	MaxLevel       int
	MinRespondents int
	// Smoothing is the k constant of the score normalization.
	Smoothing int
}

// AggregateStats describes one aggregation run.
type AggregateStats struct {
	Nodes      int `json:"nodes"`
	Qualified  int `json:"qualified"`
	Skipped    int `json:"skipped"`
	Failures   int `json:"failures"`
	Snapshots  int `json:"snapshots"`
	Employees  int `json:"employees"`
	Commenters int `json:"commenters"`
}

// AggregateResult carries the snapshots of one run plus its run stats.
type AggregateResult struct {
	Snapshots []area.MetricsSnapshot
	Stats     AggregateStats
}

type MetricsService struct {
	areas       area.Repository
	employees   employee.Repository
	comments    comment.Repository
	perceptions perception.Repository
}

func NewMetricsService(
	areas area.Repository,
	employees employee.Repository,
	comments comment.Repository,
	perceptions perception.Repository,
) *MetricsService {
	return &MetricsService{
		areas:       areas,
		employees:   employees,
		comments:    comments,
		perceptions: perceptions,
	}
}

// Aggregate recomputes metric snapshots for every qualifying node of the
// survey, in both attribution modes, and overwrites the persisted snapshots
// in one batch. All snapshots are computed in memory first; a node whose
// computation fails is counted and skipped without aborting the run.
func (s *MetricsService) Aggregate(ctx context.Context, params AggregateParams) (*AggregateResult, error) {
	if params.Smoothing <= 0 {
		params.Smoothing = 5
	}

	h, err := s.loadHierarchy(ctx, params.SurveyID)
	if err != nil {
		return nil, err
	}
	employees, err := s.employees.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch employees")
	}
	comments, err := s.comments.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch comments")
	}
	perceptions, err := s.perceptions.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch perceptions")
	}

	result := AggregateSnapshots(h, employees, comments, perceptions, params, time.Now().UTC())

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		_, txErr := s.areas.BulkUpdateMetrics(txCtx, params.SurveyID, result.Snapshots)
		return txErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist snapshots")
	}
	return result, nil
}

func (s *MetricsService) loadHierarchy(ctx context.Context, surveyID int64) (*Hierarchy, error) {
	nodes, err := s.areas.FetchBySurvey(ctx, surveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch areas")
	}
	return HierarchyFromAreas(nodes), nil
}

// AggregateSnapshots is the pure aggregation core: given the hierarchy and
// the survey's resolved data it derives every qualifying snapshot without
// touching storage. Identical inputs always yield identical snapshots.
func AggregateSnapshots(
	h *Hierarchy,
	employees []employee.Employee,
	comments []comment.Comment,
	perceptions []perception.Perception,
	params AggregateParams,
	recordedAt time.Time,
) *AggregateResult {
	stats := AggregateStats{Nodes: len(h.Nodes)}

	// Employees in unreachable nodes are outside every root-anchored subtree
	// and are excluded from the global denominator as well.
	byArea := make(map[int64][]int64, len(h.Nodes))
	globalEmployees := 0
	for _, e := range employees {
		a, ok := h.Lookup(e.AreaID)
		if !ok || a.Level == area.UnassignedLevel {
			continue
		}
		byArea[e.AreaID] = append(byArea[e.AreaID], e.ID)
		globalEmployees++
	}
	stats.Employees = globalEmployees

	commentOwner := make(map[int64]int64, len(comments))
	commenters := make(map[int64]struct{}, len(employees))
	for _, c := range comments {
		commentOwner[c.ID] = c.EmployeeID
		commenters[c.EmployeeID] = struct{}{}
	}
	stats.Commenters = len(commenters)

	percByEmployee := make(map[int64][]perception.Perception, len(commenters))
	for _, p := range perceptions {
		owner, ok := commentOwner[p.CommentID]
		if !ok {
			continue
		}
		percByEmployee[owner] = append(percByEmployee[owner], p)
	}

	subtrees := h.SubtreeIndex()
	snapshots := make([]area.MetricsSnapshot, 0, len(h.Nodes))
	for i, node := range h.Nodes {
		if node.Level == area.UnassignedLevel {
			stats.Skipped++
			continue
		}

		totalScope := make([]int64, 0, 16)
		for _, j := range subtrees[i] {
			totalScope = append(totalScope, byArea[h.Nodes[j].ID]...)
		}
		totalCommenters := countCommenters(totalScope, commenters)

		if !qualifies(node.Level, totalCommenters, params) {
			stats.Skipped++
			continue
		}
		stats.Qualified++

		directScope := byArea[node.ID]
		for _, mode := range []area.AggregationMode{area.ModeTotal, area.ModeDirect} {
			scope := totalScope
			if mode == area.ModeDirect {
				scope = directScope
			}
			snap, err := snapshotFor(node.ID, mode, scope, percByEmployee, commenters, globalEmployees, params.Smoothing, recordedAt)
			if err != nil {
				stats.Failures++
				continue
			}
			snapshots = append(snapshots, snap)
		}
	}
	stats.Snapshots = len(snapshots)
	return &AggregateResult{Snapshots: snapshots, Stats: stats}
}

// qualifies applies the level-band and respondent-threshold rule. The root
// level is always included regardless of the configured band.
func qualifies(level, respondents int, params AggregateParams) bool {
	if level == 0 {
		return true
	}
	if level < params.MinLevel || level > params.MaxLevel {
		return false
	}
	return respondents >= params.MinRespondents
}

func countCommenters(scope []int64, commenters map[int64]struct{}) int {
	n := 0
	for _, id := range scope {
		if _, ok := commenters[id]; ok {
			n++
		}
	}
	return n
}

func snapshotFor(
	areaID int64,
	mode area.AggregationMode,
	scope []int64,
	percByEmployee map[int64][]perception.Perception,
	commenters map[int64]struct{},
	globalEmployees int,
	smoothing int,
	recordedAt time.Time,
) (snap area.MetricsSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot for area %d: %v", areaID, r)
		}
	}()

	snap = area.MetricsSnapshot{
		AreaID:     areaID,
		Mode:       mode,
		RecordedAt: recordedAt,
	}

	weightSum := 0
	themes := map[string]*themeTally{}
	for _, empID := range scope {
		snap.EmployeeCount++
		if _, ok := commenters[empID]; ok {
			snap.CommenterCount++
		}
		for _, p := range percByEmployee[empID] {
			weightSum += p.Intent.Weight()
			switch p.Intent {
			case perception.IntentCriticism:
				snap.CriticismCount++
			case perception.IntentSuggestion:
				snap.SuggestionCount++
			case perception.IntentRecognition:
				snap.RecognitionCount++
			case perception.IntentNeutral:
				snap.NeutralCount++
			}
			if p.Theme != perception.NoTheme && p.Theme != "" {
				t, ok := themes[p.Theme]
				if !ok {
					t = &themeTally{}
					themes[p.Theme] = t
				}
				t.add(p.Intent)
			}
		}
	}

	if snap.EmployeeCount > 0 {
		snap.ResponseRate = float64(snap.CommenterCount) / float64(snap.EmployeeCount)
		snap.Score = score(weightSum, snap.CommenterCount, snap.EmployeeCount, globalEmployees, smoothing)
	}
	snap.MostCriticized = rankCriticized(themes)
	snap.MostRecognized = rankRecognized(themes)
	return snap, nil
}

// score normalizes the summed sentiment weights into [-100, 100], then damps
// it by participation confidence and by the subtree's share of the whole
// organization. Zero-employee scopes never reach this point.
func score(weightSum, commenterCount, employeeCount, globalEmployees, smoothing int) float64 {
	normalized := float64(weightSum) / float64(commenterCount+smoothing) / 2 * 100
	confidence := float64(commenterCount) / float64(employeeCount)
	areaWeight := 0.0
	if globalEmployees > 0 {
		areaWeight = math.Sqrt(float64(employeeCount) / float64(globalEmployees))
	}
	return normalized * confidence * areaWeight
}

type themeTally struct {
	criticism   int
	suggestion  int
	recognition int
	neutral     int
}

func (t *themeTally) add(i perception.Intent) {
	switch i {
	case perception.IntentCriticism:
		t.criticism++
	case perception.IntentSuggestion:
		t.suggestion++
	case perception.IntentRecognition:
		t.recognition++
	case perception.IntentNeutral:
		t.neutral++
	}
}

func rankCriticized(themes map[string]*themeTally) []area.ThemeRank {
	return rankThemes(themes, func(t *themeTally) float64 {
		return float64(t.criticism*2 + t.suggestion)
	})
}

func rankRecognized(themes map[string]*themeTally) []area.ThemeRank {
	return rankThemes(themes, func(t *themeTally) float64 {
		return float64(t.recognition)
	})
}

// rankThemes orders themes by descending score, ties broken alphabetically,
// dropping zero-score themes.
func rankThemes(themes map[string]*themeTally, scoreOf func(*themeTally) float64) []area.ThemeRank {
	ranked := make([]area.ThemeRank, 0, len(themes))
	for name, tally := range themes {
		s := scoreOf(tally)
		if s <= 0 {
			continue
		}
		ranked = append(ranked, area.ThemeRank{Theme: name, Score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Theme < ranked[j].Theme
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
