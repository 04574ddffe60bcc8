package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/pkg/progress"
)

type stubPlanner struct {
	err          error
	areaCalls    []string
	generalCalls []string
}

func (p *stubPlanner) PlanArea(_ context.Context, areaName, _, _ string) (string, error) {
	p.areaCalls = append(p.areaCalls, areaName)
	if p.err != nil {
		return "", p.err
	}
	return "<div id=\"show_review\"></div>", nil
}

func (p *stubPlanner) PlanGeneral(_ context.Context, _, areaReviews string) (string, error) {
	p.generalCalls = append(p.generalCalls, areaReviews)
	if p.err != nil {
		return "", p.err
	}
	return "<div id=\"show_review\"></div>", nil
}

func TestPlanGenerateSkipsExistingUnlessOverwrite(t *testing.T) {
	planner := &stubPlanner{}
	svc := NewPlanService(&stubAreaRepo{
		areas:     reviewTestAreas(),
		snapshots: reviewTestSnapshots(),
		reviews:   map[int64]string{},
		plans: map[int64]string{
			0: "kept",
			1: "kept",
			2: "kept",
		},
	}, &stubPerceptionRepo{}, planner)

	stats, err := svc.Generate(reviewTestCtx(t), PlanParams{SurveyID: 1}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Areas)
	require.Equal(t, 3, stats.Skipped)
	require.Zero(t, stats.Generated)
	require.Empty(t, planner.areaCalls)
	require.Empty(t, planner.generalCalls)
}

// One area's planner failure is recorded per item without aborting the run.
// The root is planned last, through the survey-level path that consumes the
// per-area reviews.
func TestPlanGenerateReportsPerAreaFailures(t *testing.T) {
	planner := &stubPlanner{err: errors.New("model unavailable")}
	svc := NewPlanService(&stubAreaRepo{
		areas:     reviewTestAreas(),
		snapshots: reviewTestSnapshots(),
		reviews: map[int64]string{
			1: "Engineering summary",
			2: "Sales summary",
		},
		plans: map[int64]string{},
	}, &stubPerceptionRepo{perceptions: []perception.Perception{
		{ID: 1, CommentID: 1, Theme: "Culture", Intent: perception.IntentCriticism, Clipping: "it is heavy", AreaID: 1, SurveyID: 1},
		{ID: 2, CommentID: 2, Theme: "Culture", Intent: perception.IntentRecognition, Clipping: "good team", AreaID: 2, SurveyID: 1},
	}}, planner)

	var events []progress.Event
	emitter := EmitterFunc(func(ev progress.Event) { events = append(events, ev) })

	stats, err := svc.Generate(reviewTestCtx(t), PlanParams{SurveyID: 1}, emitter)
	require.NoError(t, err)

	require.Equal(t, 3, stats.Failed)
	require.Zero(t, stats.Generated)
	require.Equal(t, []string{"Engineering", "Sales"}, planner.areaCalls)
	require.Len(t, planner.generalCalls, 1)
	require.Contains(t, planner.generalCalls[0], "Engineering\n---\nEngineering summary")
	require.Contains(t, planner.generalCalls[0], "Sales\n---\nSales summary")

	require.Len(t, events, 3)
	for _, ev := range events {
		require.Equal(t, progress.EventInfo, ev.Event)
		require.Equal(t, StagePlans, ev.Step)
		require.Equal(t, ReviewStatusError, ev.Payload["status"])
	}
}

// joinAreaReviews feeds the survey-level plan: every non-root review, name
// first, ordered by area id; the root's own review and blank ones excluded.
func TestJoinAreaReviews(t *testing.T) {
	h := HierarchyFromAreas([]area.Area{
		{ID: 0, Name: area.RootName, Level: 0, SurveyID: 1},
		{ID: 1, Name: "Engineering", ParentID: ptr(0), Level: 1, SurveyID: 1},
		{ID: 2, Name: "Sales", ParentID: ptr(0), Level: 1, SurveyID: 1},
		{ID: 3, Name: "Support", ParentID: ptr(0), Level: 1, SurveyID: 1},
	})

	joined := joinAreaReviews(h, map[int64]string{
		0: "root summary",
		2: "Sales summary",
		1: "Engineering summary",
		3: "   ",
	})

	require.Equal(t,
		"Engineering\n---\nEngineering summary"+areaReviewSeparator+"Sales\n---\nSales summary",
		joined)
}
