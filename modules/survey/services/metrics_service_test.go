package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/employee"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
)

func ptr(v int64) *int64 { return &v }

func testHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := BuildHierarchy([]area.RawRow{
		{ID: "1", Name: "Company", Parent: ""},
		{ID: "2", Name: "Engineering", Parent: "1"},
		{ID: "3", Name: "Sales", Parent: "1"},
	}, 1)
	require.NoError(t, err)
	return h
}

func snapshotByMode(t *testing.T, result *AggregateResult, areaID int64, mode area.AggregationMode) area.MetricsSnapshot {
	t.Helper()
	for _, snap := range result.Snapshots {
		if snap.AreaID == areaID && snap.Mode == mode {
			return snap
		}
	}
	t.Fatalf("no snapshot for area %d mode %s", areaID, mode)
	return area.MetricsSnapshot{}
}

func TestAggregateSnapshots(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	params := AggregateParams{SurveyID: 1, MinLevel: 0, MaxLevel: 5, MinRespondents: 1, Smoothing: 5}

	employees := []employee.Employee{
		{ID: 100, AreaID: 2, SurveyID: 1},
		{ID: 101, AreaID: 2, SurveyID: 1},
		{ID: 102, AreaID: 3, SurveyID: 1},
		{ID: 103, AreaID: 1, SurveyID: 1},
	}
	comments := []comment.Comment{
		{ID: 1, EmployeeID: 100, AreaID: 2, SurveyID: 1, Text: "a"},
		{ID: 2, EmployeeID: 102, AreaID: 3, SurveyID: 1, Text: "b"},
	}
	perceptions := []perception.Perception{
		{ID: 1, CommentID: 1, Theme: "Culture", Intent: perception.IntentRecognition, AreaID: 2, SurveyID: 1},
		{ID: 2, CommentID: 1, Theme: "Workload", Intent: perception.IntentCriticism, AreaID: 2, SurveyID: 1},
		{ID: 3, CommentID: 2, Theme: "Workload", Intent: perception.IntentSuggestion, AreaID: 3, SurveyID: 1},
	}

	t.Run("TotalModeCoversSubtree", func(t *testing.T) {
		result := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, params, now)

		root := snapshotByMode(t, result, 1, area.ModeTotal)
		require.Equal(t, 4, root.EmployeeCount)
		require.Equal(t, 2, root.CommenterCount)
		require.Equal(t, 1, root.CriticismCount)
		require.Equal(t, 1, root.SuggestionCount)
		require.Equal(t, 1, root.RecognitionCount)
		require.InDelta(t, 0.5, root.ResponseRate, 1e-9)

		// weights: recognition +2, criticism -2, suggestion -1 => sum -1
		normalized := -1.0 / float64(2+5) / 2 * 100
		confidence := 2.0 / 4.0
		require.InDelta(t, normalized*confidence*1.0, root.Score, 1e-9)
	})

	t.Run("DirectModeExcludesDescendants", func(t *testing.T) {
		result := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, params, now)

		direct := snapshotByMode(t, result, 1, area.ModeDirect)
		require.Equal(t, 1, direct.EmployeeCount)
		require.Equal(t, 0, direct.CommenterCount)
		require.Zero(t, direct.Score)

		eng := snapshotByMode(t, result, 2, area.ModeDirect)
		require.Equal(t, 2, eng.EmployeeCount)
		require.Equal(t, 1, eng.CommenterCount)
		require.Equal(t, 1, eng.CriticismCount)
		require.Equal(t, 1, eng.RecognitionCount)
	})

	t.Run("AreaWeightDampsSmallSubtrees", func(t *testing.T) {
		result := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, params, now)

		sales := snapshotByMode(t, result, 3, area.ModeTotal)
		normalized := -1.0 / float64(1+5) / 2 * 100
		confidence := 1.0
		areaWeight := math.Sqrt(1.0 / 4.0)
		require.InDelta(t, normalized*confidence*areaWeight, sales.Score, 1e-9)
	})

	t.Run("RespondentThresholdSkipsNodesButNeverTheRoot", func(t *testing.T) {
		strict := params
		strict.MinRespondents = 2
		result := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, strict, now)

		// Only the root qualifies: engineering and sales each have one
		// respondent in their subtree.
		require.Equal(t, 1, result.Stats.Qualified)
		require.Equal(t, 2, result.Stats.Skipped)
		for _, snap := range result.Snapshots {
			require.Equal(t, int64(1), snap.AreaID)
		}
	})

	t.Run("LevelBandSkipsNodesOutsideRange", func(t *testing.T) {
		banded := params
		banded.MinLevel = 2
		banded.MaxLevel = 5
		result := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, banded, now)

		require.Equal(t, 1, result.Stats.Qualified)
		require.Equal(t, int64(1), result.Snapshots[0].AreaID)
	})

	t.Run("ZeroEmployeesYieldsZeroRateAndScore", func(t *testing.T) {
		result := AggregateSnapshots(testHierarchy(t), nil, nil, nil, AggregateParams{
			SurveyID: 1, MinLevel: 0, MaxLevel: 5, MinRespondents: 0, Smoothing: 5,
		}, now)

		root := snapshotByMode(t, result, 1, area.ModeTotal)
		require.Zero(t, root.EmployeeCount)
		require.Zero(t, root.ResponseRate)
		require.Zero(t, root.Score)
	})

	t.Run("PureFunctionOfItsInputs", func(t *testing.T) {
		first := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, params, now)
		second := AggregateSnapshots(testHierarchy(t), employees, comments, perceptions, params, now)
		require.Equal(t, first.Snapshots, second.Snapshots)
	})

	t.Run("UnreachableAreasAreExcluded", func(t *testing.T) {
		nodes := []area.Area{
			{ID: 1, Name: "Root", ParentID: nil, Level: 0, SurveyID: 1},
			{ID: 9, Name: "Orphan", ParentID: ptr(9), Level: area.UnassignedLevel, SurveyID: 1},
		}
		h := HierarchyFromAreas(nodes)
		orphanEmployees := []employee.Employee{{ID: 100, AreaID: 9, SurveyID: 1}}

		result := AggregateSnapshots(h, orphanEmployees, nil, nil, params, now)
		require.Zero(t, result.Stats.Employees)
		for _, snap := range result.Snapshots {
			require.NotEqual(t, int64(9), snap.AreaID)
		}
	})
}

func TestThemeRankings(t *testing.T) {
	t.Run("CriticizedTieBreaksAlphabetically", func(t *testing.T) {
		// Criticism-weighted scores: Culture=5, Benefits=3, Communication=3.
		themes := map[string]*themeTally{
			"Culture":       {criticism: 2, suggestion: 1},
			"Benefits":      {criticism: 1, suggestion: 1},
			"Communication": {criticism: 1, suggestion: 1},
		}
		ranked := rankCriticized(themes)
		require.Equal(t, []area.ThemeRank{
			{Theme: "Culture", Score: 5, Rank: 1},
			{Theme: "Benefits", Score: 3, Rank: 2},
			{Theme: "Communication", Score: 3, Rank: 3},
		}, ranked)
	})

	t.Run("RecognizedRanksByRecognitionCount", func(t *testing.T) {
		themes := map[string]*themeTally{
			"Culture":  {recognition: 1},
			"Teamwork": {recognition: 3},
			"Workload": {criticism: 2},
		}
		ranked := rankRecognized(themes)
		require.Equal(t, []area.ThemeRank{
			{Theme: "Teamwork", Score: 3, Rank: 1},
			{Theme: "Culture", Score: 1, Rank: 2},
		}, ranked)
	})
}
