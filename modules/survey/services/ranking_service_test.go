package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
)

// Worst score leads the list; the root and direct-mode rows never appear.
func TestRankAreasWorstFirst(t *testing.T) {
	h := HierarchyFromAreas([]area.Area{
		{ID: 0, Name: area.RootName, Level: 0, SurveyID: 1},
		{ID: 1, Name: "Engineering", ParentID: ptr(0), Level: 1, SurveyID: 1},
		{ID: 2, Name: "Sales", ParentID: ptr(0), Level: 1, SurveyID: 1},
		{ID: 3, Name: "Support", ParentID: ptr(0), Level: 1, SurveyID: 1},
	})
	snapshots := []area.MetricsSnapshot{
		{AreaID: 0, Mode: area.ModeTotal, Score: 90},
		{AreaID: 1, Mode: area.ModeTotal, Score: 40, CriticismCount: 5, ResponseRate: 0.8},
		{AreaID: 1, Mode: area.ModeDirect, Score: -100},
		{AreaID: 2, Mode: area.ModeTotal, Score: -12.5, RecognitionCount: 1},
		{AreaID: 3, Mode: area.ModeTotal, Score: 40},
	}

	rows := RankAreas(h, snapshots)
	require.Len(t, rows, 3)
	require.Equal(t, int64(2), rows[0].AreaID)
	require.Equal(t, "Sales", rows[0].AreaName)
	// Equal scores fall back to area id order.
	require.Equal(t, int64(1), rows[1].AreaID)
	require.Equal(t, int64(3), rows[2].AreaID)
	require.Equal(t, 5, rows[1].CriticismCount)
	require.InDelta(t, 0.8, rows[1].ResponseRate, 1e-9)
}

// Criticisms weigh double, suggestions single; recognitions and neutrals
// count toward volume but not score, unclassified rows are ignored.
func TestRankSurveyThemes(t *testing.T) {
	perceptions := []perception.Perception{
		{Theme: "Culture", Intent: perception.IntentCriticism},
		{Theme: "Culture", Intent: perception.IntentSuggestion},
		{Theme: "Benefits", Intent: perception.IntentCriticism},
		{Theme: "Benefits", Intent: perception.IntentCriticism},
		{Theme: "Leadership", Intent: perception.IntentSuggestion},
		{Theme: "Leadership", Intent: perception.IntentRecognition},
		{Theme: "Noise", Intent: perception.IntentUnclassified},
	}

	rows := RankSurveyThemes(perceptions)
	require.Len(t, rows, 3)

	require.Equal(t, ThemeRankingRow{Theme: "Benefits", Count: 2, Score: 4}, rows[0])
	require.Equal(t, ThemeRankingRow{Theme: "Culture", Count: 2, Score: 3}, rows[1])
	require.Equal(t, ThemeRankingRow{Theme: "Leadership", Count: 2, Score: 1}, rows[2])
}
