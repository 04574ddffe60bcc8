// Package area models one organizational unit of a survey's hierarchy.
package area

import "time"

// RootID is the reserved identifier of the root. When the staged input has
// more than one top-level candidate a synthetic root with this id is created.
const RootID int64 = 0

// RootName is the display name given to a synthetic root.
const RootName = "General"

// UnassignedLevel marks a node the level assigner could not reach from the
// root. Such nodes are excluded from aggregation.
const UnassignedLevel = -1

// Area is one sanitized node of the hierarchy. ParentID is nil only for the
// root. Level is the node's depth from the root, or UnassignedLevel.
type Area struct {
	ID       int64
	Name     string
	ParentID *int64
	Level    int
	SurveyID int64
}

// RawRow is one staged, untrusted organizational record as uploaded. Parent
// carries the unparsed parent reference; anything that does not resolve to a
// known id is treated as "no parent".
type RawRow struct {
	ID     string
	Name   string
	Parent string
}

// AggregationMode selects how perceptions are attributed to a node.
type AggregationMode string

const (
	// ModeDirect attributes only the node's own perceptions.
	ModeDirect AggregationMode = "direct"
	// ModeTotal attributes the whole subtree's perceptions.
	ModeTotal AggregationMode = "total"
)

// ThemeRank is one entry of a ranked theme breakdown.
type ThemeRank struct {
	Theme string  `json:"theme"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// MetricsSnapshot is the derived per-node rollup. Fully recomputable;
// overwritten as a whole on each aggregation run.
type MetricsSnapshot struct {
	AreaID           int64
	Mode             AggregationMode
	EmployeeCount    int
	CommenterCount   int
	CriticismCount   int
	SuggestionCount  int
	RecognitionCount int
	NeutralCount     int
	ResponseRate     float64
	Score            float64
	MostCriticized   []ThemeRank
	MostRecognized   []ThemeRank
	RecordedAt       time.Time
}
