// Package perception models one classified fragment of a comment:
// a (theme, intent, clipping) triple produced by the classification collaborator.
package perception

import (
	"context"
	"strings"
)

// Intent is the closed sentiment vocabulary. Every label the classifier can
// emit maps to exactly one Intent; anything else is IntentUnclassified.
type Intent string

const (
	IntentRecognition  Intent = "recognition"
	IntentSuggestion   Intent = "suggestion"
	IntentCriticism    Intent = "criticism"
	IntentNeutral      Intent = "neutral"
	IntentUnclassified Intent = "unclassified"
)

// intentTable is the full normalization table: model output label (lowercase,
// trimmed) to intent. Labels outside the table are unclassified, never guessed
// from prefixes.
var intentTable = map[string]Intent{
	"recognition": IntentRecognition,
	"suggestion":  IntentSuggestion,
	"criticism":   IntentCriticism,
	"critique":    IntentCriticism,
	"neutral":     IntentNeutral,
	"none":        IntentNeutral,
}

// NormalizeIntent maps a free-text intent label onto the closed vocabulary.
func NormalizeIntent(label string) Intent {
	if intent, ok := intentTable[strings.ToLower(strings.TrimSpace(label))]; ok {
		return intent
	}
	return IntentUnclassified
}

// Weight returns the sentiment weight used by the score formula.
func (i Intent) Weight() int {
	switch i {
	case IntentRecognition:
		return 2
	case IntentSuggestion:
		return -1
	case IntentCriticism:
		return -2
	default:
		return 0
	}
}

// NoTheme labels perceptions the classifier could not attach to a theme.
const NoTheme = "none"

// Perception is one classified comment fragment. Immutable after insert.
type Perception struct {
	ID        int64
	CommentID int64
	Theme     string
	Intent    Intent
	Clipping  string
	AreaID    int64
	SurveyID  int64
}

type Repository interface {
	FetchBySurvey(ctx context.Context, surveyID int64) ([]Perception, error)
	BulkInsert(ctx context.Context, perceptions []Perception) (int, error)
	DeleteBySurvey(ctx context.Context, surveyID int64) (int, error)
}
