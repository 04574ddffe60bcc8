package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/pkg/composables"
	"github.com/orgpulse/orgpulse/pkg/progress"
)

// unavailableReviewText is stored when an area has no classified material to
// summarize.
const unavailableReviewText = "Review unavailable due to insufficient data"

// maxReviewPayloadLen bounds the JSON payload sent per review request.
const maxReviewPayloadLen = 15000

// Review item statuses reported through progress events.
const (
	ReviewStatusOK          = "ok"
	ReviewStatusUnavailable = "unavailable"
	ReviewStatusError       = "error"
)

// Reviewer is the external collaborator that writes one narrative per area.
type Reviewer interface {
	Review(ctx context.Context, areaName, payload string) (string, error)
}

// ProgressEmitter receives per-item progress during long stages. The
// orchestrator plugs a job-bound emitter in; tests plug a recorder.
type ProgressEmitter interface {
	Emit(event progress.Event)
}

// EmitterFunc adapts a function to ProgressEmitter.
type EmitterFunc func(event progress.Event)

func (f EmitterFunc) Emit(event progress.Event) { f(event) }

// NopEmitter discards events.
var NopEmitter = EmitterFunc(func(progress.Event) {})

// ReviewParams configures one narrative-generation run.
type ReviewParams struct {
	SurveyID  int64
	Overwrite bool
}

// ReviewStats describes one narrative-generation run.
type ReviewStats struct {
	Areas       int `json:"areas"`
	Generated   int `json:"generated"`
	Unavailable int `json:"unavailable"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}

type ReviewService struct {
	areas       area.Repository
	perceptions perception.Repository
	reviewer    Reviewer
}

func NewReviewService(areas area.Repository, perceptions perception.Repository, reviewer Reviewer) *ReviewService {
	return &ReviewService{areas: areas, perceptions: perceptions, reviewer: reviewer}
}

// Generate writes one narrative per area that has a metric snapshot, root
// last, and persists all of them in a single batch. Areas that already have a
// review are skipped unless Overwrite is set; one area failing never aborts
// the others. Each area's outcome is emitted through the progress emitter.
func (s *ReviewService) Generate(ctx context.Context, params ReviewParams, emitter ProgressEmitter) (ReviewStats, error) {
	logger := composables.UseLogger(ctx)
	stats := ReviewStats{}
	if emitter == nil {
		emitter = NopEmitter
	}

	nodes, err := s.areas.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch areas")
	}
	h := HierarchyFromAreas(nodes)

	snapshots, err := s.areas.FetchMetricsBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch snapshots")
	}
	snapshotOf := make(map[int64]area.MetricsSnapshot, len(snapshots))
	for _, snap := range snapshots {
		if snap.Mode == area.ModeTotal {
			snapshotOf[snap.AreaID] = snap
		}
	}

	perceptions, err := s.perceptions.FetchBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch perceptions")
	}
	percByArea := make(map[int64][]perception.Perception)
	for _, p := range perceptions {
		percByArea[p.AreaID] = append(percByArea[p.AreaID], p)
	}

	existing, err := s.areas.FetchReviewsBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch reviews")
	}

	// Root last so its narrative can assume every child was attempted.
	order := make([]int64, 0, len(snapshotOf))
	for id := range snapshotOf {
		if hasRoot(h) && id == rootID(h) {
			continue
		}
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	if hasRoot(h) {
		if _, ok := snapshotOf[rootID(h)]; ok {
			order = append(order, rootID(h))
		}
	}
	stats.Areas = len(order)

	reviews := make(map[int64]string, len(order))
	for _, areaID := range order {
		node, _ := h.Lookup(areaID)
		if !params.Overwrite && strings.TrimSpace(existing[areaID]) != "" {
			stats.Skipped++
			continue
		}

		payload := perceptionPayload(h, areaID, snapshotOf[areaID], percByArea, maxReviewPayloadLen)
		if payload == "" {
			reviews[areaID] = unavailableReviewText
			stats.Unavailable++
			emitter.Emit(reviewEvent(areaID, node.Name, ReviewStatusUnavailable))
			continue
		}

		content, err := s.reviewer.Review(ctx, node.Name, payload)
		if err != nil {
			stats.Failed++
			logger.WithFields(logrus.Fields{
				"area_id": areaID,
				"error":   err.Error(),
			}).Warn("review generation failed")
			emitter.Emit(reviewEvent(areaID, node.Name, ReviewStatusError))
			continue
		}
		reviews[areaID] = content
		stats.Generated++
		emitter.Emit(reviewEvent(areaID, node.Name, ReviewStatusOK))
	}

	if len(reviews) > 0 {
		err = composables.InTx(ctx, func(txCtx context.Context) error {
			_, txErr := s.areas.BulkUpdateReviews(txCtx, params.SurveyID, reviews)
			return txErr
		})
		if err != nil {
			return stats, errors.Wrap(err, "persist reviews")
		}
	}
	return stats, nil
}

func hasRoot(h *Hierarchy) bool { return h.RootIndex >= 0 }

func rootID(h *Hierarchy) int64 { return h.Nodes[h.RootIndex].ID }

func reviewEvent(areaID int64, areaName, status string) progress.Event {
	return progress.Event{
		Event:   progress.EventInfo,
		Step:    "narrative generation",
		Message: "area review " + status,
		Payload: map[string]any{
			"area_id":   areaID,
			"area_name": areaName,
			"status":    status,
		},
	}
}

// perceptionPayload serializes the area's snapshot plus its subtree's
// clippings grouped by theme and intent, truncated to at most max runes.
// Returns "" when there is nothing to summarize.
func perceptionPayload(
	h *Hierarchy,
	areaID int64,
	snap area.MetricsSnapshot,
	percByArea map[int64][]perception.Perception,
	max int,
) string {
	themes := map[string]map[string][]string{}
	for _, id := range h.SubtreeIDs(areaID) {
		for _, p := range percByArea[id] {
			if p.Intent == perception.IntentUnclassified {
				continue
			}
			byIntent, ok := themes[p.Theme]
			if !ok {
				byIntent = map[string][]string{}
				themes[p.Theme] = byIntent
			}
			if clipping := strings.TrimSpace(p.Clipping); clipping != "" {
				byIntent[string(p.Intent)] = append(byIntent[string(p.Intent)], clipping)
			}
		}
	}
	if len(themes) == 0 {
		return ""
	}

	payload := map[string]any{
		"metrics": map[string]any{
			"employees":     snap.EmployeeCount,
			"commenters":    snap.CommenterCount,
			"criticisms":    snap.CriticismCount,
			"suggestions":   snap.SuggestionCount,
			"recognitions":  snap.RecognitionCount,
			"response_rate": snap.ResponseRate,
			"score":         snap.Score,
		},
		"themes": themes,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return truncate(string(raw), max)
}
