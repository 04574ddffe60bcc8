package services

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/perception"
	"github.com/orgpulse/orgpulse/pkg/composables"
	"github.com/orgpulse/orgpulse/pkg/progress"
)

// maxPlanPayloadLen bounds the JSON payload and the joined per-area summaries
// sent per plan request.
const maxPlanPayloadLen = 20000

// areaReviewSeparator joins the per-area summary blocks fed to the
// survey-level plan.
const areaReviewSeparator = "\n\n===== ===== =====\n\n"

// Planner is the external collaborator that drafts action plans. Per-area
// plans consume the area's payload and narrative review; the survey-level
// plan consumes the root payload and every area summary.
type Planner interface {
	PlanArea(ctx context.Context, areaName, payload, review string) (string, error)
	PlanGeneral(ctx context.Context, payload, areaReviews string) (string, error)
}

// PlanParams configures one plan-generation run.
type PlanParams struct {
	SurveyID  int64
	Overwrite bool
}

// PlanStats describes one plan-generation run.
type PlanStats struct {
	Areas       int `json:"areas"`
	Generated   int `json:"generated"`
	Unavailable int `json:"unavailable"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}

type PlanService struct {
	areas       area.Repository
	perceptions perception.Repository
	planner     Planner
}

func NewPlanService(areas area.Repository, perceptions perception.Repository, planner Planner) *PlanService {
	return &PlanService{areas: areas, perceptions: perceptions, planner: planner}
}

// Generate drafts one action plan per area that has a metric snapshot, root
// last, and persists all of them in a single batch. The root plan is the
// survey-level one: it sees the root payload plus every area's narrative
// review. Areas that already have a plan are skipped unless Overwrite is set;
// one area failing never aborts the others.
func (s *PlanService) Generate(ctx context.Context, params PlanParams, emitter ProgressEmitter) (PlanStats, error) {
	logger := composables.UseLogger(ctx)
	stats := PlanStats{}
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

	reviews, err := s.areas.FetchReviewsBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch reviews")
	}
	existing, err := s.areas.FetchPlansBySurvey(ctx, params.SurveyID)
	if err != nil {
		return stats, errors.Wrap(err, "fetch plans")
	}

	// Root last: the survey-level plan consumes the per-area reviews.
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

	plans := make(map[int64]string, len(order))
	for _, areaID := range order {
		node, _ := h.Lookup(areaID)
		if !params.Overwrite && strings.TrimSpace(existing[areaID]) != "" {
			stats.Skipped++
			continue
		}

		payload := perceptionPayload(h, areaID, snapshotOf[areaID], percByArea, maxPlanPayloadLen)
		if payload == "" {
			stats.Unavailable++
			emitter.Emit(planEvent(areaID, node.Name, ReviewStatusUnavailable))
			continue
		}

		var content string
		if hasRoot(h) && areaID == rootID(h) {
			content, err = s.planner.PlanGeneral(ctx, payload, joinAreaReviews(h, reviews))
		} else {
			content, err = s.planner.PlanArea(ctx, node.Name, payload, reviews[areaID])
		}
		if err != nil {
			stats.Failed++
			logger.WithFields(logrus.Fields{
				"area_id": areaID,
				"error":   err.Error(),
			}).Warn("plan generation failed")
			emitter.Emit(planEvent(areaID, node.Name, ReviewStatusError))
			continue
		}
		plans[areaID] = content
		stats.Generated++
		emitter.Emit(planEvent(areaID, node.Name, ReviewStatusOK))
	}

	if len(plans) > 0 {
		err = composables.InTx(ctx, func(txCtx context.Context) error {
			_, txErr := s.areas.BulkUpdatePlans(txCtx, params.SurveyID, plans)
			return txErr
		})
		if err != nil {
			return stats, errors.Wrap(err, "persist plans")
		}
	}
	return stats, nil
}

// joinAreaReviews concatenates every non-root area's narrative review into
// the summary block fed to the survey-level plan, name first, capped.
func joinAreaReviews(h *Hierarchy, reviews map[int64]string) string {
	ids := make([]int64, 0, len(reviews))
	for id := range reviews {
		if hasRoot(h) && id == rootID(h) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		review := strings.TrimSpace(reviews[id])
		if review == "" {
			continue
		}
		node, ok := h.Lookup(id)
		if !ok {
			continue
		}
		parts = append(parts, node.Name+"\n---\n"+review)
	}
	return truncate(strings.Join(parts, areaReviewSeparator), maxPlanPayloadLen)
}

func planEvent(areaID int64, areaName, status string) progress.Event {
	return progress.Event{
		Event:   progress.EventInfo,
		Step:    StagePlans,
		Message: "area plan " + status,
		Payload: map[string]any{
			"area_id":   areaID,
			"area_name": areaName,
			"status":    status,
		},
	}
}
