package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type HierarchyService struct {
	areas area.Repository
}

func NewHierarchyService(areas area.Repository) *HierarchyService {
	return &HierarchyService{areas: areas}
}

// Rebuild sanitizes the staged rows for the survey into a rooted hierarchy
// and replaces the persisted nodes in a single transaction.
func (s *HierarchyService) Rebuild(ctx context.Context, surveyID int64) (*Hierarchy, error) {
	rows, err := s.areas.FetchStagedBySurvey(ctx, surveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch staged areas")
	}
	h, err := BuildHierarchy(rows, surveyID)
	if err != nil {
		return nil, err
	}
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		_, txErr := s.areas.BulkUpsert(txCtx, h.Nodes)
		return txErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist hierarchy")
	}
	return h, nil
}

// Load rebuilds the arena from already-persisted nodes.
func (s *HierarchyService) Load(ctx context.Context, surveyID int64) (*Hierarchy, error) {
	nodes, err := s.areas.FetchBySurvey(ctx, surveyID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch areas")
	}
	return HierarchyFromAreas(nodes), nil
}
