package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/employee"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

// ResolutionStats counts what person resolution kept and dropped.
type ResolutionStats struct {
	StagedPersons  int
	Assignments    int
	Resolved       int
	NoAssignment   int
	BadStagedRows  int
	DuplicateRows  int
}

type PersonService struct {
	employees employee.Repository
}

func NewPersonService(employees employee.Repository) *PersonService {
	return &PersonService{employees: employees}
}

// Resolve joins staged persons with their current area assignment and
// replaces the resolved employee set for the survey in one transaction.
//
// A person's current assignment is the active one (no end date) with the
// latest start date; ties break on the higher area id so repeated runs pick
// the same row. Persons without an active assignment are dropped and counted.
func (s *PersonService) Resolve(ctx context.Context, surveyID int64) ([]employee.Employee, ResolutionStats, error) {
	stats := ResolutionStats{}

	staged, err := s.employees.FetchStagedBySurvey(ctx, surveyID)
	if err != nil {
		return nil, stats, errors.Wrap(err, "fetch staged persons")
	}
	assignments, err := s.employees.FetchAssignmentsBySurvey(ctx, surveyID)
	if err != nil {
		return nil, stats, errors.Wrap(err, "fetch assignments")
	}
	resolved, stats := ResolveEmployees(staged, assignments, surveyID)

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		_, txErr := s.employees.BulkUpsert(txCtx, resolved)
		return txErr
	})
	if err != nil {
		return nil, stats, errors.Wrap(err, "persist employees")
	}
	return resolved, stats, nil
}

// ResolveEmployees joins staged persons with their current assignment. Pure;
// exists separately from Resolve so the join rules are testable on their own.
func ResolveEmployees(staged []employee.StagedPerson, assignments []employee.Assignment, surveyID int64) ([]employee.Employee, ResolutionStats) {
	stats := ResolutionStats{
		StagedPersons: len(staged),
		Assignments:   len(assignments),
	}

	current := make(map[int64]employee.Assignment, len(assignments))
	for _, a := range assignments {
		if !a.Active() {
			continue
		}
		best, ok := current[a.PersonID]
		if !ok || a.StartDate.After(best.StartDate) ||
			(a.StartDate.Equal(best.StartDate) && a.AreaID > best.AreaID) {
			current[a.PersonID] = a
		}
	}

	seen := make(map[int64]struct{}, len(staged))
	resolved := make([]employee.Employee, 0, len(staged))
	for _, p := range staged {
		id, err := strconv.ParseInt(strings.TrimSpace(p.ID), 10, 64)
		if err != nil {
			stats.BadStagedRows++
			continue
		}
		if _, dup := seen[id]; dup {
			stats.DuplicateRows++
			continue
		}
		seen[id] = struct{}{}

		assignment, ok := current[id]
		if !ok {
			stats.NoAssignment++
			continue
		}

		var managerID int64
		if raw := strings.TrimSpace(p.ManagerID); raw != "" {
			if mid, err := strconv.ParseInt(raw, 10, 64); err == nil && mid != id {
				managerID = mid
			}
		}

		resolved = append(resolved, employee.Employee{
			ID:        id,
			Email:     strings.ToLower(strings.TrimSpace(p.Email)),
			Name:      p.FullName(),
			ManagerID: managerID,
			AreaID:    assignment.AreaID,
			SurveyID:  surveyID,
		})
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ID < resolved[j].ID })
	stats.Resolved = len(resolved)
	return resolved, stats
}
