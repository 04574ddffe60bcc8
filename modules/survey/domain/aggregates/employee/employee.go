// Package employee models survey participants and their area assignments.
package employee

import (
	"strings"
	"time"
)

// Employee is a person with a resolved, active area assignment.
type Employee struct {
	ID        int64
	Email     string
	Name      string
	ManagerID int64
	AreaID    int64
	SurveyID  int64
}

// StagedPerson is one raw uploaded person record, before area resolution.
type StagedPerson struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	ManagerID string
}

// Assignment is one historical person-to-area link. An assignment is active
// when EndDate is nil.
type Assignment struct {
	PersonID  int64
	AreaID    int64
	StartDate time.Time
	EndDate   *time.Time
}

func (a Assignment) Active() bool { return a.EndDate == nil }

// FullName joins the staged name parts, collapsing extra whitespace.
func (p StagedPerson) FullName() string {
	return strings.Join(strings.Fields(p.FirstName+" "+p.LastName), " ")
}
