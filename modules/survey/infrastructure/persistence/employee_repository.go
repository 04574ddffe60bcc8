package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/employee"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type EmployeeRepository struct{}

func NewEmployeeRepository() employee.Repository {
	return &EmployeeRepository{}
}

func (r *EmployeeRepository) FetchStagedBySurvey(ctx context.Context, surveyID int64) ([]employee.StagedPerson, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT raw_id, email, first_name, last_name, raw_manager_id
		FROM person_stage
		WHERE survey_id = $1
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.StagedPerson
	for rows.Next() {
		var p employee.StagedPerson
		if err := rows.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.ManagerID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) FetchAssignmentsBySurvey(ctx context.Context, surveyID int64) ([]employee.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT person_id, area_id, start_date, end_date
		FROM assignments
		WHERE survey_id = $1
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.Assignment
	for rows.Next() {
		var (
			a       employee.Assignment
			endDate *time.Time
		)
		if err := rows.Scan(&a.PersonID, &a.AreaID, &a.StartDate, &endDate); err != nil {
			return nil, err
		}
		a.EndDate = endDate
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) FetchBySurvey(ctx context.Context, surveyID int64) ([]employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, email, name, manager_id, area_id
		FROM employees
		WHERE survey_id = $1
		ORDER BY id
	`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.Employee
	for rows.Next() {
		e := employee.Employee{SurveyID: surveyID}
		if err := rows.Scan(&e.ID, &e.Email, &e.Name, &e.ManagerID, &e.AreaID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BulkUpsert replaces the survey's resolved employee set: rows absent from
// the new set are removed, present ones are upserted.
func (r *EmployeeRepository) BulkUpsert(ctx context.Context, employees []employee.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	surveyID := employees[0].SurveyID
	keep := make([]int64, 0, len(employees))
	for _, e := range employees {
		keep = append(keep, e.ID)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		DELETE FROM employees
		WHERE survey_id = $1 AND NOT (id = ANY($2))
	`, surveyID, keep)
	for _, e := range employees {
		batch.Queue(`
			INSERT INTO employees (survey_id, id, email, name, manager_id, area_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (survey_id, id) DO UPDATE SET
				email = EXCLUDED.email,
				name = EXCLUDED.name,
				manager_id = EXCLUDED.manager_id,
				area_id = EXCLUDED.area_id
		`, e.SurveyID, e.ID, e.Email, e.Name, e.ManagerID, e.AreaID)
	}
	return execBatch(ctx, tx, batch)
}
