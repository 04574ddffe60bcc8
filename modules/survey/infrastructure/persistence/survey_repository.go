package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/survey"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

type SurveyRepository struct{}

func NewSurveyRepository() survey.Repository {
	return &SurveyRepository{}
}

func (r *SurveyRepository) Create(ctx context.Context, s survey.Survey) (survey.Survey, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return survey.Survey{}, err
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO surveys (name)
		VALUES ($1)
		RETURNING id, created_at
	`, s.Name()).Scan(&id, &createdAt)
	if err != nil {
		return survey.Survey{}, err
	}
	return survey.Hydrate(id, s.Name(), createdAt), nil
}

func (r *SurveyRepository) GetByID(ctx context.Context, id int64) (survey.Survey, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return survey.Survey{}, err
	}

	var (
		name      string
		createdAt time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT name, created_at
		FROM surveys
		WHERE id = $1
	`, id).Scan(&name, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return survey.Survey{}, survey.ErrNotFound
	}
	if err != nil {
		return survey.Survey{}, err
	}
	return survey.Hydrate(id, name, createdAt), nil
}

func (r *SurveyRepository) List(ctx context.Context) ([]survey.Survey, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, created_at
		FROM surveys
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []survey.Survey
	for rows.Next() {
		var (
			id        int64
			name      string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &name, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, survey.Hydrate(id, name, createdAt))
	}
	return out, rows.Err()
}
