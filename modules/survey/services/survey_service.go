package services

import (
	"context"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/survey"
	"github.com/orgpulse/orgpulse/pkg/eventbus"
)

// SurveyCreatedEvent is published after a survey is persisted.
type SurveyCreatedEvent struct {
	Survey survey.Survey
}

type SurveyService struct {
	repo      survey.Repository
	publisher eventbus.EventBus
}

func NewSurveyService(repo survey.Repository, publisher eventbus.EventBus) *SurveyService {
	return &SurveyService{repo: repo, publisher: publisher}
}

func (s *SurveyService) Create(ctx context.Context, name string) (survey.Survey, error) {
	entity := survey.New(name)
	if entity.Name() == "" {
		return survey.Survey{}, survey.ErrNameMissing
	}
	created, err := s.repo.Create(ctx, entity)
	if err != nil {
		return survey.Survey{}, err
	}
	s.publisher.Publish(SurveyCreatedEvent{Survey: created})
	return created, nil
}

func (s *SurveyService) GetByID(ctx context.Context, id int64) (survey.Survey, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SurveyService) List(ctx context.Context) ([]survey.Survey, error) {
	return s.repo.List(ctx)
}
