package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/employee"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/survey"
	"github.com/orgpulse/orgpulse/pkg/composables"
	"github.com/orgpulse/orgpulse/pkg/eventbus"
	"github.com/orgpulse/orgpulse/pkg/progress"
)

type stubSurveyRepo struct{ surveys map[int64]survey.Survey }

func (r *stubSurveyRepo) Create(_ context.Context, s survey.Survey) (survey.Survey, error) {
	return s, nil
}

func (r *stubSurveyRepo) GetByID(_ context.Context, id int64) (survey.Survey, error) {
	s, ok := r.surveys[id]
	if !ok {
		return survey.Survey{}, survey.ErrNotFound
	}
	return s, nil
}

func (r *stubSurveyRepo) List(_ context.Context) ([]survey.Survey, error) { return nil, nil }

type stubCommentRepo struct{ comments []comment.Comment }

func (r *stubCommentRepo) FetchBySurvey(_ context.Context, _ int64) ([]comment.Comment, error) {
	return r.comments, nil
}

func (r *stubCommentRepo) BulkInsert(_ context.Context, _ []comment.Comment) (int, error) {
	return 0, nil
}

type stubQuestionRepo struct{ questions []question.Question }

func (r *stubQuestionRepo) FetchBySurvey(_ context.Context, _ int64) ([]question.Question, error) {
	return r.questions, nil
}

func (r *stubQuestionRepo) BulkUpsert(_ context.Context, _ []question.Question) (int, error) {
	return 0, nil
}

type failingEmployeeRepo struct{ err error }

func (r *failingEmployeeRepo) FetchStagedBySurvey(_ context.Context, _ int64) ([]employee.StagedPerson, error) {
	return nil, r.err
}

func (r *failingEmployeeRepo) FetchAssignmentsBySurvey(_ context.Context, _ int64) ([]employee.Assignment, error) {
	return nil, r.err
}

func (r *failingEmployeeRepo) FetchBySurvey(_ context.Context, _ int64) ([]employee.Employee, error) {
	return nil, r.err
}

func (r *failingEmployeeRepo) BulkUpsert(_ context.Context, _ []employee.Employee) (int, error) {
	return 0, r.err
}

func drainEvents(t *testing.T, registry *progress.Registry, jobID uuid.UUID) []progress.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []progress.Event
	for ev := range registry.Stream(ctx, jobID) {
		if ev.Event == progress.EventPing {
			continue
		}
		events = append(events, ev)
		if ev.Event == progress.EventDone {
			break
		}
	}
	return events
}

// A stage failure must emit exactly one error event followed by exactly one
// done event, with no step_start for any stage after the failing one.
func TestPipelineStageFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := progress.NewRegistry(time.Second)
	bus := eventbus.NewEventPublisher(logger)

	finished := make(chan PipelineFinishedEvent, 1)
	bus.Subscribe(func(ev PipelineFinishedEvent) {
		finished <- ev
	})

	boom := errors.New("employees table unavailable")
	employeeRepo := &failingEmployeeRepo{err: boom}
	surveyRepo := &stubSurveyRepo{surveys: map[int64]survey.Survey{
		7: survey.Hydrate(7, "Pulse 2026", time.Now()),
	}}

	svc := NewPipelineService(
		nil,
		logger,
		registry,
		bus,
		surveyRepo,
		&stubCommentRepo{},
		&stubQuestionRepo{},
		nil,
		NewPersonService(employeeRepo),
		nil,
		nil,
		nil,
		nil,
	)

	ctx := composables.WithLogger(context.Background(), logger.WithField("test", t.Name()))
	jobID, err := svc.Submit(ctx, PipelineParams{SurveyID: 7})
	require.NoError(t, err)

	events := drainEvents(t, registry, jobID)

	var (
		errorCount, doneCount int
		startedStages         []string
	)
	for _, ev := range events {
		switch ev.Event {
		case progress.EventError:
			errorCount++
			require.Contains(t, ev.Message, StagePersons)
		case progress.EventDone:
			doneCount++
		case progress.EventStepStart:
			startedStages = append(startedStages, ev.Step)
		}
	}
	require.Equal(t, 1, errorCount)
	require.Equal(t, 1, doneCount)
	require.Equal(t, []string{StageIngest, StagePersons}, startedStages)
	require.Equal(t, progress.EventDone, events[len(events)-1].Event)

	select {
	case ev := <-finished:
		require.Equal(t, jobID, ev.JobID)
		require.Equal(t, JobFailed, ev.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no pipeline finished event published")
	}

	job, ok := svc.GetJob(jobID)
	require.True(t, ok)
	require.Equal(t, JobFailed, job.Status)
	require.Len(t, job.Steps, 2)
	require.Empty(t, job.Steps[0].Error)
	require.Contains(t, job.Steps[1].Error, "employees table unavailable")
}

func TestPipelineSubmitUnknownSurvey(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := progress.NewRegistry(time.Second)

	svc := NewPipelineService(
		nil, logger, registry, eventbus.NewEventPublisher(logger),
		&stubSurveyRepo{surveys: map[int64]survey.Survey{}},
		&stubCommentRepo{}, &stubQuestionRepo{},
		nil, nil, nil, nil, nil, nil,
	)

	_, err := svc.Submit(context.Background(), PipelineParams{SurveyID: 42})
	require.ErrorIs(t, err, survey.ErrNotFound)
}

func TestPipelineJobLookup(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewPipelineService(
		nil, logger, progress.NewRegistry(time.Second), eventbus.NewEventPublisher(logger),
		&stubSurveyRepo{surveys: map[int64]survey.Survey{}},
		&stubCommentRepo{}, &stubQuestionRepo{},
		nil, nil, nil, nil, nil, nil,
	)

	_, ok := svc.GetJob(uuid.New())
	require.False(t, ok)
}

// Finished jobs are dropped after the retention window; the record must not
// outlive its mailbox.
func TestPipelineJobRecordExpiresAfterRetention(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := progress.NewRegistry(time.Second)
	bus := eventbus.NewEventPublisher(logger)

	employeeRepo := &failingEmployeeRepo{err: errors.New("employees table unavailable")}
	surveyRepo := &stubSurveyRepo{surveys: map[int64]survey.Survey{
		7: survey.Hydrate(7, "Pulse 2026", time.Now()),
	}}

	svc := NewPipelineService(
		nil,
		logger,
		registry,
		bus,
		surveyRepo,
		&stubCommentRepo{},
		&stubQuestionRepo{},
		nil,
		NewPersonService(employeeRepo),
		nil,
		nil,
		nil,
		nil,
	)
	svc.retention = 10 * time.Millisecond

	ctx := composables.WithLogger(context.Background(), logger.WithField("test", t.Name()))
	jobID, err := svc.Submit(ctx, PipelineParams{SurveyID: 7})
	require.NoError(t, err)
	drainEvents(t, registry, jobID)

	require.Eventually(t, func() bool {
		_, ok := svc.GetJob(jobID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
