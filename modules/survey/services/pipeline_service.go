package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/survey"
	"github.com/orgpulse/orgpulse/pkg/composables"
	"github.com/orgpulse/orgpulse/pkg/eventbus"
	"github.com/orgpulse/orgpulse/pkg/progress"
)

// Pipeline stage names, in execution order. Classification runs before
// aggregation because snapshots consume the classified perceptions.
const (
	StageIngest         = "data ingest"
	StagePersons        = "person resolution"
	StageHierarchy      = "hierarchy build"
	StageClassification = "text classification"
	StageAggregation    = "metric aggregation"
	StageNarratives     = "narrative generation"
	StagePlans          = "action planning"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobStep is one finished stage of a job's step log.
type JobStep struct {
	Name       string  `json:"name"`
	ElapsedSec float64 `json:"elapsed_sec"`
	Error      string  `json:"error,omitempty"`
}

// Job is the in-memory record of one pipeline run. It lives for the run plus
// the mailbox retention window; nothing is persisted.
type Job struct {
	ID          uuid.UUID `json:"id"`
	SurveyID    int64     `json:"survey_id"`
	Status      JobStatus `json:"status"`
	Steps       []JobStep `json:"steps"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// PipelineParams configures one submitted run.
type PipelineParams struct {
	SurveyID         int64
	MinLevel         int
	MaxLevel         int
	MinRespondents   int
	Smoothing        int
	Themes           []string
	ClearPerceptions bool
	OverwriteReviews bool
	OverwritePlans   bool
}

// PipelineFinishedEvent is published on the event bus when a job reaches a
// terminal state.
type PipelineFinishedEvent struct {
	JobID    uuid.UUID
	SurveyID int64
	Status   JobStatus
	Elapsed  time.Duration
}

// mailboxRetention is how long a finished job's mailbox survives waiting for
// a consumer to drain it.
const mailboxRetention = 10 * time.Minute

type PipelineService struct {
	pool     *pgxpool.Pool
	logger   *logrus.Logger
	registry *progress.Registry
	bus      eventbus.EventBus

	surveys        survey.Repository
	comments       comment.Repository
	questions      question.Repository
	hierarchy      *HierarchyService
	persons        *PersonService
	classification *ClassificationService
	metrics        *MetricsService
	reviews        *ReviewService
	plans          *PlanService

	retention time.Duration

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

func NewPipelineService(
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	registry *progress.Registry,
	bus eventbus.EventBus,
	surveys survey.Repository,
	comments comment.Repository,
	questions question.Repository,
	hierarchy *HierarchyService,
	persons *PersonService,
	classification *ClassificationService,
	metrics *MetricsService,
	reviews *ReviewService,
	plans *PlanService,
) *PipelineService {
	s := &PipelineService{
		pool:           pool,
		logger:         logger,
		registry:       registry,
		bus:            bus,
		surveys:        surveys,
		comments:       comments,
		questions:      questions,
		hierarchy:      hierarchy,
		persons:        persons,
		classification: classification,
		metrics:        metrics,
		reviews:        reviews,
		plans:          plans,
		retention:      mailboxRetention,
		jobs:           make(map[uuid.UUID]*Job),
	}
	bus.Subscribe(s.onFinished)
	return s
}

// Submit validates the survey, opens the job's mailbox and launches the
// worker. The mailbox is opened strictly before the goroutine starts so a
// consumer can never attach before it exists. Returns immediately.
func (s *PipelineService) Submit(ctx context.Context, params PipelineParams) (uuid.UUID, error) {
	target, err := s.surveys.GetByID(ctx, params.SurveyID)
	if err != nil {
		return uuid.Nil, err
	}

	jobID := uuid.New()
	s.mu.Lock()
	s.jobs[jobID] = &Job{
		ID:          jobID,
		SurveyID:    params.SurveyID,
		Status:      JobPending,
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	s.registry.Open(jobID)
	go s.run(jobID, target, params)
	return jobID, nil
}

// GetJob returns a copy of the job's in-memory record.
func (s *PipelineService) GetJob(jobID uuid.UUID) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Steps = append([]JobStep(nil), job.Steps...)
	return snapshot, true
}

type stage struct {
	name string
	fn   func(ctx context.Context) (map[string]any, error)
}

func (s *PipelineService) run(jobID uuid.UUID, target survey.Survey, params PipelineParams) {
	logger := s.logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"survey_id": params.SurveyID,
	})
	// The worker outlives the triggering request, so it carries its own
	// context wired to the pool.
	ctx := composables.WithLogger(composables.WithPool(context.Background(), s.pool), logger)

	started := time.Now()
	status := JobCompleted
	defer func() {
		if r := recover(); r != nil {
			status = JobFailed
			logger.WithField("panic", fmt.Sprint(r)).Error("pipeline worker panicked")
			s.registry.Put(jobID, progress.Error(fmt.Sprintf("internal failure: %v", r)))
		}
		s.finalize(jobID, params.SurveyID, status, time.Since(started))
	}()

	s.setStatus(jobID, JobRunning)
	s.registry.Put(jobID, progress.Event{
		Event: progress.EventSurvey,
		Payload: map[string]any{
			"survey_id":   target.ID(),
			"survey_name": target.Name(),
		},
	})

	emitter := EmitterFunc(func(ev progress.Event) { s.registry.Put(jobID, ev) })

	for _, st := range s.stages(params, emitter) {
		s.registry.Put(jobID, progress.StepStart(st.name))
		stageStarted := time.Now()

		payload, err := st.fn(ctx)
		elapsed := time.Since(stageStarted)
		if err != nil {
			status = JobFailed
			logger.WithFields(logrus.Fields{
				"stage": st.name,
				"error": err.Error(),
			}).Error("pipeline stage failed")
			s.recordStep(jobID, JobStep{Name: st.name, ElapsedSec: elapsed.Seconds(), Error: err.Error()})
			s.registry.Put(jobID, progress.Error(fmt.Sprintf("%s: %v", st.name, err)))
			return
		}

		s.recordStep(jobID, JobStep{Name: st.name, ElapsedSec: elapsed.Seconds()})
		s.registry.Put(jobID, progress.StepDone(st.name, elapsed))
		if len(payload) > 0 {
			s.registry.Put(jobID, progress.Event{
				Event:   progress.EventStats,
				Step:    st.name,
				Payload: payload,
			})
		}
		logger.WithFields(logrus.Fields{
			"stage":   st.name,
			"elapsed": elapsed.String(),
		}).Info("pipeline stage done")
	}
}

func (s *PipelineService) stages(params PipelineParams, emitter ProgressEmitter) []stage {
	return []stage{
		{StageIngest, func(ctx context.Context) (map[string]any, error) {
			return s.ingest(ctx, params.SurveyID)
		}},
		{StagePersons, func(ctx context.Context) (map[string]any, error) {
			_, stats, err := s.persons.Resolve(ctx, params.SurveyID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"staged":        stats.StagedPersons,
				"resolved":      stats.Resolved,
				"no_assignment": stats.NoAssignment,
				"bad_rows":      stats.BadStagedRows,
			}, nil
		}},
		{StageHierarchy, func(ctx context.Context) (map[string]any, error) {
			h, err := s.hierarchy.Rebuild(ctx, params.SurveyID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"nodes":           len(h.Nodes),
				"synthetic_root":  h.Synthetic,
				"root_candidates": h.Stats.RootCandidates,
				"unreachable":     h.Stats.Unreachable,
			}, nil
		}},
		{StageClassification, func(ctx context.Context) (map[string]any, error) {
			stats, err := s.classification.Classify(ctx, ClassificationParams{
				SurveyID:      params.SurveyID,
				Themes:        params.Themes,
				ClearExisting: params.ClearPerceptions,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"employees":        stats.Employees,
				"perceptions":      stats.Perceptions,
				"unmatched_blocks": stats.UnmatchedBlocks,
			}, nil
		}},
		{StageAggregation, func(ctx context.Context) (map[string]any, error) {
			result, err := s.metrics.Aggregate(ctx, AggregateParams{
				SurveyID:       params.SurveyID,
				MinLevel:       params.MinLevel,
				MaxLevel:       params.MaxLevel,
				MinRespondents: params.MinRespondents,
				Smoothing:      params.Smoothing,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"nodes":     result.Stats.Nodes,
				"qualified": result.Stats.Qualified,
				"skipped":   result.Stats.Skipped,
				"failures":  result.Stats.Failures,
				"snapshots": result.Stats.Snapshots,
			}, nil
		}},
		{StageNarratives, func(ctx context.Context) (map[string]any, error) {
			stats, err := s.reviews.Generate(ctx, ReviewParams{
				SurveyID:  params.SurveyID,
				Overwrite: params.OverwriteReviews,
			}, emitter)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"areas":       stats.Areas,
				"generated":   stats.Generated,
				"unavailable": stats.Unavailable,
				"failed":      stats.Failed,
				"skipped":     stats.Skipped,
			}, nil
		}},
		{StagePlans, func(ctx context.Context) (map[string]any, error) {
			stats, err := s.plans.Generate(ctx, PlanParams{
				SurveyID:  params.SurveyID,
				Overwrite: params.OverwritePlans,
			}, emitter)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"areas":       stats.Areas,
				"generated":   stats.Generated,
				"unavailable": stats.Unavailable,
				"failed":      stats.Failed,
				"skipped":     stats.Skipped,
			}, nil
		}},
	}
}

func (s *PipelineService) ingest(ctx context.Context, surveyID int64) (map[string]any, error) {
	comments, err := s.comments.FetchBySurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.FetchBySurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"comments":  len(comments),
		"questions": len(questions),
	}, nil
}

// finalize always emits the terminal done event so consumers can stop
// deterministically, then schedules mailbox teardown for abandoned streams.
func (s *PipelineService) finalize(jobID uuid.UUID, surveyID int64, status JobStatus, elapsed time.Duration) {
	s.setStatus(jobID, status)
	s.registry.Put(jobID, progress.Done())
	s.registry.CloseAfter(jobID, s.retention)
	s.bus.Publish(PipelineFinishedEvent{
		JobID:    jobID,
		SurveyID: surveyID,
		Status:   status,
		Elapsed:  elapsed,
	})
}

// onFinished drops the job record once the retention window has passed, so
// finished jobs do not accumulate across submissions. After that GetJob
// reports the job as unknown, matching the torn-down event stream.
func (s *PipelineService) onFinished(event PipelineFinishedEvent) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, event.JobID)
	})
}

func (s *PipelineService) setStatus(jobID uuid.UUID, status JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
	}
}

func (s *PipelineService) recordStep(jobID uuid.UUID, step JobStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Steps = append(job.Steps, step)
	}
}
