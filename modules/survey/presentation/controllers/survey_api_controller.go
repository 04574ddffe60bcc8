package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/comment"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/question"
	"github.com/orgpulse/orgpulse/modules/survey/domain/entities/survey"
	"github.com/orgpulse/orgpulse/modules/survey/services"
	"github.com/orgpulse/orgpulse/pkg/application"
	"github.com/orgpulse/orgpulse/pkg/configuration"
)

type SurveyAPIController struct {
	app      application.Application
	basePath string
}

func NewSurveyAPIController(app application.Application) application.Controller {
	return &SurveyAPIController{
		app:      app,
		basePath: "/survey/api",
	}
}

func (c *SurveyAPIController) Key() string {
	return c.basePath
}

func (c *SurveyAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/surveys", c.createSurvey).Methods(http.MethodPost)
	router.HandleFunc("/surveys", c.listSurveys).Methods(http.MethodGet)
	router.HandleFunc("/surveys/{surveyID:[0-9]+}/questions", c.importQuestions).Methods(http.MethodPost)
	router.HandleFunc("/surveys/{surveyID:[0-9]+}/comments", c.importComments).Methods(http.MethodPost)
	router.HandleFunc("/surveys/{surveyID:[0-9]+}/rankings/areas", c.areaRanking).Methods(http.MethodGet)
	router.HandleFunc("/surveys/{surveyID:[0-9]+}/rankings/themes", c.themeRanking).Methods(http.MethodGet)
	router.HandleFunc("/surveys/{surveyID:[0-9]+}/pipeline", c.submitPipeline).Methods(http.MethodPost)
	router.HandleFunc("/pipeline/{jobID}", c.getJob).Methods(http.MethodGet)
	router.HandleFunc("/pipeline/{jobID}/events", c.streamEvents).Methods(http.MethodGet)
}

func (c *SurveyAPIController) surveyService() *services.SurveyService {
	return c.app.Service(services.SurveyService{}).(*services.SurveyService)
}

func (c *SurveyAPIController) pipelineService() *services.PipelineService {
	return c.app.Service(services.PipelineService{}).(*services.PipelineService)
}

func (c *SurveyAPIController) metricsService() *services.MetricsService {
	return c.app.Service(services.MetricsService{}).(*services.MetricsService)
}

func (c *SurveyAPIController) ingestService() *services.IngestService {
	return c.app.Service(services.IngestService{}).(*services.IngestService)
}

type surveyResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toSurveyResponse(s survey.Survey) surveyResponse {
	return surveyResponse{
		ID:        s.ID(),
		Name:      s.Name(),
		CreatedAt: s.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (c *SurveyAPIController) createSurvey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := c.surveyService().Create(r.Context(), body.Name)
	if err != nil {
		if errors.Is(err, survey.ErrNameMissing) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSurveyResponse(created))
}

func (c *SurveyAPIController) listSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := c.surveyService().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]surveyResponse, 0, len(surveys))
	for _, s := range surveys {
		out = append(out, toSurveyResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type questionRow struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type commentRow struct {
	EmployeeID int64  `json:"employee_id"`
	QuestionID int64  `json:"question_id"`
	AreaID     int64  `json:"area_id"`
	Text       string `json:"text"`
}

func (c *SurveyAPIController) importQuestions(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(mux.Vars(r)["surveyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body []questionRow
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows := make([]question.Question, 0, len(body))
	for _, q := range body {
		rows = append(rows, question.Question{ID: q.ID, Text: q.Text})
	}
	stats, err := c.ingestService().ImportQuestions(r.Context(), surveyID, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *SurveyAPIController) importComments(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(mux.Vars(r)["surveyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body []commentRow
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows := make([]comment.Comment, 0, len(body))
	for _, cm := range body {
		rows = append(rows, comment.Comment{
			EmployeeID: cm.EmployeeID,
			QuestionID: cm.QuestionID,
			AreaID:     cm.AreaID,
			Text:       cm.Text,
		})
	}
	stats, err := c.ingestService().ImportComments(r.Context(), surveyID, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *SurveyAPIController) areaRanking(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(mux.Vars(r)["surveyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := c.metricsService().AreaRanking(r.Context(), surveyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (c *SurveyAPIController) themeRanking(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(mux.Vars(r)["surveyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := c.metricsService().ThemeRanking(r.Context(), surveyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type pipelineRequest struct {
	MinLevel         *int     `json:"min_level"`
	MaxLevel         *int     `json:"max_level"`
	MinRespondents   *int     `json:"min_respondents"`
	Smoothing        *int     `json:"smoothing"`
	Themes           []string `json:"themes"`
	ClearPerceptions bool     `json:"clear_perceptions"`
	OverwriteReviews bool     `json:"overwrite_reviews"`
	OverwritePlans   bool     `json:"overwrite_plans"`
}

func (c *SurveyAPIController) submitPipeline(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(mux.Vars(r)["surveyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var body pipelineRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	defaults := configuration.Use().Aggregation
	params := services.PipelineParams{
		SurveyID:         surveyID,
		MinLevel:         defaults.MinLevel,
		MaxLevel:         defaults.MaxLevel,
		MinRespondents:   defaults.MinRespondents,
		Smoothing:        defaults.Smoothing,
		Themes:           body.Themes,
		ClearPerceptions: body.ClearPerceptions,
		OverwriteReviews: body.OverwriteReviews,
		OverwritePlans:   body.OverwritePlans,
	}
	if body.MinLevel != nil {
		params.MinLevel = *body.MinLevel
	}
	if body.MaxLevel != nil {
		params.MaxLevel = *body.MaxLevel
	}
	if body.MinRespondents != nil {
		params.MinRespondents = *body.MinRespondents
	}
	if body.Smoothing != nil {
		params.Smoothing = *body.Smoothing
	}
	if params.MinLevel < 0 || params.MaxLevel < params.MinLevel || params.MinRespondents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "PIPELINE_BAD_LEVEL_RANGE",
			"message": "invalid level range or respondent threshold",
		})
		return
	}

	jobID, err := c.pipelineService().Submit(r.Context(), params)
	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID.String()})
}

func (c *SurveyAPIController) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, ok := c.pipelineService().GetJob(jobID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"code":    "JOB_NOT_FOUND",
			"message": "job not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// streamEvents forwards the job's progress events as NDJSON until the
// terminal done event is delivered. The mailbox is torn down once the stream
// ends, whichever side ended it.
func (c *SurveyAPIController) streamEvents(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"code":    "STREAMING_UNSUPPORTED",
			"message": "response writer does not support streaming",
		})
		return
	}

	registry := c.app.Progress()
	defer registry.Close(jobID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	for event := range registry.Stream(r.Context(), jobID) {
		if err := encoder.Encode(event); err != nil {
			return
		}
		flusher.Flush()
	}
}
