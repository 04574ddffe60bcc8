package survey

import (
	"embed"

	"github.com/orgpulse/orgpulse/modules/survey/infrastructure/llm"
	"github.com/orgpulse/orgpulse/modules/survey/infrastructure/persistence"
	"github.com/orgpulse/orgpulse/modules/survey/presentation/controllers"
	"github.com/orgpulse/orgpulse/modules/survey/services"
	"github.com/orgpulse/orgpulse/pkg/application"
	"github.com/orgpulse/orgpulse/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/survey-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterSchema(&migrationFiles)

	conf := configuration.Use()

	surveyRepo := persistence.NewSurveyRepository()
	areaRepo := persistence.NewAreaRepository()
	employeeRepo := persistence.NewEmployeeRepository()
	commentRepo := persistence.NewCommentRepository()
	questionRepo := persistence.NewQuestionRepository()
	perceptionRepo := persistence.NewPerceptionRepository()

	surveyService := services.NewSurveyService(surveyRepo, app.EventPublisher())
	hierarchyService := services.NewHierarchyService(areaRepo)
	personService := services.NewPersonService(employeeRepo)
	classificationService := services.NewClassificationService(
		commentRepo,
		questionRepo,
		perceptionRepo,
		llm.NewOpenAIClassifier(&conf.OpenAI),
	)
	metricsService := services.NewMetricsService(areaRepo, employeeRepo, commentRepo, perceptionRepo)
	reviewService := services.NewReviewService(areaRepo, perceptionRepo, llm.NewOpenAIReviewer(&conf.OpenAI))
	planService := services.NewPlanService(areaRepo, perceptionRepo, llm.NewOpenAIPlanner(&conf.OpenAI))
	ingestService := services.NewIngestService(commentRepo, questionRepo)
	pipelineService := services.NewPipelineService(
		app.Pool(),
		app.Logger(),
		app.Progress(),
		app.EventPublisher(),
		surveyRepo,
		commentRepo,
		questionRepo,
		hierarchyService,
		personService,
		classificationService,
		metricsService,
		reviewService,
		planService,
	)

	app.EventPublisher().Subscribe(func(event services.SurveyCreatedEvent) {
		app.Logger().WithField("survey_id", event.Survey.ID()).Info("survey created")
	})

	app.RegisterServices(
		surveyService,
		hierarchyService,
		personService,
		classificationService,
		metricsService,
		reviewService,
		planService,
		ingestService,
		pipelineService,
	)

	app.RegisterControllers(
		controllers.NewSurveyAPIController(app),
	)

	return nil
}

func (m *Module) Name() string {
	return "survey"
}
