package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/orgpulse/orgpulse/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"orgpulse"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OpenAIOptions struct {
	Key         string  `env:"OPENAI_KEY"`
	BaseURL     string  `env:"OPENAI_BASE_URL"`
	Model       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ReviewModel string  `env:"OPENAI_REVIEW_MODEL" envDefault:"gpt-4o"`
	Temperature float64 `env:"OPENAI_TEMPERATURE" envDefault:"0"`
	MaxTokens   int     `env:"OPENAI_MAX_TOKENS" envDefault:"1000"`
}

type AggregationOptions struct {
	MinLevel       int `env:"AGG_MIN_LEVEL" envDefault:"0"`
	MaxLevel       int `env:"AGG_MAX_LEVEL" envDefault:"999"`
	MinRespondents int `env:"AGG_MIN_RESPONDENTS" envDefault:"3"`
	// Additive smoothing applied to the commenter count when normalizing scores.
	Smoothing int `env:"AGG_SCORE_SMOOTHING" envDefault:"5"`
}

func (a *AggregationOptions) Validate() error {
	if a.MinLevel < 0 {
		return fmt.Errorf("AGG_MIN_LEVEL must be non-negative, got %d", a.MinLevel)
	}
	if a.MaxLevel < a.MinLevel {
		return fmt.Errorf("AGG_MAX_LEVEL (%d) must be >= AGG_MIN_LEVEL (%d)", a.MaxLevel, a.MinLevel)
	}
	if a.MinRespondents < 0 {
		return fmt.Errorf("AGG_MIN_RESPONDENTS must be non-negative, got %d", a.MinRespondents)
	}
	if a.Smoothing < 0 {
		return fmt.Errorf("AGG_SCORE_SMOOTHING must be non-negative, got %d", a.Smoothing)
	}
	return nil
}

type Configuration struct {
	Database    DatabaseOptions
	OpenAI      OpenAIOptions
	Aggregation AggregationOptions

	ServerPort       int           `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string        `env:"-"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string        `env:"LOG_PATH" envDefault:"./logs/app.log"`
	RequestIDHeader  string        `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	ProgressPing     time.Duration `env:"PROGRESS_PING_INTERVAL" envDefault:"30s"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Aggregation.Validate(); err != nil {
		return fmt.Errorf("aggregation configuration error: %w", err)
	}
	if c.ProgressPing <= 0 {
		return fmt.Errorf("PROGRESS_PING_INTERVAL must be positive, got %s", c.ProgressPing)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
