package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	ShortlistJina   = "jina"
	ShortlistCohere = "cohere"

	VectorBackendPgvector = "pgvector"
	VectorBackendWeaviate = "weaviate"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"crewmatch"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"crewmatch"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Vector search runs in Postgres unless Weaviate is selected, in which
	// case candidate vectors are mirrored there and searched there.
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"1048576"`

	EnableAPI             bool `envconfig:"ENABLE_API" default:"true"`
	EnableEmbeddingWorker bool `envconfig:"ENABLE_EMBEDDING_WORKER" default:"false"`

	// Providers
	EmbeddingProvider      string `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	EmbeddingModel         string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions    int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	LLMProvider            string `envconfig:"LLM_PROVIDER" default:"gemini"`
	LLMModel               string `envconfig:"LLM_MODEL"`
	GeminiAPIKey           string `envconfig:"GEMINI_API_KEY"`
	OpenAIBaseURL          string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey           string `envconfig:"OPENAI_API_KEY"`
	OpenAITokenURL         string `envconfig:"OPENAI_TOKEN_URL"`
	OpenAIClientID         string `envconfig:"OPENAI_CLIENT_ID"`
	OpenAIRefreshToken     string `envconfig:"OPENAI_REFRESH_TOKEN"`
	ProviderTimeoutSeconds int    `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"60"`

	// Optional cross-encoder that picks which filtered candidates reach the
	// LLM re-rank when more pass than it takes. Empty disables it.
	ShortlistProvider string `envconfig:"SHORTLIST_PROVIDER"`
	ShortlistAPIKey   string `envconfig:"SHORTLIST_API_KEY"`

	// Worker and queue
	WorkerBatchSize           int `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerPollIntervalSeconds int `envconfig:"WORKER_POLL_INTERVAL_SECONDS" default:"5"`
	WorkerConcurrency         int `envconfig:"WORKER_CONCURRENCY" default:"1"`
	QueueMaxAttempts          int `envconfig:"QUEUE_MAX_ATTEMPTS" default:"3"`
	QueueRetryBackoffSeconds  int `envconfig:"QUEUE_RETRY_BACKOFF_SECONDS" default:"30"`
	QueueStaleAfterMinutes    int `envconfig:"QUEUE_STALE_AFTER_MINUTES" default:"15"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	MatchLogPath string `envconfig:"MATCH_LOG_PATH" default:"data/logs/match.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	if c.VectorBackend != VectorBackendPgvector && c.VectorBackend != VectorBackendWeaviate {
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalid, c.VectorBackend)
	}
	if err := c.validateProvider("EMBEDDING_PROVIDER", c.EmbeddingProvider); err != nil {
		return err
	}
	if err := c.validateProvider("LLM_PROVIDER", c.LLMProvider); err != nil {
		return err
	}

	switch c.ShortlistProvider {
	case "":
	case ShortlistJina, ShortlistCohere:
		if c.ShortlistAPIKey == "" {
			return fmt.Errorf("%w: SHORTLIST_API_KEY (required by SHORTLIST_PROVIDER)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: SHORTLIST_PROVIDER %q", ErrInvalid, c.ShortlistProvider)
	}

	positive := []struct {
		key string
		val int
	}{
		{"EMBEDDING_DIMENSIONS", c.EmbeddingDimensions},
		{"PROVIDER_TIMEOUT_SECONDS", c.ProviderTimeoutSeconds},
		{"WORKER_BATCH_SIZE", c.WorkerBatchSize},
		{"WORKER_POLL_INTERVAL_SECONDS", c.WorkerPollIntervalSeconds},
		{"WORKER_CONCURRENCY", c.WorkerConcurrency},
		{"QUEUE_MAX_ATTEMPTS", c.QueueMaxAttempts},
		{"QUEUE_STALE_AFTER_MINUTES", c.QueueStaleAfterMinutes},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, p.key)
		}
	}
	if c.QueueRetryBackoffSeconds < 0 {
		return fmt.Errorf("%w: QUEUE_RETRY_BACKOFF_SECONDS must not be negative", ErrInvalid)
	}
	// A claimed batch must be able to finish before other workers treat it
	// as abandoned.
	if c.StaleAfter() < time.Duration(c.WorkerBatchSize)*c.ProviderTimeout() {
		return fmt.Errorf("%w: QUEUE_STALE_AFTER_MINUTES must cover WORKER_BATCH_SIZE x PROVIDER_TIMEOUT_SECONDS", ErrInvalid)
	}
	return nil
}

func (c *Config) validateProvider(key, name string) error {
	switch name {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (required by %s)", ErrMissingRequired, key)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && !c.OpenAIRefreshConfigured() {
			return fmt.Errorf("%w: OPENAI_API_KEY or OPENAI_TOKEN_URL/CLIENT_ID/REFRESH_TOKEN (required by %s)", ErrMissingRequired, key)
		}
	default:
		return fmt.Errorf("%w: %s %q", ErrInvalid, key, name)
	}
	return nil
}

// OpenAIRefreshConfigured reports whether the refresh-token grant can be
// used instead of a static API key.
func (c *Config) OpenAIRefreshConfigured() bool {
	return c.OpenAITokenURL != "" && c.OpenAIClientID != "" && c.OpenAIRefreshToken != ""
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.WorkerPollIntervalSeconds) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.QueueRetryBackoffSeconds) * time.Second
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.QueueStaleAfterMinutes) * time.Minute
}
