package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by LLMConfig.Backend.
const (
	BackendOpenAI = "openai"
	BackendLocal  = "local"
	BackendGemini = "gemini"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Storage   StorageConfig   `yaml:"storage"`
	Chat      ChatConfig      `yaml:"chat"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LLMConfig selects the inference backend and its sampling parameters.
type LLMConfig struct {
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	TopK        int           `yaml:"top_k"`
	NumCtx      int           `yaml:"num_ctx"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CanvasConfig struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	AccountID int64         `yaml:"account_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Configured reports whether Canvas calls can be made at all.
func (c CanvasConfig) Configured() bool {
	return c.URL != "" && c.Token != ""
}

type StorageConfig struct {
	ConversationsDB string `yaml:"conversations_db"`
	UsageDB         string `yaml:"usage_db"`
}

type ChatConfig struct {
	MaxIterations       int           `yaml:"max_iterations"`
	HistoryLimit        int           `yaml:"history_limit"`
	Classifier          string        `yaml:"classifier"`
	ClassifierTimeout   time.Duration `yaml:"classifier_timeout"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
}

type AnalyticsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Required  bool          `yaml:"required"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8100",
			UploadDir:      "uploads",
			MaxUploadBytes: 25 << 20,
		},
		LLM: LLMConfig{
			Backend:     BackendLocal,
			Model:       "llama3.1:8b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
			TopP:        0.9,
			TopK:        40,
			NumCtx:      8192,
			MaxTokens:   1000,
			Timeout:     30 * time.Second,
		},
		Canvas: CanvasConfig{
			AccountID: 1,
			Timeout:   15 * time.Second,
		},
		Storage: StorageConfig{
			ConversationsDB: "conversations.db",
			UsageDB:         "usage.db",
		},
		Chat: ChatConfig{
			MaxIterations:       3,
			HistoryLimit:        20,
			Classifier:          "llm",
			ClassifierTimeout:   10 * time.Second,
			ConfidenceThreshold: 0.75,
		},
		Analytics: AnalyticsConfig{TTL: 5 * time.Minute},
		Auth: AuthConfig{
			JWTSecret: "demo_secret_key",
			TokenTTL:  24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path
// and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("UPLOAD_DIR", &c.Server.UploadDir)
	int64v("MAX_UPLOAD_BYTES", &c.Server.MaxUploadBytes)

	// Provider keys pick a backend only when none was requested explicitly.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if os.Getenv("LLM_BACKEND") == "" {
			c.LLM.Backend = BackendOpenAI
			c.LLM.Model = "gpt-4o-mini"
			c.LLM.BaseURL = ""
		}
	}
	str("LLM_BACKEND", &c.LLM.Backend)
	if c.LLM.Backend == BackendGemini {
		str("GEMINI_API_KEY", &c.LLM.APIKey)
	}
	if c.LLM.Backend == BackendLocal {
		str("OLLAMA_URL", &c.LLM.BaseURL)
	}
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	float("LLM_TEMPERATURE", &c.LLM.Temperature)
	float("LLM_TOP_P", &c.LLM.TopP)
	integer("LLM_TOP_K", &c.LLM.TopK)
	integer("LLM_NUM_CTX", &c.LLM.NumCtx)
	integer("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	duration("LLM_TIMEOUT", &c.LLM.Timeout)

	str("CANVAS_URL", &c.Canvas.URL)
	str("CANVAS_TOKEN", &c.Canvas.Token)
	int64v("CANVAS_ACCOUNT_ID", &c.Canvas.AccountID)
	duration("CANVAS_TIMEOUT", &c.Canvas.Timeout)

	str("CONVERSATIONS_DB", &c.Storage.ConversationsDB)
	str("USAGE_DB", &c.Storage.UsageDB)

	integer("CHAT_MAX_ITERATIONS", &c.Chat.MaxIterations)
	integer("CHAT_HISTORY_LIMIT", &c.Chat.HistoryLimit)
	str("CHAT_CLASSIFIER", &c.Chat.Classifier)
	duration("CHAT_CLASSIFIER_TIMEOUT", &c.Chat.ClassifierTimeout)
	float("CHAT_CONFIDENCE_THRESHOLD", &c.Chat.ConfidenceThreshold)

	duration("ANALYTICS_TTL", &c.Analytics.TTL)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	boolean("AUTH_REQUIRED", &c.Auth.Required)

	str("LOG_LEVEL", &c.Logging.Level)
	boolean("LOG_DEVELOPMENT", &c.Logging.Development)

	return errs
}

// parseDuration accepts Go durations ("45s") and bare seconds ("45").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks value ranges; every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs error
	switch c.LLM.Backend {
	case BackendOpenAI, BackendGemini:
		if c.LLM.APIKey == "" {
			errs = multierr.Append(errs, fmt.Errorf("llm.api_key is required for backend %q", c.LLM.Backend))
		}
	case BackendLocal:
		if c.LLM.BaseURL == "" {
			errs = multierr.Append(errs, fmt.Errorf("llm.base_url is required for the local backend"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("llm.backend must be one of openai, local, gemini (got %q)", c.LLM.Backend))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = multierr.Append(errs, fmt.Errorf("llm.temperature must be within [0, 2]"))
	}
	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		errs = multierr.Append(errs, fmt.Errorf("llm.top_p must be within (0, 1]"))
	}
	if c.LLM.TopK < 0 {
		errs = multierr.Append(errs, fmt.Errorf("llm.top_k must not be negative"))
	}
	if c.LLM.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("llm.timeout must be positive"))
	}
	if c.Chat.MaxIterations < 1 {
		errs = multierr.Append(errs, fmt.Errorf("chat.max_iterations must be at least 1"))
	}
	switch strings.ToLower(c.Chat.Classifier) {
	case "llm", "pattern":
	default:
		errs = multierr.Append(errs, fmt.Errorf("chat.classifier must be llm or pattern (got %q)", c.Chat.Classifier))
	}
	if c.Chat.ConfidenceThreshold < 0 || c.Chat.ConfidenceThreshold > 1 {
		errs = multierr.Append(errs, fmt.Errorf("chat.confidence_threshold must be within [0, 1]"))
	}
	if c.Canvas.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("canvas.timeout must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = multierr.Append(errs, fmt.Errorf("auth.jwt_secret must not be empty"))
	}
	return errs
}
