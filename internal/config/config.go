package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Grading   GradingConfig   `yaml:"grading" mapstructure:"grading"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// GradingConfig holds the grading pipeline knobs. Load applies defaults;
// Validate enforces the documented bounds before any grading attempt.
type GradingConfig struct {
	// Model is the model ID used for grading calls.
	Model string `yaml:"model" mapstructure:"model"`

	// Tone and Strictness set the default marking voice; both are
	// overridable per grading request.
	Tone       string `yaml:"tone" mapstructure:"tone"`
	Strictness string `yaml:"strictness" mapstructure:"strictness"`

	// UseRubricIfAvailable includes the brief's rubric hint in the prompt.
	UseRubricIfAvailable bool `yaml:"use_rubric_if_available" mapstructure:"use_rubric_if_available"`

	// MaxFeedbackBullets caps rendered feedback bullets.
	MaxFeedbackBullets int `yaml:"max_feedback_bullets" mapstructure:"max_feedback_bullets"`

	// FeedbackTemplate wraps the rendered feedback; see internal/feedback
	// for the recognized placeholders.
	FeedbackTemplate string `yaml:"feedback_template" mapstructure:"feedback_template"`

	// ConfidenceCap bounds the final confidence when modality evidence is
	// missing. Must be within [0.2, 0.95].
	ConfidenceCap float64 `yaml:"confidence_cap" mapstructure:"confidence_cap"`

	// MaxSampledPages is how many extraction pages the prompt may carry.
	// Must be within [1, 6].
	MaxSampledPages int `yaml:"max_sampled_pages" mapstructure:"max_sampled_pages"`

	// PageCharBudget truncates each sampled page. Must be within [500, 6000].
	PageCharBudget int `yaml:"page_char_budget" mapstructure:"page_char_budget"`

	// BodyTextLimit truncates the concatenated body text substrate.
	BodyTextLimit int `yaml:"body_text_limit" mapstructure:"body_text_limit"`

	// MinTextLength is the readiness gate's minimum extracted text length.
	MinTextLength int `yaml:"min_text_length" mapstructure:"min_text_length"`

	// MinExtractionConfidence is the readiness gate's floor on the latest
	// extraction run's confidence.
	MinExtractionConfidence float64 `yaml:"min_extraction_confidence" mapstructure:"min_extraction_confidence"`

	// TimeoutSecs bounds each outbound model call attempt.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// MaxAttempts is the model-call retry budget (including the first try).
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// MaxOutputTokens bounds the model response.
	MaxOutputTokens int64 `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// Timeout returns the per-attempt model call timeout as a duration.
func (g GradingConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// Validate checks the documented bounds on grading knobs.
func (g GradingConfig) Validate() error {
	if g.Model == "" {
		return eris.New("grading: model is required")
	}
	if g.ConfidenceCap < 0.2 || g.ConfidenceCap > 0.95 {
		return eris.Errorf("grading: confidence_cap %.2f outside [0.2, 0.95]", g.ConfidenceCap)
	}
	if g.MaxSampledPages < 1 || g.MaxSampledPages > 6 {
		return eris.Errorf("grading: max_sampled_pages %d outside [1, 6]", g.MaxSampledPages)
	}
	if g.PageCharBudget < 500 || g.PageCharBudget > 6000 {
		return eris.Errorf("grading: page_char_budget %d outside [500, 6000]", g.PageCharBudget)
	}
	if g.MinTextLength <= 0 {
		return eris.New("grading: min_text_length must be positive")
	}
	if g.TimeoutSecs <= 0 {
		return eris.New("grading: timeout_secs must be positive")
	}
	if g.MaxAttempts < 1 || g.MaxAttempts > 5 {
		return eris.Errorf("grading: max_attempts %d outside [1, 5]", g.MaxAttempts)
	}
	return nil
}

// BatchConfig configures bulk grading.
type BatchConfig struct {
	MaxConcurrentSubmissions int     `yaml:"max_concurrent_submissions" mapstructure:"max_concurrent_submissions"`
	ModelCallsPerSecond      float64 `yaml:"model_calls_per_second" mapstructure:"model_calls_per_second"`
}

// ServerConfig configures the grading HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_submissions", 4)
	v.SetDefault("batch.model_calls_per_second", 1.0)
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("grading.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("grading.tone", "supportive")
	v.SetDefault("grading.strictness", "standard")
	v.SetDefault("grading.use_rubric_if_available", true)
	v.SetDefault("grading.max_feedback_bullets", 8)
	v.SetDefault("grading.feedback_template", "")
	v.SetDefault("grading.confidence_cap", 0.65)
	v.SetDefault("grading.max_sampled_pages", 4)
	v.SetDefault("grading.page_char_budget", 1600)
	v.SetDefault("grading.body_text_limit", 20000)
	v.SetDefault("grading.min_text_length", 200)
	v.SetDefault("grading.min_extraction_confidence", 0.3)
	v.SetDefault("grading.timeout_secs", 90)
	v.SetDefault("grading.max_attempts", 3)
	v.SetDefault("grading.max_output_tokens", 4096)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Grading.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
