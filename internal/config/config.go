// Package config provides centralized configuration for the reviewer server.
// Values come from an optional YAML file and are overridden by environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderStub   = "stub"
)

// Counter backends.
const (
	CounterBackendSQLite = "sqlite"
	CounterBackendRedis  = "redis"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `mapstructure:"port"`

	// DBPath is the path to the SQLite document store.
	DBPath string `mapstructure:"db_path"`

	// LogMode selects the zap preset: "dev" or "prod".
	LogMode string `mapstructure:"log_mode"`

	// LLMProvider selects which generation backend to use: "openai", "gemini" or "stub".
	LLMProvider string `mapstructure:"llm_provider"`

	OpenAIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	GeminiKey   string `mapstructure:"gemini_api_key"`
	GeminiModel string `mapstructure:"gemini_model"`

	// StageTimeout bounds every single generation call.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`

	// HTTPTimeout is the timeout for fetching URL sources.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// MaxTextLength is the maximum number of runes of source text sent to the generator.
	MaxTextLength int `mapstructure:"max_text_length"`

	// CORSOrigins lists the allowed browser origins.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// JWTSecret verifies HS256 bearer tokens. The token subject is the user id.
	JWTSecret string `mapstructure:"jwt_secret"`

	// DevUserID authenticates every request as this user when JWTSecret is empty.
	DevUserID string `mapstructure:"dev_user_id"`

	// UploadDir receives multipart uploads while they are converted.
	UploadDir string `mapstructure:"upload_dir"`

	// UploadTTL is how old a leftover upload must be before the janitor removes it.
	UploadTTL time.Duration `mapstructure:"upload_ttl"`

	// JanitorInterval is the sweep period of the upload janitor.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`

	// MaxUploadBytes caps request bodies.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// ReturnMarkdownOnly short-circuits feature endpoints to return the normalized text.
	ReturnMarkdownOnly bool `mapstructure:"return_markdown_only"`

	// AcronymVerifyStage enables the mnemonic verification stage of the Acronym pipeline.
	AcronymVerifyStage bool `mapstructure:"acronym_verify_stage"`

	// CounterBackend selects where per-user counters live: "sqlite" or "redis".
	CounterBackend string `mapstructure:"counter_backend"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`

	// External converters.
	PythonBin  string `mapstructure:"python_bin"`
	PandocBin  string `mapstructure:"pandoc_bin"`
	ScriptsDir string `mapstructure:"scripts_dir"`
}

var defaults = map[string]any{
	"port":                 "5000",
	"db_path":              "reviewer.db",
	"log_mode":             "dev",
	"llm_provider":         ProviderOpenAI,
	"openai_model":         "gpt-4o-mini",
	"gemini_model":         "gemini-2.0-flash",
	"stage_timeout":        90 * time.Second,
	"http_timeout":         30 * time.Second,
	"max_text_length":      60000,
	"cors_origins":         []string{"*"},
	"upload_dir":           "tmp",
	"upload_ttl":           time.Hour,
	"janitor_interval":     10 * time.Minute,
	"max_upload_bytes":     int64(25 << 20),
	"counter_backend":      CounterBackendSQLite,
	"python_bin":           "python",
	"pandoc_bin":           "pandoc",
	"scripts_dir":          "scripts",
	"return_markdown_only": false,
	"acronym_verify_stage": false,
}

// Load reads configuration from path (optional, may be "") and the environment.
// Every key is bound to its upper-case environment variable, e.g. db_path → DB_PATH.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	keys := append(keysOf(defaults),
		"openai_api_key", "openai_base_url", "gemini_api_key",
		"jwt_secret", "dev_user_id", "redis_addr", "redis_password", "redis_db")
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return Config{}, errors.Wrapf(err, "bind env %s", k)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, err
		}
		ext := filepath.Ext(path)
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(ext, "."))
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Errorf("parse config file %s: %s", path, err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate returns every configuration problem found.
func (c Config) Validate() []error {
	errs := make([]error, 0)
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini, ProviderStub:
	default:
		errs = append(errs, errors.Errorf("unknown llm provider %q", c.LLMProvider))
	}
	switch c.CounterBackend {
	case CounterBackendSQLite:
	case CounterBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis counter backend requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, errors.Errorf("unknown counter backend %q", c.CounterBackend))
	}
	if c.StageTimeout <= 0 {
		errs = append(errs, errors.Errorf("stage timeout must be positive, got %s", c.StageTimeout))
	}
	if c.UploadTTL <= 0 {
		errs = append(errs, errors.Errorf("upload ttl must be positive, got %s", c.UploadTTL))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.Errorf("janitor interval must be positive, got %s", c.JanitorInterval))
	}
	if c.JWTSecret == "" && c.DevUserID == "" {
		errs = append(errs, errors.New("either JWT_SECRET or DEV_USER_ID must be set"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	return errs
}

// UseStubs returns true when no API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case ProviderStub:
		return true
	case ProviderGemini:
		return c.GeminiKey == ""
	default:
		return c.OpenAIKey == ""
	}
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
