package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	TranscriberAPI     = "api"
	TranscriberWhisper = "whisper"

	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	minSigningKeyLen = 32
)

// Config is the process configuration read from the environment and .env.
type Config struct {
	Env      string `mapstructure:"ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	ClinicalModel      string        `mapstructure:"CLINICAL_MODEL"`
	DosageModel        string        `mapstructure:"DOSAGE_MODEL"`
	ReformatModel      string        `mapstructure:"REFORMAT_MODEL"`
	TranscriptionModel string        `mapstructure:"TRANSCRIPTION_MODEL"`
	Temperature        float64       `mapstructure:"TEMPERATURE"`
	GatewayTimeout     time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	Transcriber        string        `mapstructure:"TRANSCRIBER"`
	WhisperModelsDir   string        `mapstructure:"WHISPER_MODELS_DIR"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	StorePath    string `mapstructure:"STORE_PATH"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32  `mapstructure:"DB_MIN_CONNS"`
	AudioDir     string `mapstructure:"AUDIO_DIR"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	UploadLimit    string        `mapstructure:"UPLOAD_LIMIT"`

	v *viper.Viper
}

var keys = []string{
	"ENV", "PORT", "LOG_LEVEL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL",
	"CLINICAL_MODEL", "DOSAGE_MODEL", "REFORMAT_MODEL", "TRANSCRIPTION_MODEL",
	"TEMPERATURE", "GATEWAY_TIMEOUT", "TRANSCRIBER", "WHISPER_MODELS_DIR",
	"STORE_BACKEND", "STORE_PATH", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "AUDIO_DIR",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_LIMIT",
}

// Load reads configuration from .env, the environment and defaults. It does
// not validate; call Validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("CLINICAL_MODEL", "gpt-4")
	v.SetDefault("DOSAGE_MODEL", "gpt-4")
	v.SetDefault("REFORMAT_MODEL", "gpt-3.5-turbo")
	v.SetDefault("TRANSCRIPTION_MODEL", "whisper-1")
	v.SetDefault("TEMPERATURE", 0.7)
	v.SetDefault("GATEWAY_TIMEOUT", "60s")
	v.SetDefault("TRANSCRIBER", TranscriberAPI)
	v.SetDefault("WHISPER_MODELS_DIR", "models")
	v.SetDefault("STORE_BACKEND", BackendSQLite)
	v.SetDefault("STORE_PATH", "data/clinassist.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("AUDIO_DIR", "data/audio")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "90s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "25M")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.Transcriber = strings.ToLower(strings.TrimSpace(cfg.Transcriber))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// APIKey returns the current OPENAI_API_KEY. It is re-read on every call so a
// rotated key takes effect without a restart.
func (c *Config) APIKey() string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString("OPENAI_API_KEY")
}

// Level returns the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is safe to run. The API key is not
// checked here; a missing key surfaces on the first gateway call.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %q", c.Port)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
		}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be between 0 and 2, got %v", c.Temperature)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.Transcriber {
	case TranscriberAPI:
	case TranscriberWhisper:
		if c.WhisperModelsDir == "" {
			return fmt.Errorf("WHISPER_MODELS_DIR is required when TRANSCRIBER is %q", TranscriberWhisper)
		}
	default:
		return fmt.Errorf("TRANSCRIBER must be %q or %q, got %q", TranscriberAPI, TranscriberWhisper, c.Transcriber)
	}

	switch c.StoreBackend {
	case BackendSQLite, BackendBolt:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be sqlite, bolt, postgres, or memory, got %q", c.StoreBackend)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < minSigningKeyLen {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
	}
	return nil
}
