package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	FrontendURL string
	// ManualEditMode is "version" or "in_place".
	ManualEditMode string
	LLM            LLMConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	Cache          CacheConfig
	Artifact       ArtifactConfig
}

type LLMConfig struct {
	// Provider is "gemini" or "fake".
	Provider        string
	APIKey          string
	Model           string
	MaxTokens       int
	ChatMaxTokens   int
	UsageLedgerPath string
}

type AuthConfig struct {
	// Tokens is a "token=user,token=user" list.
	Tokens         string
	AllowAnonymous bool
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c *Config) IsLocal() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "local")
}

// Load reads .env, an optional uigen.yaml config file and the environment.
// Flags registered on flags take precedence when set.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		if f := flags.Lookup("port"); f != nil {
			if err := v.BindPFlag("PORT", f); err != nil {
				return nil, fmt.Errorf("bind port flag: %w", err)
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
	}
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("uigen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8081")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("AI_MODEL", "gemini-2.0-flash-lite")
	v.SetDefault("AI_MAX_TOKENS", 4096)
	v.SetDefault("AI_CHAT_MAX_TOKENS", 1024)
	v.SetDefault("RATE_LIMIT_WINDOW_MS", 15*60*1000)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	v.SetDefault("SESSION_CACHE_TTL", "2m")
	v.SetDefault("SESSION_CACHE_MAX_ENTRIES", 1024)
	v.SetDefault("MANUAL_EDIT_MODE", "version")
}

func fromViper(v *viper.Viper) (*Config, error) {
	env := firstNonEmpty(strings.TrimSpace(v.GetString("APP_ENV")), "local")
	cfg := &Config{
		Port:           normalizePort(v.GetString("PORT")),
		Env:            env,
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		SQLitePath:     strings.TrimSpace(v.GetString("SQLITE_PATH")),
		FrontendURL:    strings.TrimSpace(v.GetString("FRONTEND_URL")),
		ManualEditMode: strings.TrimSpace(v.GetString("MANUAL_EDIT_MODE")),
		LLM: LLMConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
			APIKey:          firstNonEmpty(strings.TrimSpace(v.GetString("GEMINI_API_KEY")), strings.TrimSpace(v.GetString("GOOGLE_API_KEY"))),
			Model:           strings.TrimSpace(v.GetString("AI_MODEL")),
			MaxTokens:       v.GetInt("AI_MAX_TOKENS"),
			ChatMaxTokens:   v.GetInt("AI_CHAT_MAX_TOKENS"),
			UsageLedgerPath: strings.TrimSpace(v.GetString("USAGE_LEDGER_PATH")),
		},
		Auth: AuthConfig{
			Tokens: strings.TrimSpace(v.GetString("AUTH_TOKENS")),
		},
		RateLimit: RateLimitConfig{
			Window:      time.Duration(v.GetInt64("RATE_LIMIT_WINDOW_MS")) * time.Millisecond,
			MaxRequests: v.GetInt("RATE_LIMIT_MAX_REQUESTS"),
		},
		Cache: CacheConfig{
			TTL:        v.GetDuration("SESSION_CACHE_TTL"),
			MaxEntries: v.GetInt("SESSION_CACHE_MAX_ENTRIES"),
		},
		Artifact: loadArtifactConfig(v, env),
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
		if cfg.LLM.APIKey == "" && cfg.IsLocal() {
			cfg.LLM.Provider = "fake"
		}
	}
	if cfg.IsLocal() {
		applyLocal(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.APIKey == "" {
			return errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case "fake":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.Auth.Tokens == "" && !c.Auth.AllowAnonymous {
		return errors.New("AUTH_TOKENS is required outside the local profile")
	}
	return nil
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func loadArtifactConfig(v *viper.Viper, env string) ArtifactConfig {
	endpoint := strings.TrimSpace(v.GetString("ARTIFACT_S3_ENDPOINT"))
	if strings.EqualFold(env, "local") {
		endpoint = firstNonEmpty(strings.TrimSpace(v.GetString("ARTIFACT_MINIO_ENDPOINT")), endpoint)
	}
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(v.GetString("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(v.GetString("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(v.GetString("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(v.GetString("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(v.GetString("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(v.GetString("ARTIFACT_S3_BUCKET")), "uigen-bundles"),
		UseSSL:    resolveArtifactUseSSL(v, env),
	}
}

func resolveArtifactUseSSL(v *viper.Viper, env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	if !v.IsSet("ARTIFACT_S3_USE_SSL") {
		return true
	}
	return v.GetBool("ARTIFACT_S3_USE_SSL")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CanUseS3 reports whether the bundle store can reach an S3 endpoint.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled &&
		strings.TrimSpace(a.Endpoint) != "" &&
		strings.TrimSpace(a.AccessKey) != "" &&
		strings.TrimSpace(a.SecretKey) != "" &&
		strings.TrimSpace(a.Bucket) != ""
}
