// Package config loads runtime configuration from defaults, an optional
// dotenv/yaml file and the environment, in increasing order of precedence.
//
// Every key has a default registered with SetDefault. viper only resolves
// environment variables for keys it already knows about, so a key without a
// default would silently ignore its env var during Unmarshal.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments accepted by APP_ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvLocal       = "local"
)

// DevJWTSecret is the out-of-the-box signing secret. It is fine for local
// work and rejected by Validate in production.
const DevJWTSecret = "dev-secret-change-me-in-production"

// Dummy OAuth client credentials used when APP_ENV=testing.
const (
	TestGitHubClientID     = "test_github_client_id"
	TestGitHubClientSecret = "test_github_client_secret"
	TestGoogleClientID     = "test_google_client_id"
	TestGoogleClientSecret = "test_google_client_secret"
)

type Config struct {
	AppEnv      string `mapstructure:"APP_ENV"`
	Port        int    `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTAlgorithm  string        `mapstructure:"JWT_ALGORITHM"`
	JWTExpiration time.Duration `mapstructure:"JWT_EXPIRATION"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`

	// PublicBaseURL is where this API is reachable from a browser; OAuth
	// callback URLs are derived from it.
	PublicBaseURL      string   `mapstructure:"PUBLIC_BASE_URL"`
	FrontendURL        string   `mapstructure:"FRONTEND_URL"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DBRetryMaxAttempts uint          `mapstructure:"DB_RETRY_MAX_ATTEMPTS"`
	DBRetryBaseDelay   time.Duration `mapstructure:"DB_RETRY_BASE_DELAY"`

	TitlePrefixLength int `mapstructure:"TITLE_PREFIX_LENGTH"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvLocal)
	v.SetDefault("PORT", 8000)
	v.SetDefault("DATABASE_URL", "sqlite://data/category_note.db")

	v.SetDefault("JWT_SECRET", DevJWTSecret)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_EXPIRATION", time.Hour)

	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")

	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("DB_RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("DB_RETRY_BASE_DELAY", 200*time.Millisecond)

	v.SetDefault("TITLE_PREFIX_LENGTH", 50)
}

// Load builds a Config. If path is empty, ".env.<APP_ENV>" and then ".env"
// in the working directory are tried; a missing file is not an error.
// Environment variables always win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path == "" {
		path = discoverEnvFile(v.GetString("APP_ENV"))
	}
	if path != "" {
		v.SetConfigFile(path)
		if isDotenv(path) {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func discoverEnvFile(appEnv string) string {
	candidates := []string{".env"}
	if appEnv != "" {
		candidates = append([]string{".env." + strings.ToLower(appEnv)}, candidates...)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func isDotenv(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || strings.HasPrefix(base, ".env.") || filepath.Ext(base) == ".env"
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(c.JWTAlgorithm))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")

	if c.AppEnv == EnvTesting {
		c.GitHubClientID = TestGitHubClientID
		c.GitHubClientSecret = TestGitHubClientSecret
		c.GoogleClientID = TestGoogleClientID
		c.GoogleClientSecret = TestGoogleClientSecret
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.AppEnv {
	case EnvProduction, EnvDevelopment, EnvTesting, EnvLocal:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of production, development, testing, local", c.AppEnv))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed from the development default in production"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}
	if c.JWTExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}

	if c.DBRetryMaxAttempts == 0 {
		errs = append(errs, errors.New("DB_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.TitlePrefixLength <= 0 {
		errs = append(errs, errors.New("TITLE_PREFIX_LENGTH must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == EnvProduction }
func (c *Config) IsTesting() bool    { return c.AppEnv == EnvTesting }

// CallbackURL is the redirect URI registered with the given provider.
func (c *Config) CallbackURL(provider string) string {
	return c.PublicBaseURL + "/auth/callback/" + provider
}
