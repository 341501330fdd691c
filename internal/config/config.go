package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"

	ProviderLocal    = "local"
	ProviderFirebase = "firebase"
)

type Config struct {
	DatabaseURL  string `env:"DATABASE_URL" envDefault:"progress-widgets.db"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sql"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	Port         string `env:"PORT" envDefault:"8080"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DebugSQL     bool   `env:"DEBUG_SQL"`

	AuthProvider string        `env:"AUTH_PROVIDER" envDefault:"local"`
	MagicLinkTTL time.Duration `env:"MAGIC_LINK_TTL" envDefault:"15m"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`
	FirebaseProjectID   string `env:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey      string `env:"FIREBASE_API_KEY"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`

	EmbedViewTimeout time.Duration `env:"EMBED_VIEW_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQL, BackendFirestore:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", BackendSQL, BackendFirestore)
	}
	switch c.AuthProvider {
	case ProviderLocal:
	case ProviderFirebase:
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for the firebase auth provider")
		}
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q", ProviderLocal, ProviderFirebase)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.MagicLinkTTL <= 0 {
		return fmt.Errorf("MAGIC_LINK_TTL must be positive")
	}
	return nil
}

// UsesFirebase reports whether a Firebase app is needed.
func (c *Config) UsesFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.AuthProvider == ProviderFirebase
}

// CompleteURL is where magic links send the user back to.
func (c *Config) CompleteURL() string {
	return c.BaseURL + "/auth/complete"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}
