package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-derived broker configuration. The process
// refuses to start without client credentials and a database URL.
type Config struct {
	ClientID     string `env:"UPWORK_CLIENT_ID"`
	ClientSecret string `env:"UPWORK_CLIENT_SECRET"`
	RedirectURI  string `env:"UPWORK_REDIRECT_URI" envDefault:"http://localhost:3000/upwork/callback"`
	AuthURL      string `env:"UPWORK_AUTH_URL"`
	TokenURL     string `env:"UPWORK_TOKEN_URL"`

	DatabaseURL string `env:"DATABASE_URL"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":3000"`

	TokenRequestTimeout time.Duration `env:"TOKEN_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Debug               bool          `env:"DEBUG" envDefault:"false"`
}

// Load parses configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	missing := []string{}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "UPWORK_CLIENT_ID")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "UPWORK_CLIENT_SECRET")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// The methods below satisfy the go-persistence-bun config contract so the
// same struct drives the database client.

func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetDriver() string {
	return "postgres"
}

func (c Config) GetServer() string {
	return c.DatabaseURL
}

func (c Config) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c Config) GetOtelIdentifier() string {
	return "upwork-oauth-broker"
}
