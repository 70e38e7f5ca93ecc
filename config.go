package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config is everything the auth core needs from its environment
type Config struct {
	Addr      string `env:"AUTH_ADDR" envDefault:":26000"`
	LogFormat string `env:"AUTH_LOG_FORMAT" envDefault:"text"`

	JWTSecret       string        `env:"AUTH_JWT_SECRET,required"`
	JWTIssuer       string        `env:"AUTH_JWT_ISSUER" envDefault:"authcore"`
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"168h"`
	PasswordCost    int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	SessionLifetime time.Duration `env:"AUTH_SESSION_LIFETIME" envDefault:"10m"`

	// AllowedCORSOrigins lists browser origins allowed to call the API.
	// Patterns may hold one wildcard, e.g. "https://*.example.com". Empty disables CORS.
	AllowedCORSOrigins []string `env:"AUTH_ALLOWED_CORS_ORIGINS" envSeparator:","`

	// Store selects the account store: fs, sqlite or datastore
	Store              string `env:"AUTH_STORE" envDefault:"fs"`
	StorePath          string `env:"AUTH_STORE_PATH" envDefault:"./data"`
	DatastoreProject   string `env:"AUTH_DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"AUTH_DATASTORE_NAMESPACE"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	AppleClientID string `env:"APPLE_CLIENT_ID"`
}

// LoadConfig reads an optional .env file and then the process environment.
// Values already in the environment win over the file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine, the environment may be complete on its own
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL must be positive"))
	}
	if c.PasswordCost < bcrypt.MinCost || c.PasswordCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.Store {
	case "fs", "sqlite":
	case "datastore":
		if c.DatastoreProject == "" {
			errs = append(errs, errors.New("AUTH_DATASTORE_PROJECT is required for the datastore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_STORE %q", c.Store))
	}
	if c.GoogleClientID != "" && c.GoogleCallbackURL == "" {
		errs = append(errs, errors.New("GOOGLE_CALLBACK_URL is required when Google sign-in is configured"))
	}
	return errors.Join(errs...)
}

// Capabilities computes which optional providers are configured
func (c *Config) Capabilities() Capabilities {
	return NewCapabilities(
		c.GoogleClientID != "" && c.GoogleClientSecret != "",
		c.AppleClientID != "",
	)
}

// TokenConfig derives the token issuer settings
func (c *Config) TokenConfig() TokenConfig {
	return TokenConfig{
		Secret:   []byte(c.JWTSecret),
		Lifetime: c.AccessTokenTTL,
		Issuer:   c.JWTIssuer,
	}
}

// Capabilities records which federated providers are enabled.
// It is computed once at startup and is immutable afterwards.
type Capabilities struct {
	google bool
	apple  bool
}

// NewCapabilities builds a capability set
func NewCapabilities(google, apple bool) Capabilities {
	return Capabilities{google: google, apple: apple}
}

// Google returns true if Google sign-in is configured
func (c Capabilities) Google() bool { return c.google }

// Apple returns true if Sign in with Apple is configured
func (c Capabilities) Apple() bool { return c.apple }

// Enabled reports whether logins through p are accepted. Local is always enabled.
func (c Capabilities) Enabled(p Provider) bool {
	switch p {
	case ProviderLocal:
		return true
	case ProviderGoogle:
		return c.google
	case ProviderApple:
		return c.apple
	default:
		return false
	}
}

// Providers lists the enabled providers
func (c Capabilities) Providers() []Provider {
	out := []Provider{ProviderLocal}
	if c.google {
		out = append(out, ProviderGoogle)
	}
	if c.apple {
		out = append(out, ProviderApple)
	}
	return out
}
