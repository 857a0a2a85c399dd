// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/logging"
	"github.com/warp/contract-engine/partner"
	"github.com/warp/contract-engine/reconcile"
)

// Config is the full server configuration.
type Config struct {
	Addr   string `env:"CONTRACTS_ADDR"    envDefault:":8080"`
	DBPath string `env:"CONTRACTS_DB_PATH" envDefault:"contracts.db"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	PartnerBaseURL          string        `env:"PARTNER_BASE_URL"`
	PartnerTimeout          time.Duration `env:"PARTNER_TIMEOUT"           envDefault:"30s"`
	PartnerMaxRetries       int           `env:"PARTNER_MAX_RETRIES"       envDefault:"3"`
	PartnerRetryDelay       time.Duration `env:"PARTNER_RETRY_DELAY"       envDefault:"1s"`
	PartnerBreakerThreshold int           `env:"PARTNER_BREAKER_THRESHOLD" envDefault:"5"`
	PartnerBreakerTimeout   time.Duration `env:"PARTNER_BREAKER_TIMEOUT"   envDefault:"30s"`

	ReconcileTaxRate            string `env:"RECONCILE_TAX_RATE"            envDefault:"0.10"`
	ReconcileThousandsSeparator string `env:"RECONCILE_THOUSANDS_SEPARATOR" envDefault:"."`
	ReconcileLocale             string `env:"RECONCILE_LOCALE"              envDefault:"vi"`
	ReconcileTolerance          string `env:"RECONCILE_TOLERANCE"           envDefault:"0.01"`

	// RateSchedulePath optionally points to a JSON rate schedule that
	// replaces the built-in tables.
	RateSchedulePath string `env:"RATE_SCHEDULE_PATH"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Locale(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	return lc
}

// Partner returns the partner client configuration.
func (c Config) Partner() partner.Config {
	return partner.Config{
		BaseURL:                 c.PartnerBaseURL,
		Timeout:                 c.PartnerTimeout,
		MaxRetries:              c.PartnerMaxRetries,
		RetryDelay:              c.PartnerRetryDelay,
		CircuitBreakerThreshold: c.PartnerBreakerThreshold,
		CircuitBreakerTimeout:   c.PartnerBreakerTimeout,
	}
}

// Locale returns the reconciliation locale: the default report format with
// the configured numeric settings.
func (c Config) Locale() (reconcile.Locale, error) {
	loc := reconcile.DefaultLocale()

	tax, err := decimal.NewFromString(c.ReconcileTaxRate)
	if err != nil {
		return reconcile.Locale{}, fmt.Errorf("RECONCILE_TAX_RATE: %w", err)
	}
	tol, err := decimal.NewFromString(c.ReconcileTolerance)
	if err != nil {
		return reconcile.Locale{}, fmt.Errorf("RECONCILE_TOLERANCE: %w", err)
	}

	loc.TaxRate = tax
	loc.Tolerance = tol
	loc.ThousandsSeparator = c.ReconcileThousandsSeparator
	loc.Language = c.ReconcileLocale
	if err := loc.Validate(); err != nil {
		return reconcile.Locale{}, err
	}
	return loc, nil
}
