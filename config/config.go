// Package config loads the bridge's process-wide settings once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	// DefaultContractID is the salary contract deployed on testnet.
	DefaultContractID = "CDXYPMRADZYRBUI2GNYICZBS7H6GJLX7BI3DI4HCUG2YISRR3NTLL4R4"

	// DefaultSourceAccount is the CLI identity that signs admin calls.
	DefaultSourceAccount = "alice"

	// DefaultNetwork is the network name passed to the CLI.
	DefaultNetwork = "testnet"
)

// Config is built once by Load and shared read-only by every handler.
type Config struct {
	Port int `env:"PORT,default=3000"`

	ContractID    string `env:"CONTRACT_ID,default=CDXYPMRADZYRBUI2GNYICZBS7H6GJLX7BI3DI4HCUG2YISRR3NTLL4R4"`
	SourceAccount string `env:"SOURCE_ACCOUNT,default=alice"`
	Network       string `env:"NETWORK,default=testnet"`
	StellarBin    string `env:"STELLAR_BIN,default=stellar"`

	// CLITimeout bounds a single CLI invocation. Zero means wait forever.
	CLITimeout time.Duration `env:"CLI_TIMEOUT,default=0s"`

	// PayConcurrency is the number of pay_salary invocations a bulk payment
	// may run at once. 1 keeps them strictly sequential.
	PayConcurrency int `env:"PAY_CONCURRENCY,default=1"`

	FrontendPath string `env:"FRONTEND_PATH,default=web/index.html"`

	RedisAddr string `env:"REDIS_ADDR"`
	DBURL     string `env:"DB_URL"`

	RateLimitRPS   int    `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int    `env:"RATE_LIMIT_BURST,default=10"`
	CORSOrigins    string `env:"CORS_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the bridge cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ContractID) == "":
		return errors.New("config: CONTRACT_ID must not be empty")
	case strings.TrimSpace(c.SourceAccount) == "":
		return errors.New("config: SOURCE_ACCOUNT must not be empty")
	case strings.TrimSpace(c.Network) == "":
		return errors.New("config: NETWORK must not be empty")
	case strings.TrimSpace(c.StellarBin) == "":
		return errors.New("config: STELLAR_BIN must not be empty")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.PayConcurrency < 1:
		return fmt.Errorf("config: PAY_CONCURRENCY must be at least 1, got %d", c.PayConcurrency)
	case c.CLITimeout < 0:
		return fmt.Errorf("config: CLI_TIMEOUT must not be negative, got %s", c.CLITimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
