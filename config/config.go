package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrGatewayNotConfigured is returned when PAYMENT_GATEWAY_TOKEN is missing.
var ErrGatewayNotConfigured = errors.New("payment gateway not configured: PAYMENT_GATEWAY_TOKEN is not set")

// Config holds every tunable value of the service. It is built once at startup
// and handed to the services that need it.
type Config struct {
	Port    string
	GinMode string

	// Payment gateway
	GatewayBaseURL   string
	GatewayUserToken string
	GatewayTimeout   time.Duration
	PublicBaseURL    string

	// Status reconciliation
	PollInterval    time.Duration
	PollMaxAttempts int
	LedgerTTL       time.Duration

	// Vehicle registry
	VehiclePrimaryURL  string
	VehicleFallbackURL string
	VehicleTimeout     time.Duration

	// Unlock token issued after a confirmed payment
	UnlockTokenSecret []byte
	UnlockTokenTTL    time.Duration

	CORSAllowedOrigins   []string
	PaymentRatePerMinute int
}

// LoadDotEnv loads a .env file when present. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		GinMode:              os.Getenv("GIN_MODE"),
		GatewayBaseURL:       strings.TrimRight(getEnv("PAYMENT_GATEWAY_URL", "https://pay.knief.xyz"), "/"),
		GatewayUserToken:     strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_TOKEN")),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		VehiclePrimaryURL:    getEnv("VEHICLE_PRIMARY_URL", "https://apex.renewbuyinsurance.com/api/v1/vaahan/registration_number/"),
		VehicleFallbackURL:   getEnv("VEHICLE_FALLBACK_URL", "https://apex.renewbuyinsurance.com/cv/api/v1/vaahan/registration_number/"),
		UnlockTokenSecret:    []byte(os.Getenv("UNLOCK_TOKEN_SECRET")),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		GatewayTimeout:       8 * time.Second,
		VehicleTimeout:       10 * time.Second,
		PollInterval:         3 * time.Second,
		PollMaxAttempts:      20,
		LedgerTTL:            2 * time.Hour,
		UnlockTokenTTL:       15 * time.Minute,
		PaymentRatePerMinute: 10,
	}

	var err error
	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", cfg.GatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.VehicleTimeout, err = getDuration("VEHICLE_TIMEOUT", cfg.VehicleTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.LedgerTTL, err = getDuration("LEDGER_TTL", cfg.LedgerTTL); err != nil {
		return nil, err
	}
	if cfg.UnlockTokenTTL, err = getDuration("UNLOCK_TOKEN_TTL", cfg.UnlockTokenTTL); err != nil {
		return nil, err
	}
	if cfg.PollMaxAttempts, err = getInt("POLL_MAX_ATTEMPTS", cfg.PollMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.PaymentRatePerMinute, err = getInt("PAYMENT_RATE_PER_MINUTE", cfg.PaymentRatePerMinute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if c.GatewayUserToken == "" {
		return ErrGatewayNotConfigured
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1, got %d", c.PollMaxAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.GatewayTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
