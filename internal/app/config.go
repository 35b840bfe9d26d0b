package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the service configuration, loadable from environment
// variables (COUPONS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	EcommerceURL string        `usage:"Base URL of the e-commerce API (COUPONS_ECOMMERCE_URL)" flag:"ecommerce-url"`
	LMSURL       string        `usage:"Base URL of the LMS, used for credit providers" flag:"lms-url"`
	PlatformName string        `default:"edX" usage:"Platform name shown on receipts" flag:"platform-name"`
	PartnerID    int           `default:"0" usage:"Site partner named on coupon details, 0 to skip" flag:"partner-id"`
	CSRFCookie   string        `default:"ecommerce_csrftoken" usage:"Cookie holding the e-commerce CSRF token" flag:"csrf-cookie"`
	HTTPTimeout  time.Duration `default:"10s" usage:"Timeout of upstream requests" flag:"http-timeout"`
	Offers       OffersConfig
	Retry        RetryConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// OffersConfig controls the offer listing.
type OffersConfig struct {
	PageSize int `default:"6" usage:"Offers per listing page"`
}

// RetryConfig controls retries of upstream reads that answer 404, e.g. an
// order that is not placed yet when the receipt page loads.
type RetryConfig struct {
	Times int           `default:"5"  usage:"Retries after the first attempt"`
	Delay time.Duration `default:"2s" usage:"Delay between attempts"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow the browser session cookie" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env when present, then environment variables and YAML
// config files.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COUPONS",
		Files:     []string{"config.yaml", "/etc/coupons/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch {
	case c.EcommerceURL == "":
		return errors.New("e-commerce URL is required: set COUPONS_ECOMMERCE_URL")
	case c.Offers.PageSize < 1:
		return errors.Errorf("offers page size must be positive, got %d", c.Offers.PageSize)
	case c.Retry.Times < 0:
		return errors.Errorf("retry times must not be negative, got %d", c.Retry.Times)
	}
	return nil
}

// applyPlatformDefaults honours the PORT variable set by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
