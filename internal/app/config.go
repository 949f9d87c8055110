package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (KHANA_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	MongoURI      string `usage:"MongoDB connection URI (KHANA_MONGO_URI or MONGO_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"khana" usage:"MongoDB database name" flag:"mongo-database"`
	AMQPURL       string `default:"" usage:"RabbitMQ URL for push notifications; empty disables the broker" flag:"amqp-url"`
	JWTSecret     string `usage:"HMAC secret verifying bearer tokens (KHANA_JWT_SECRET)" flag:"jwt-secret"`

	// CartBackend selects where cart state lives: "remote" keeps it in the
	// document store, "memory" keeps it in-process with snapshot persistence.
	CartBackend string `default:"remote" usage:"Cart backend: remote or memory" flag:"cart-backend"`

	DeliveryCharge string        `default:"100" usage:"Flat delivery charge added to every order" flag:"delivery-charge"`
	PlaceTimeout   time.Duration `default:"10s" usage:"Order persistence deadline during checkout" flag:"place-timeout"`

	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// DeliveryChargeAmount parses the configured flat charge.
func (c *Config) DeliveryChargeAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.DeliveryCharge)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse delivery charge %q", c.DeliveryCharge)
	}
	return d, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform-provided defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KHANA",
		Files:     []string{"config.yaml", "/etc/khana/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.MongoURI == "" {
		return nil, errors.New("mongo URI is required: set KHANA_MONGO_URI or MONGO_URI")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set KHANA_JWT_SECRET")
	}
	if cfg.CartBackend != "remote" && cfg.CartBackend != "memory" {
		return nil, errors.Errorf("unknown cart backend %q", cfg.CartBackend)
	}
	if _, err := cfg.DeliveryChargeAmount(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like MONGO_URI and PORT
// to the KHANA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.MongoURI == "" {
		if v := os.Getenv("MONGO_URI"); v != "" {
			c.MongoURI = v
		}
	}
	if c.AMQPURL == "" {
		if v := os.Getenv("AMQP_URL"); v != "" {
			c.AMQPURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
