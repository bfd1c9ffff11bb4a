package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration. It is built once at startup and
// injected everywhere; nothing reads the environment after Load returns.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	LogFormat   string
	HTTPAddr    string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	QuoteCacheTTL time.Duration

	// Providers lists the insurer ids quoted by default, in the order
	// their quotes are returned.
	Providers    []string
	QuoteTimeout time.Duration

	Balcia  BalciaConfig
	Balta   BaltaConfig
	Ergo    ErgoConfig
	Gateway GatewayConfig

	SweepInterval  time.Duration
	SweepMinAge    time.Duration
	SweepBatchSize int
}

// BalciaConfig carries credentials for the token-authenticated REST API.
type BalciaConfig struct {
	URL      string
	Username string
	Password string
}

// BaltaConfig carries the endpoint and client certificate pair for the
// mutual-TLS SOAP API.
type BaltaConfig struct {
	URL      string
	CertFile string
	KeyFile  string
}

// ErgoConfig carries credentials for the session-key SOAP API.
type ErgoConfig struct {
	URL      string
	Username string
	Password string
}

// GatewayConfig carries the payment processor account.
type GatewayConfig struct {
	BaseURL     string
	Username    string
	Secret      string
	AccountName string
	CustomerURL string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "octasure"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "octasure"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		QuoteCacheTTL: getenvDuration("QUOTE_CACHE_TTL", 2*time.Minute),

		Providers:    getenvList("INSURANCE_PROVIDERS", []string{"balcia", "balta", "ergo"}),
		QuoteTimeout: getenvDuration("QUOTE_TIMEOUT", 10*time.Second),
		Balcia: BalciaConfig{
			URL:      getenv("BALCIA_URL", ""),
			Username: getenv("BALCIA_USER", ""),
			Password: getenv("BALCIA_PASSWORD", ""),
		},
		Balta: BaltaConfig{
			URL:      getenv("BALTA_API_URL", ""),
			CertFile: getenv("BALTA_CERT_FILE", "certs/balta.crt"),
			KeyFile:  getenv("BALTA_KEY_FILE", "certs/balta.key"),
		},
		Ergo: ErgoConfig{
			URL:      getenv("ERGO_URL", ""),
			Username: getenv("ERGO_USER", ""),
			Password: getenv("ERGO_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:     getenv("SEB_API_URL", ""),
			Username:    getenv("SEB_API_USERNAME", ""),
			Secret:      getenv("SEB_API_SECRET", ""),
			AccountName: getenv("SEB_ACCOUNT_NAME", ""),
			CustomerURL: getenv("SEB_CUSTOMER_URL", ""),
		},
		SweepInterval:  getenvDuration("SWEEP_INTERVAL", time.Minute),
		SweepMinAge:    getenvDuration("SWEEP_MIN_AGE", 15*time.Minute),
		SweepBatchSize: getenvInt("SWEEP_BATCH_SIZE", 50),
	}
}

var Module = fx.Module("config", fx.Provide(Load))

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
