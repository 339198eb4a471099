package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bakery checkout service.
type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string

	SessionSecret string
	SessionCookie string
	JWTSecret     string

	PesapalBaseURL        string
	PesapalConsumerKey    string
	PesapalConsumerSecret string
	PesapalIPNID          string
	PesapalIPNURL         string
	PesapalCallbackURL    string
	PesapalHTTPTimeout    time.Duration
	PesapalTokenSkew      time.Duration

	StoreName          string
	Currency           string
	CountryISO         string
	TaxRate            decimal.Decimal
	DefaultCountryCode string

	CartTTL           time.Duration
	PendingPaymentTTL time.Duration
	PollInterval      time.Duration
	MaxPollAttempts   int

	CheckoutSNSTopicARN string
	CloudWatchEnabled   bool
	CloudWatchNamespace string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	RequestTimeout     time.Duration
}

// PostgresConfig builds the database connection settings.
func (c *Config) PostgresConfig() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSLMode,
		TimeZone: c.PostgresTimeZone,
	}
}

// LoadConfig reads configuration from the environment (and a .env file when
// present) with optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	p := &envParser{}
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Kampala"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionCookie: getEnv("SESSION_COOKIE", "bakery_session"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		PesapalBaseURL:        getEnv("PESAPAL_BASE_URL", "https://cybqa.pesapal.com/pesapalv3"),
		PesapalConsumerKey:    os.Getenv("PESAPAL_CONSUMER_KEY"),
		PesapalConsumerSecret: os.Getenv("PESAPAL_CONSUMER_SECRET"),
		PesapalIPNID:          os.Getenv("PESAPAL_IPN_ID"),
		PesapalIPNURL:         os.Getenv("PESAPAL_IPN_URL"),
		PesapalCallbackURL:    os.Getenv("PESAPAL_CALLBACK_URL"),
		PesapalHTTPTimeout:    p.getDuration("PESAPAL_HTTP_TIMEOUT", 30*time.Second),
		PesapalTokenSkew:      p.getDuration("PESAPAL_TOKEN_SKEW", 30*time.Second),

		StoreName:          getEnv("STORE_NAME", "Tina's Bakery"),
		Currency:           getEnv("CURRENCY", "UGX"),
		CountryISO:         getEnv("COUNTRY_ISO", "UG"),
		TaxRate:            p.getDecimal("TAX_RATE", "0.18"),
		DefaultCountryCode: strings.TrimPrefix(getEnv("DEFAULT_COUNTRY_CODE", "256"), "+"),

		CartTTL:           p.getDuration("CART_TTL", 7*24*time.Hour),
		PendingPaymentTTL: p.getDuration("PENDING_PAYMENT_TTL", 2*time.Hour),
		PollInterval:      p.getDuration("POLL_INTERVAL", 3*time.Second),
		MaxPollAttempts:   p.getInt("MAX_POLL_ATTEMPTS", 5),

		CheckoutSNSTopicARN: os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		CloudWatchEnabled:   p.getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Bakery/Checkout"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimitRPS:       p.getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     p.getInt("RATE_LIMIT_BURST", 20),
		RequestTimeout:     p.getDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if m, err := sm.GetSecretMap(ctx, "bakery/DB_CREDENTIALS"); err == nil {
		override(&cfg.PostgresUser, m["POSTGRES_USER"])
		override(&cfg.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&cfg.PostgresDB, m["POSTGRES_DB"])
		override(&cfg.PostgresHost, m["POSTGRES_HOST"])
		override(&cfg.PostgresPort, m["POSTGRES_PORT"])
	}
	if m, err := sm.GetSecretMap(ctx, "bakery/PESAPAL"); err == nil {
		override(&cfg.PesapalConsumerKey, m["PESAPAL_CONSUMER_KEY"])
		override(&cfg.PesapalConsumerSecret, m["PESAPAL_CONSUMER_SECRET"])
		override(&cfg.PesapalIPNID, m["PESAPAL_IPN_ID"])
	}
	if m, err := sm.GetSecretMap(ctx, "bakery/APP_SECRETS"); err == nil {
		override(&cfg.SessionSecret, m["SESSION_SECRET"])
		override(&cfg.JWTSecret, m["JWT_SECRET"])
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.PesapalConsumerKey == "" || c.PesapalConsumerSecret == "" {
		return fmt.Errorf("PESAPAL_CONSUMER_KEY and PESAPAL_CONSUMER_SECRET are required")
	}
	if c.PesapalCallbackURL == "" {
		return fmt.Errorf("PESAPAL_CALLBACK_URL is required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.TaxRate.IsNegative() {
		return fmt.Errorf("TAX_RATE must not be negative")
	}
	if c.MaxPollAttempts < 1 {
		return fmt.Errorf("MAX_POLL_ATTEMPTS must be at least 1")
	}
	return nil
}

// envParser records the first malformed value so LoadConfig can report it.
type envParser struct{ err error }

func (p *envParser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
}

func (p *envParser) getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return d
}

func (p *envParser) getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return n
}

func (p *envParser) getFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return f
}

func (p *envParser) getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return b
}

func (p *envParser) getDecimal(key, fallback string) decimal.Decimal {
	val := getEnv(key, fallback)
	d, err := decimal.NewFromString(val)
	if err != nil {
		p.fail(key, val, err)
		return decimal.RequireFromString(fallback)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "/")); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
