package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	PostgresURL    string
	RedisAddr      string
	KafkaBrokers   []string
	MigrationsPath string
	LogLevel       slog.Level

	JWTSecret string

	CatalogURL      string
	CatalogAPIKey   string
	CatalogCacheTTL time.Duration

	PaymentURL             string
	PaymentAPIKey          string
	PaymentMerchantAccount string
	SellerMerchantAccount  string

	StorefrontURL   string
	EmailServiceURL string
}

// Load reads an optional .env file and then the environment. Values already
// set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:           getenv("PORT", "8080"),
		PostgresURL:    getenv("POSTGRES_URL", ""),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		KafkaBrokers:   splitCSV(getenv("KAFKA_BROKERS", "")),
		MigrationsPath: getenv("MIGRATIONS_PATH", "file://migrations"),
		LogLevel:       parseLevel(getenv("LOG_LEVEL", "info")),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),

		CatalogURL:      getenv("CATALOG_URL", ""),
		CatalogAPIKey:   getEnvFromFile("CATALOG_API_KEY_FILE", "CATALOG_API_KEY", ""),
		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		PaymentURL:             getenv("PAYMENT_URL", ""),
		PaymentAPIKey:          getEnvFromFile("PAYMENT_API_KEY_FILE", "PAYMENT_API_KEY", ""),
		PaymentMerchantAccount: getenv("PAYMENT_MERCHANT_ACCOUNT", ""),
		SellerMerchantAccount:  getenv("SELLER_MERCHANT_ACCOUNT", ""),

		StorefrontURL:   getenv("STOREFRONT_URL", "https://thesolesupplier.co.uk"),
		EmailServiceURL: getenv("EMAIL_SERVICE_URL", ""),
	}
}

// NewLogger builds the JSON logger every service writes to stdout.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvFromFile prefers the contents of the file named by fileKey, which
// is how secrets are mounted in containers.
func getEnvFromFile(fileKey, envKey, def string) string {
	if path := os.Getenv(fileKey); path != "" {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getenv(envKey, def)
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
