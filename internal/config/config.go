package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"matchastock/internal/fetch"
)

type Config struct {
	Port         string
	DBDSN        string
	LogLevel     string
	LogFile      string
	SitesFile    string
	TemplatesDir string

	UnsubscribeSecret string
	BaseURL           string

	FetchTimeout   time.Duration
	FetchMinDelay  time.Duration
	FetchMaxDelay  time.Duration
	FetchRetries   int
	FetchUserAgent string
	MaxPages       int

	ScrapeInterval    time.Duration
	ScrapeConcurrency int
	ScrapeOnStart     bool

	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string
	KafkaTopic    string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:         getenv("PORT", "8080"),
		DBDSN:        getenv("DB_DSN", "matchastock.db"), // sqlite file in project root
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFile:      getenv("LOG_FILE", ""),
		SitesFile:    getenv("SITES_FILE", "./sites.yaml"),
		TemplatesDir: getenv("TEMPLATES_DIR", "./web/templates"),

		UnsubscribeSecret: getenv("UNSUBSCRIBE_SECRET", "matcha-stock-default-secret"),
		BaseURL:           strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),

		FetchTimeout:   getenvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchMinDelay:  getenvDuration("FETCH_MIN_DELAY", 2*time.Second),
		FetchMaxDelay:  getenvDuration("FETCH_MAX_DELAY", 4*time.Second),
		FetchRetries:   getenvInt("FETCH_RETRIES", 2),
		FetchUserAgent: getenv("FETCH_USER_AGENT", fetch.DefaultUserAgent),
		MaxPages:       getenvInt("MAX_PAGES", 10),

		ScrapeInterval:    getenvDuration("SCRAPE_INTERVAL", time.Hour),
		ScrapeConcurrency: getenvInt("SCRAPE_CONCURRENCY", 4),
		ScrapeOnStart:     getenvBool("SCRAPE_ON_START", true),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		KafkaBrokers:  splitList(getenv("KAFKA_BROKERS", "")),
		KafkaTopic:    getenv("KAFKA_TOPIC", "matchastock.notifications"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
