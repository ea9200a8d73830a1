package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis    RedisConfig
	Telegram TelegramConfig
	Engine   EngineConfig

	// BootstrapAdmins are granted the owner role on startup.
	BootstrapAdmins []int64
	SchedulerEnable bool

	// SchedulerInterval is the pause between scheduler runs.
	SchedulerInterval time.Duration
	// SchedulerJobs limits which jobs run; empty means all of them.
	SchedulerJobs     []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type TelegramConfig struct {
	Token         string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	PollTimeout   int
	Debug         bool
}

type EngineConfig struct {
	Workers   int
	QueueSize int
	// HandleTimeout bounds a single inbound event.
	HandleTimeout time.Duration
}

const (
	TelegramModePolling = "polling"
	TelegramModeWebhook = "webhook"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "animegate"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "animegate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Telegram: TelegramConfig{
			Token:         strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			Mode:          normalizeTelegramMode(getenv("TELEGRAM_MODE", TelegramModePolling)),
			WebhookURL:    strings.TrimSpace(getenv("TELEGRAM_WEBHOOK_URL", "")),
			WebhookSecret: strings.TrimSpace(getenv("TELEGRAM_WEBHOOK_SECRET", "")),
			PollTimeout:   int(getenvInt64("TELEGRAM_POLL_TIMEOUT", 60)),
			Debug:         getenvBool("TELEGRAM_DEBUG", false),
		},
		Engine: EngineConfig{
			Workers:       int(getenvInt64("ENGINE_WORKERS", 8)),
			QueueSize:     int(getenvInt64("ENGINE_QUEUE_SIZE", 64)),
			HandleTimeout: time.Duration(getenvInt64("ENGINE_HANDLE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		BootstrapAdmins:   parseIDs(getenv("BOOTSTRAP_ADMINS", "")),
		SchedulerEnable:   getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: time.Duration(getenvInt64("SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second,
		SchedulerJobs:     parseList(getenv("SCHEDULER_JOBS", "")),
	}

	return cfg
}

// IsWebhook reports whether updates arrive over the HTTP webhook.
func (c Config) IsWebhook() bool {
	return c.Telegram.Mode == TelegramModeWebhook
}

func normalizeTelegramMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case TelegramModeWebhook:
		return TelegramModeWebhook
	default:
		return TelegramModePolling
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseIDs(raw string) []int64 {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}

func parseList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
