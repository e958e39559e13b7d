package config

import (
	"BloodLink/pkg/cache"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/util"
	"log"
	"os"
	"strings"
	"time"
)

const (
	RoleHospital = "hospital"
	RoleBank     = "bank"
	RoleAll      = "all"
)

// config/config.go
type Config struct {
	Role          string `env:"ROLE"`
	Addr          string `env:"ADDR"`
	Mode          string `env:"MODE"`
	APIPrefix     string `env:"API_PREFIX"`
	DataDir       string `env:"DATA_DIR"`
	HospitalID    string `env:"HOSPITAL_ID"`
	BankID        string `env:"BANK_ID"`
	SessionSecret string `env:"SESSION_SECRET"`
	Log           logger.LogConfig
	Mail          notification.MailConfig
	Cache         cache.Config

	// peers polled by the background sync loops
	HospitalURL     string        `env:"HOSPITAL_URL"`
	BankURL         string        `env:"BANK_URL"`
	PollInterval    time.Duration `env:"POLL_INTERVAL"`
	PollTimeout     time.Duration `env:"POLL_TIMEOUT"`
	PollerSeenStore string        `env:"POLLER_SEEN_STORE"`

	SimulatorEnabled  bool   `env:"SIMULATOR_ENABLED"`
	SimulatorSchedule string `env:"SIMULATOR_SCHEDULE"`

	LowStockThreshold int            `env:"LOW_STOCK_THRESHOLD"`
	LowStockOverrides map[string]int `env:"LOW_STOCK_OVERRIDES"`
	NotificationCap   int            `env:"NOTIFICATION_CAP"`
	LowStockLogCap    int            `env:"LOW_STOCK_LOG_CAP"`
	DonorLogCap       int            `env:"DONOR_LOG_CAP"`

	RateLimit   string   `env:"RATE_LIMIT"`
	CORSOrigins []string `env:"CORS_ORIGINS"`
	PeerSecret  string   `env:"PEER_SECRET"`
	GeoIPDB     string   `env:"GEOIP_DB"`

	LLMApiKey  string        `env:"LLM_API_KEY"`
	LLMBaseURL string        `env:"LLM_BASE_URL"`
	LLMModel   string        `env:"LLM_MODEL"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`
}

var GlobalConfig *Config

// Load reads the environment (after .env files) into GlobalConfig and returns it.
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := &Config{
		Role:          strings.ToLower(util.GetEnvDefault("ROLE", RoleAll)),
		Addr:          util.GetEnvDefault("ADDR", ":5002"),
		Mode:          util.GetEnvDefault("MODE", "release"),
		APIPrefix:     util.GetEnvDefault("API_PREFIX", "/api"),
		DataDir:       util.GetEnvDefault("DATA_DIR", "data"),
		HospitalID:    util.GetEnvDefault("HOSPITAL_ID", "99"),
		BankID:        util.GetEnvDefault("BANK_ID", "21"),
		SessionSecret: util.GetEnvDefault("SESSION_SECRET", "bloodlink-dev-secret"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Host:     util.GetEnv("MAIL_HOST"),
			Username: util.GetEnv("MAIL_USERNAME"),
			Password: util.GetEnv("MAIL_PASSWORD"),
			Port:     util.GetIntEnv("MAIL_PORT"),
			From:     util.GetEnv("MAIL_FROM"),
			Timeout:  util.GetDurationEnv("MAIL_TIMEOUT", 10*time.Second),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
				PoolSize: 10,
			},
			Local: cache.LocalConfig{
				MaxSize:           1000,
				DefaultExpiration: 5 * time.Minute,
				CleanupInterval:   10 * time.Minute,
			},
		},
		HospitalURL:       util.GetEnvDefault("HOSPITAL_URL", "http://127.0.0.1:5004"),
		BankURL:           util.GetEnvDefault("BANK_URL", "http://127.0.0.1:5002"),
		PollInterval:      util.GetDurationEnv("POLL_INTERVAL", 10*time.Second),
		PollTimeout:       util.GetDurationEnv("POLL_TIMEOUT", 5*time.Second),
		PollerSeenStore:   util.GetEnvDefault("POLLER_SEEN_STORE", "memory"),
		SimulatorEnabled:  util.GetBoolEnv("SIMULATOR_ENABLED"),
		SimulatorSchedule: util.GetEnvDefault("SIMULATOR_SCHEDULE", "@every 5m"),
		LowStockThreshold: intDefault("LOW_STOCK_THRESHOLD", 5),
		LowStockOverrides: util.ParseOverrides(util.GetEnv("LOW_STOCK_OVERRIDES")),
		NotificationCap:   intDefault("NOTIFICATION_CAP", 20),
		LowStockLogCap:    intDefault("LOW_STOCK_LOG_CAP", 50),
		DonorLogCap:       intDefault("DONOR_LOG_CAP", 20),
		RateLimit:         util.GetEnvDefault("RATE_LIMIT", "300-M"),
		CORSOrigins:       splitList(util.GetEnvDefault("CORS_ORIGINS", "*")),
		PeerSecret:        util.GetEnv("PEER_SECRET"),
		GeoIPDB:           util.GetEnv("GEOIP_DB"),
		LLMApiKey:         util.GetEnv("LLM_API_KEY"),
		LLMBaseURL:        util.GetEnv("LLM_BASE_URL"),
		LLMModel:          util.GetEnvDefault("LLM_MODEL", "gpt-4.1-mini"),
		LLMTimeout:        util.GetDurationEnv("LLM_TIMEOUT", 30*time.Second),
		BackupEnabled:     util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:        util.GetEnvDefault("BACKUP_PATH", "backups"),
		BackupSchedule:    util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),
		MinioEndpoint:     util.GetEnv("MINIO_ENDPOINT"),
		MinioAccessKey:    util.GetEnv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    util.GetEnv("MINIO_SECRET_KEY"),
		MinioBucket:       util.GetEnv("MINIO_BUCKET"),
		MinioUseSSL:       util.GetBoolEnv("MINIO_USE_SSL"),
	}

	GlobalConfig = cfg
	return cfg, nil
}

func intDefault(key string, d int) int {
	if v := int(util.GetIntEnv(key)); v > 0 {
		return v
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

// ServesHospital reports whether the hospital-facing routes and pollers run.
func (c *Config) ServesHospital() bool { return c.Role == RoleHospital || c.Role == RoleAll }

// ServesBank reports whether the bank-facing routes and pollers run.
func (c *Config) ServesBank() bool { return c.Role == RoleBank || c.Role == RoleAll }

// LowStockThresholdFor returns the per-component override or the default threshold.
func (c *Config) LowStockThresholdFor(component string) int {
	if v, ok := c.LowStockOverrides[strings.ToLower(strings.TrimSpace(component))]; ok {
		return v
	}
	return c.LowStockThreshold
}
