package util

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv loads .env.<env> first and then .env; values already present in the
// process environment are never overridden.
func LoadEnv(env string) error {
	var loaded bool
	for _, name := range []string{fmt.Sprintf(".env.%s", env), ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		loaded = true
	}
	if !loaded {
		return fmt.Errorf("no env file found for %q", env)
	}
	return nil
}

func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvDefault returns the value of key or fallback when unset.
func GetEnvDefault(key, fallback string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return fallback
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetBoolEnv(key string) bool {
	v, err := ParseYesNo(GetEnv(key))
	if err != nil {
		return false
	}
	return v
}

// GetDurationEnv accepts Go durations ("10s") or a bare number of seconds.
func GetDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := GetEnv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := cast.ToInt64E(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
