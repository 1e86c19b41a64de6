package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はクライアント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	APIBaseURL string
	WSBaseURL  string

	// Local store
	DatabasePath string

	// Feed
	PageSize int

	// Gateway
	RequestTimeout    time.Duration
	RequestsPerSecond int

	// Realtime
	ReconnectDelay time.Duration
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = os.Getenv("DEVRADAR_API_BASE_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "DEVRADAR_API_BASE_URL")
	}

	cfg.WSBaseURL = os.Getenv("DEVRADAR_WS_BASE_URL")
	if cfg.WSBaseURL == "" {
		missing = append(missing, "DEVRADAR_WS_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabasePath = getEnvString("DEVRADAR_DB_PATH", "devradar.db")
	cfg.PageSize = getEnvInt("DEVRADAR_PAGE_SIZE", 20)
	cfg.RequestTimeout = getEnvDuration("DEVRADAR_REQUEST_TIMEOUT", 10*time.Second)
	cfg.RequestsPerSecond = getEnvInt("DEVRADAR_REQUESTS_PER_SECOND", 5)
	cfg.ReconnectDelay = getEnvDuration("DEVRADAR_RECONNECT_DELAY", 3*time.Second)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
