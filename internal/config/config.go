// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Content API
	ContentAPIBaseURL string
	AuthToken         string
	APITimeout        time.Duration
	APIRatePerSec     float64
	APIRateBurst      int

	// Database（空の場合はメモリ上のセッションストアを使う）
	DatabaseURL string

	// Pagination
	GridPageSize    int
	PostsPageSize   int
	MaxPostPages    int
	ScrollThreshold float64

	// View（放置されたビューの回収）
	ViewIdleTimeout  time.Duration
	ViewReapInterval time.Duration

	// Asset
	AssetTimeout   time.Duration
	AssetMaxSize   int64
	AssetSSRFGuard bool
	// 空なら公開ホストすべてから画像を取得する
	AssetAllowedHosts []string

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.ContentAPIBaseURL = strings.TrimRight(os.Getenv("CONTENT_API_BASE_URL"), "/")
	if cfg.ContentAPIBaseURL == "" {
		missing = append(missing, "CONTENT_API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.AuthToken = os.Getenv("AUTH_TOKEN")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.APIRatePerSec = getEnvFloat("API_RATE_PER_SEC", 10)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 10)
	cfg.GridPageSize = getEnvPositiveInt("GRID_PAGE_SIZE", 6)
	cfg.PostsPageSize = getEnvPositiveInt("POSTS_PAGE_SIZE", 12)
	cfg.MaxPostPages = getEnvPositiveInt("MAX_POST_PAGES", 12)
	cfg.ScrollThreshold = getEnvFloat("SCROLL_THRESHOLD_PX", 200)
	cfg.ViewIdleTimeout = getEnvDuration("VIEW_IDLE_TIMEOUT", 30*time.Minute)
	cfg.ViewReapInterval = getEnvDuration("VIEW_REAP_INTERVAL", time.Minute)
	cfg.AssetTimeout = getEnvDuration("ASSET_TIMEOUT", 5*time.Second)
	cfg.AssetMaxSize = getEnvInt64("ASSET_MAX_SIZE", 5242880)
	cfg.AssetSSRFGuard = getEnvBool("ASSET_SSRF_GUARD", true)
	cfg.AssetAllowedHosts = getEnvList("ASSET_ALLOWED_HOSTS")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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

// getEnvPositiveInt はページサイズなど0以下を許さない値を読む。
func getEnvPositiveInt(key string, defaultVal int) int {
	if i := getEnvInt(key, defaultVal); i > 0 {
		return i
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。未設定ならnil。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
