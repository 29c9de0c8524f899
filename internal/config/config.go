// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// セッション設定
	SessionSecret  string // セッション署名用の秘密鍵
	CSRFProtection bool   // 状態変更系リクエストで CSRF トークンを検証するか

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// データベース設定
	DatabaseURL string // sqlite://<path> または postgres://...
	DBLogLevel  string // gorm のログレベル (silent, error, warn, info)

	// ログイン試行回数の記録先（空ならプロセス内メモリ）
	LoginAttemptRedisURL string

	// ジョブ/キュー設定
	QueueRedisURL       string // Asynq用Redis接続URL（空なら非同期処理を無効化）
	JobExpireMinutes    int    // ジョブ記録の有効期限（分）
	PurgeAsyncThreshold int    // 完了済みTODOがこの件数を超えたら非同期で削除する
	WorkerConcurrency   int    // Asynq ワーカーの並列数
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	ginMode := getEnv("GIN_MODE", "debug")

	config := &Config{
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		CSRFProtection: getEnvAsBool("CSRF_PROTECTION", ginMode == "release"),

		Port:    getEnv("PORT", "8080"),
		GinMode: ginMode,

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8080"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./todosapp.db"),
		DBLogLevel:  getEnv("DB_LOG_LEVEL", "warn"),

		LoginAttemptRedisURL: getEnv("LOGIN_ATTEMPT_REDIS_URL", ""),

		QueueRedisURL:       getEnv("QUEUE_REDIS_URL", ""),
		JobExpireMinutes:    getEnvAsInt("JOB_EXPIRE_MINUTES", 10),
		PurgeAsyncThreshold: getEnvAsInt("PURGE_ASYNC_THRESHOLD", 100),
		WorkerConcurrency:   getEnvAsInt("WORKER_CONCURRENCY", 2),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with sqlite:// or postgres://")
	}

	// ローカル開発ではセッション鍵は任意（起動時に開発用の鍵を使う）
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes in release mode")
		}
	}

	return nil
}

// JobsEnabled は非同期ジョブ用の Redis が設定されているかを返します。
func (c *Config) JobsEnabled() bool {
	return c.QueueRedisURL != ""
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
