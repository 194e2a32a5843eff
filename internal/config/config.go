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
	// ログイン設定（APP_USERNAME が空ならログイン不要）
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵

	// サーバー設定
	Port     string // APIサーバーのポート番号
	BindAddr string // 待ち受けアドレス（既定はローカルのみ）
	GinMode  string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 受付条件
	MaxFileCount int   // 1バッチの最大ファイル数
	MaxFileSize  int64 // 単一ファイルの最大サイズ（バイト）

	// 画像処理設定
	MaxPixels   int64 // 復号を許可する最大画素数
	JPEGQuality int   // JPEG再エンコード時の品質 (1-100)

	// 並行処理設定
	Workers int // 画像・PDF・文書を同時に処理する数

	// 動画処理設定
	EnableVideo         bool   // 動画を受け付けるか
	FFmpegPath          string // ffmpeg実行ファイルのパス
	RemuxTimeoutSeconds int    // 1ファイルの再多重化の制限時間（秒）
	ScratchDir          string // 動画エンジン用一時領域のルート
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		Port:     getEnv("PORT", "8080"),
		BindAddr: getEnv("BIND_ADDR", "127.0.0.1"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		MaxFileCount: getEnvAsInt("MAX_FILE_COUNT", 10),
		MaxFileSize:  getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB

		MaxPixels:   getEnvAsInt64("MAX_PIXELS", 100_000_000),
		JPEGQuality: getEnvAsInt("JPEG_QUALITY", 92),

		Workers: getEnvAsInt("SCRUB_WORKERS", 4),

		EnableVideo:         getEnvAsBool("ENABLE_VIDEO", true),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		RemuxTimeoutSeconds: getEnvAsInt("REMUX_TIMEOUT_SECONDS", 600),
		ScratchDir:          getEnv("SCRATCH_DIR", os.TempDir()),
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

// AuthEnabled はログインが必要な構成かどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != ""
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.MaxFileCount < 1 {
		return fmt.Errorf("MAX_FILE_COUNT must be at least 1 (got %d)", c.MaxFileCount)
	}
	if c.MaxFileSize < 1 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive (got %d)", c.MaxFileSize)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100 (got %d)", c.JPEGQuality)
	}
	if c.Workers < 1 {
		return fmt.Errorf("SCRUB_WORKERS must be at least 1 (got %d)", c.Workers)
	}
	if c.EnableVideo && c.FFmpegPath == "" {
		return fmt.Errorf("FFMPEG_PATH is required when ENABLE_VIDEO is true")
	}

	// ログインを有効にする場合は3点すべてが必要
	if c.AuthEnabled() {
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required when APP_USERNAME is set")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when APP_USERNAME is set")
		}
	}

	// 外部に公開する release モードではログインを必須にする
	if c.GinMode == "release" && !isLoopback(c.BindAddr) && !c.AuthEnabled() {
		return fmt.Errorf("APP_USERNAME is required when listening on %s in release mode", c.BindAddr)
	}

	return nil
}

func isLoopback(addr string) bool {
	switch strings.TrimSpace(addr) {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
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

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
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
