// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/meta-scrub/internal/auth"
	"github.com/yourusername/meta-scrub/internal/config"
	"github.com/yourusername/meta-scrub/internal/scrub"
)

const version = "0.1.0"

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	logger := log.New(os.Stderr, "", log.LstdFlags)

	router := newRouter(cfg, scrub.NewService(cfg, logger))

	// ファイルを外部に送らないため既定ではループバックでのみ待ち受ける
	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	log.Printf("Starting API server on %s (mode: %s, video: %t)", addr, cfg.GinMode, cfg.EnableVideo)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newRouter(cfg *config.Config, svc scrub.Scrubber) *gin.Engine {
	// デフォルトミドルウェア: Logger, Recovery
	router := gin.Default()

	// 本文は ScrubHandler で同じ上限に切り詰めるので、アップロードが一時ファイルに退避されることはない
	router.MaxMultipartMemory = svc.Policy().MaxRequestBytes()

	if cfg.AuthEnabled() {
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   auth.SessionMaxAgeSeconds(),
			HttpOnly: true,
			Secure:   cfg.GinMode == gin.ReleaseMode,
			SameSite: http.SameSiteStrictMode,
		})
		router.Use(sessions.Sessions(auth.SessionCookieName, store))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		auth.CSRFHeader,
	}
	// フロントエンドが CSRF トークンと処理件数を読めるように公開
	corsConfig.ExposeHeaders = []string{
		auth.CSRFHeader,
		"Content-Disposition",
		"X-Scrub-Kind",
		"X-Scrub-Cleaned",
		"X-Scrub-Skipped",
		"X-Scrub-Failed",
		"X-Scrub-Rejected",
	}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, svc)
	return router
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "meta-scrub-api",
		"version": version,
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, svc scrub.Scrubber) {
	router.GET("/health", handleHealth)

	guard := auth.NewGuard(cfg)

	api := router.Group("/api")
	{
		if guard.Enabled() {
			authRoutes := api.Group("/auth")
			authRoutes.POST("/login", guard.Login)
			authRoutes.POST("/logout", guard.Protect(), guard.Logout)
		}

		api.GET("/policy", scrub.PolicyHandler(svc))

		protected := api.Group("")
		protected.Use(guard.Protect())
		{
			protected.POST("/scrub", scrub.ScrubHandler(svc))
		}
	}
}
