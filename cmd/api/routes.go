package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yourusername/todo-web/internal/auth"
	"github.com/yourusername/todo-web/internal/config"
	"github.com/yourusername/todo-web/internal/todo"
	"github.com/yourusername/todo-web/internal/user"
	"github.com/yourusername/todo-web/web"
)

// deps はルーターが必要とする外部リソースです。テストでは別のデータベースを渡して差し替えます。
type deps struct {
	db        *gorm.DB
	logger    *slog.Logger
	attempts  auth.AttemptStore
	scheduler todo.PurgeScheduler
	jobs      jobRecordReader
}

// newRouter はミドルウェアとルーティングを組み立てます。
func newRouter(cfg *config.Config, d deps) (*gin.Engine, error) {
	if d.db == nil {
		return nil, errors.New("db is nil")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is empty")
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	router := gin.New()
	if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	// セッションストアの設定（クッキー署名鍵は必須）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-CSRF-Token",
		}
		corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
		router.Use(cors.New(corsConfig))
	}

	setupRoutes(router, cfg, d)
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"service":  "todo-web",
			"database": dbStatus,
		})
	}
}

// setupRoutes は画面・API と認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, d deps) {
	router.GET("/health", handleHealth(d.db))
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, todo.ListPath)
	})

	userSvc := user.NewService(user.NewRepository(d.db))
	authManager := auth.NewManager(userSvc, d.attempts, auth.Options{
		CSRFProtection: cfg.CSRFProtection,
		Logger:         d.logger,
	})

	todoHandler := todo.NewHandler(todo.NewService(todo.NewRepository(d.db)), todo.HandlerOptions{
		Scheduler:      d.scheduler,
		AsyncThreshold: cfg.PurgeAsyncThreshold,
		Logger:         d.logger,
	})

	authRoutes := router.Group("/auth")
	{
		// ログイン前はセッションが無いので CSRF 検証は行わない
		authRoutes.GET("/login", authManager.LoginPage)
		authRoutes.POST("/login", authManager.Login)
		authRoutes.GET("/register", authManager.RegisterPage)
		authRoutes.POST("/register", authManager.Register)
		authRoutes.GET("/logout", authManager.Logout)
		authRoutes.POST("/logout", authManager.Logout)
	}

	todos := router.Group("/todos")
	todos.Use(authManager.RequirePageLogin(), authManager.VerifyCSRF())
	{
		todos.GET("", todoHandler.List)
		todos.GET("/", todoHandler.List)
		todos.GET("/add-todo", todoHandler.AddPage)
		todos.POST("/add-todo", todoHandler.Add)
		todos.GET("/edit-todo/:id", todoHandler.EditPage)
		todos.POST("/edit-todo/:id", todoHandler.Edit)
		todos.GET("/delete/:id", todoHandler.Delete)
		todos.GET("/complete/:id", todoHandler.Complete)
		todos.POST("/clear-completed", todoHandler.ClearCompleted)
	}

	api := router.Group("/api")
	api.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
	{
		api.GET("/me", func(c *gin.Context) {
			id, _ := auth.CurrentUserID(c)
			c.JSON(http.StatusOK, gin.H{
				"id":       id,
				"username": auth.CurrentUsername(c),
			})
		})
		if d.jobs != nil {
			api.GET("/jobs/:id", jobStatusHandler(d.jobs))
		}
	}
}

// redactURL はログ出力用に接続文字列のパスワードを伏せます。
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
