// Package main はTODOアプリのWebサーバーのエントリーポイントです。
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/todo-web/internal/auth"
	"github.com/yourusername/todo-web/internal/config"
	"github.com/yourusername/todo-web/internal/storage"
	"github.com/yourusername/todo-web/internal/todo"
	"github.com/yourusername/todo-web/internal/user"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run はリソースを初期化してサーバーを起動します。終了時には defer で後片付けを行います。
func run(ctx context.Context) error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.GinMode)
	slog.SetDefault(logger)

	gin.SetMode(cfg.GinMode)

	if cfg.SessionSecret == "" {
		// release 以外では Validate が空を許すので、起動ごとに使い捨ての鍵を作る
		cfg.SessionSecret = randomSecret()
		logger.Warn("SESSION_SECRET is not set; using a temporary key (sessions will not survive restarts)")
	}

	db, err := storage.Open(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := storage.Close(db); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	if err := storage.Migrate(db, schemaModels()...); err != nil {
		return err
	}
	logger.Info("database ready", "url", redactURL(cfg.DatabaseURL))

	d := deps{db: db, logger: logger}

	if cfg.LoginAttemptRedisURL != "" {
		opt, err := redis.ParseURL(cfg.LoginAttemptRedisURL)
		if err != nil {
			return fmt.Errorf("invalid LOGIN_ATTEMPT_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		d.attempts = auth.NewRedisAttemptStore(rdb)
	}

	if cfg.JobsEnabled() {
		todoSvc := todo.NewService(todo.NewRepository(db))
		jobManager, err := setupJobs(cfg, todoSvc, logger)
		if err != nil {
			return fmt.Errorf("failed to set up jobs: %w", err)
		}
		jobManager.StartWorkers()
		defer func() {
			if err := jobManager.Shutdown(context.Background()); err != nil {
				logger.Error("failed to shut down job manager", "error", err)
			}
		}()
		d.scheduler = jobManager
		d.jobs = jobManager
	}

	router, err := newRouter(cfg, d)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	return serve(ctx, ":"+cfg.Port, router, logger)
}

// schemaModels はマイグレーション対象のモデルです。テーブル削除時は逆順にしてください。
func schemaModels() []any {
	return []any{&user.User{}, &todo.Todo{}}
}

func newLogger(mode string) *slog.Logger {
	if mode == gin.ReleaseMode {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// serve はサーバーを起動し、シグナルを受けたら処理中のリクエストを待ってから停止します。
func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "mode", gin.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down server")
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	logger.Info("server exited gracefully")
	return nil
}
