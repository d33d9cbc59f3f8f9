package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unvocal/internal/config"
	"unvocal/internal/handlers"
	"unvocal/internal/separation"
	"unvocal/internal/storage"
	"unvocal/internal/version"
	"unvocal/internal/worker"
	"unvocal/internal/youtube"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	// .envファイルを読み込み（存在しない場合はスキップ）
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidatePipeline(); err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Server.StaticDir, 0755); err != nil {
		log.Fatalf("failed to create static directory: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := storage.Open(cfg.Server.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	jobRepo := storage.NewJobRepository(db)

	pipeline := separation.New(cfg.Pipeline, cfg.Server.StaticDir, youtube.NewClient(), logger)
	w := worker.NewWorker(jobRepo, pipeline, cfg.Server.Retention, logger)
	w.SetInterval(cfg.Server.WorkerInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
	defer w.Stop()

	// Echoインスタンスの作成
	e := echo.New()
	e.HideBanner = true

	// ミドルウェアの設定
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// ルートの登録
	e.GET("/health", handlers.Health)
	jobHandler := handlers.NewJobHandler(jobRepo, cfg.Server.MaxRequestsPerHour, cfg.Server.Retention)
	jobHandler.Register(e)
	handlers.NewPageHandler(jobHandler).Register(e)
	e.Static("/static", cfg.Server.StaticDir)

	// サーバー起動
	go func() {
		log.Printf("Starting unvocal v%s on port %s", version.Version, cfg.Server.Port)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", "error", err)
	}
}
