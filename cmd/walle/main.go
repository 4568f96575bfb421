// Package main запускает HTTP-сервер агента Walle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/walleai/walle-agent/internal/config"
	"github.com/walleai/walle-agent/internal/gemini"
	"github.com/walleai/walle-agent/internal/handler"
	"github.com/walleai/walle-agent/internal/middleware"
	"github.com/walleai/walle-agent/internal/repository"
	"github.com/walleai/walle-agent/internal/search"
	"github.com/walleai/walle-agent/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env опционален: в проде параметры приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := newCardStore(cfg)
	if err != nil {
		sugar.Fatalw("card store initialization error", "error", err.Error())
	}
	defer store.Close()

	searcher, err := search.NewTool(cfg.TavilyAPIKey, logger)
	if err != nil {
		sugar.Fatalw("search tool initialization error", "error", err.Error())
	}

	llm := gemini.NewClient(cfg.GoogleAPIKey, cfg.GeminiModel)

	svc := service.NewService(store, llm, searcher, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting walle server", "addr", cfg.RunAddress, "model", cfg.GeminiModel)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newCardStore выбирает хранилище карт: PostgreSQL при заданном DATABASE_URI,
// иначе Google Sheets.
func newCardStore(cfg *config.Config) (repository.CardStore, error) {
	if cfg.DatabaseURI != "" {
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return repository.NewSheetsRepository(ctx, cfg.CredentialsFile, cfg.SpreadsheetID, cfg.Worksheet)
}
