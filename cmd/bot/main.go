package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/run"

	h "github.com/veranemoloko/hls-relay-bot/internal/api/http"
	"github.com/veranemoloko/hls-relay-bot/internal/bot"
	cfgpkg "github.com/veranemoloko/hls-relay-bot/internal/config"
	"github.com/veranemoloko/hls-relay-bot/internal/progress"
	repo "github.com/veranemoloko/hls-relay-bot/internal/repository"
	svc "github.com/veranemoloko/hls-relay-bot/internal/service"
	"github.com/veranemoloko/hls-relay-bot/internal/storage"
	"github.com/veranemoloko/hls-relay-bot/internal/transport/telegram"
	"github.com/veranemoloko/hls-relay-bot/internal/worker"
)

func main() {
	if err := runBot(); err != nil {
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func runBot() error {
	cfg, err := cfgpkg.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfgpkg.SetupLogger(cfg)
	logger := slog.Default()
	logger.Info("configuration loaded successfully",
		"chat_id", cfg.ChatID,
		"webhook", cfg.WebhookEnabled(),
		"download_dir", cfg.DownloadDir,
	)

	client, err := telegram.NewClient(cfg.BotToken, telegram.Options{UploadTimeout: cfg.UploadTimeout}, logger)
	if err != nil {
		return err
	}

	fileStorage := storage.NewFileStorage(cfg.DownloadDir)
	runRegistry := repo.NewRunRegistry()
	translator := progress.NewTranslator(cfg.ProgressInterval, logger)
	downloadWorker := worker.NewDownloadWorker(worker.ExecRunner{}, fileStorage, translator, worker.Config{
		Binary: cfg.DownloaderBin,
		Format: cfg.DownloaderFormat,
	}, logger)
	batchService := svc.NewBatchService(runRegistry, fileStorage, downloadWorker, client, svc.Config{
		MaxManifestSize: cfg.MaxManifestSize,
	}, logger)

	batchCtx, cancelBatches := context.WithCancel(context.Background())
	defer cancelBatches()
	updateHandler := bot.NewHandler(batchCtx, client, client, batchService, runRegistry, cfg.ChatID, logger)

	router := h.NewRouter(h.NewWebhookHandler(updateHandler, runRegistry, cfg.BotToken, cfg.ChatID, logger), logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Info("shutdown signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Info("server starting", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown failed", "error", err)
				}
			},
		)
	}

	// Update intake.
	{
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		g.Add(
			func() error {
				if cfg.WebhookEnabled() {
					url := strings.TrimRight(cfg.WebhookURL, "/") + "/" + cfg.BotToken
					if err := client.SetWebhook(url); err != nil {
						return err
					}
					logger.Info("receiving updates by webhook", "port", cfg.HTTPPort)
					<-ctx.Done()
					return nil
				}

				if err := client.DeleteWebhook(); err != nil {
					return err
				}
				logger.Info("receiving updates by long polling", "username", client.Username())
				return client.Poll(ctx, updateHandler.HandleUpdate)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	runErr := g.Run()

	cancelBatches()
	if waitBatches(updateHandler, cfg.ShutdownTimeout) {
		logger.Info("bot stopped gracefully")
	} else {
		logger.Warn("batches still running at shutdown timeout")
	}

	return runErr
}

func waitBatches(handler *bot.Handler, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
