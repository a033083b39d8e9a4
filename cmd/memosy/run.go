package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"memosy/internal/bus"
	"memosy/internal/channel"
	"memosy/internal/config"
	"memosy/internal/downloader"
	"memosy/internal/metrics"
	"memosy/internal/relay"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay (Telegram polling + downloader maintenance)",
		Long:  "Connects to Telegram, relays linked videos back into the chats they were posted in and keeps yt-dlp up to date. Press Ctrl+C to stop.",
		RunE:  runRelay,
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is not set (telegram.token, TELOXIDE_TOKEN or TELEGRAM_BOT_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tool, err := newTool(cfg)
	if err != nil {
		return err
	}
	if err := ensureBinary(ctx, cfg, tool); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Downloader.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	maintainer, err := newMaintainer(cfg, tool)
	if err != nil {
		return err
	}

	messageBus := bus.New(cfg.General.BusSize, logger)

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:        cfg.Telegram.Token,
		AllowFrom:    cfg.Telegram.AllowFrom,
		IgnoreMarker: cfg.Downloader.IgnoreMarker,
		Logger:       logger,
	})
	if err := telegramCh.Connect(); err != nil {
		return err
	}

	rl := relay.New(relay.Config{
		Fetcher:      downloader.NewFetcher(tool, cfg.Downloader.OutputDir, logger),
		Courier:      telegramCh,
		Bus:          messageBus,
		IgnoreMarker: cfg.Downloader.IgnoreMarker,
		Logger:       logger,
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		maintainer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		rl.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := telegramCh.Start(ctx, messageBus); err != nil {
			logger.Error("telegram channel error", "err", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics)
	}

	if cfg.Telegram.NotifyStartup && cfg.Telegram.AdminID != "" {
		if err := telegramCh.NotifyStartup(ctx, cfg.Telegram.AdminID); err != nil {
			logger.Warn("startup notification failed", "admin_id", cfg.Telegram.AdminID, "err", err)
		}
	}

	logger.Info("memosy started. Press Ctrl+C to stop.",
		"binary", tool.Binary(),
		"profile", tool.Profile().Name,
		"next_update", maintainer.Next(time.Now()).Format(time.RFC3339),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
		telegramCh.Stop()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// newTool builds the downloader handle with the configured profile.
func newTool(cfg *config.Config) (*downloader.Tool, error) {
	profiles, err := downloader.LoadProfiles(cfg.Downloader.ProfilesFile)
	if err != nil {
		return nil, err
	}
	profile, err := profiles.Get(cfg.Downloader.Profile)
	if err != nil {
		return nil, err
	}
	return downloader.NewTool(downloader.ToolConfig{
		Binary:     cfg.Downloader.BinaryPath(),
		Profile:    profile,
		Timeout:    time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second,
		ReleaseURL: cfg.Downloader.ReleaseURL,
		Logger:     logger,
	}), nil
}

func newMaintainer(cfg *config.Config, tool *downloader.Tool) (*downloader.Maintainer, error) {
	return downloader.NewMaintainer(tool, downloader.MaintainerConfig{
		Schedule:   cfg.Downloader.UpdateSchedule,
		RunOnStart: cfg.Downloader.UpdateOnStart,
		Logger:     logger,
	})
}

// ensureBinary installs yt-dlp when it is missing and auto-install is on.
func ensureBinary(ctx context.Context, cfg *config.Config, tool *downloader.Tool) error {
	if tool.Installed() {
		return nil
	}
	if !cfg.Downloader.AutoInstall {
		return fmt.Errorf("downloader binary not found at %s and downloader.autoInstall is disabled", tool.Binary())
	}
	logger.Info("downloader binary missing, installing", "path", tool.Binary())
	if _, err := tool.EnsureInstalled(ctx); err != nil {
		return fmt.Errorf("install downloader: %w", err)
	}
	return nil
}

func startMetricsServer(mc config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(mc.Endpoint, metrics.Collector.Handler())
	srv := &http.Server{
		Addr:              mc.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", mc.Listen, "endpoint", mc.Endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	return srv
}
