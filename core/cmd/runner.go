// Package cmd holds the process entry logic shared by binaries.
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/autobot/core/autobot"
	"github.com/m3rciful/autobot/core/bootstrap"
	"github.com/m3rciful/autobot/core/config"
	"github.com/m3rciful/autobot/core/lifecycle"
	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/telegram"
	"github.com/m3rciful/autobot/core/telegram/sender"
)

const shutdownTimeout = 20 * time.Second

// Options describe how to load configuration and bootstrap the host.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig     func(path string) (*config.Config, error)
	Bootstrap      func(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error)
	ShutdownLogger func() error
}

// Run loads configuration, bootstraps storage, starts every active bot and
// blocks until SIGINT or SIGTERM.
func Run(opts Options) error {
	cfgPath, err := resolveConfigPath(opts.ConfigEnvVar, opts.DefaultConfigPath)
	if err != nil {
		return err
	}
	load := opts.LoadConfig
	if load == nil {
		load = config.Load
	}
	log.Printf("loading config: %s", cfgPath)
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	startedAt := time.Now()

	pollTimeout := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	client := telegram.BuildHTTPClient(pollTimeout)
	validator := &lifecycle.Validator{Client: client}

	var seeders []bootstrap.Seeder
	if cfg.Seed.File != "" {
		seeders = append(seeders, bootstrap.FileSeeder(cfg.Seed.File, cfg.Seed.OwnerID, validator))
	}
	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	res, err := boot(ctx, bootstrap.Options{Config: cfg, Seeders: seeders})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer func() { _ = res.DB.Close() }()

	dispatcher := sender.NewDispatcher(sender.OptionsFromConfig(cfg.Sender))
	defer dispatcher.Close()

	manager := lifecycle.NewManager(&lifecycle.TelebotConnector{
		Client:     client,
		Telegram:   cfg.Telegram,
		RateLimit:  cfg.RateLimit,
		Texts:      cfg.Texts,
		Dispatcher: dispatcher,
	}, lifecycle.Options{StartParallelism: cfg.Telegram.StartParallelism})
	svc := autobot.NewService(res.Store, manager, validator)

	// one broken bot must not keep the others offline
	if err := svc.StartAll(ctx); err != nil {
		logger.Warn(ctx, logger.CompApp, "bots.start",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}
	running := manager.Running()
	names := make([]string, len(running))
	for i, id := range running {
		names[i] = id.Username
	}
	preview, truncated := logger.SummarizeStrings(names, 10)
	logger.Info(ctx, logger.CompApp, "ready",
		slog.Int("bots", len(running)),
		slog.String("bots_preview", preview),
		slog.Bool("bots_truncated", truncated),
		slog.Duration("startup_duration", logger.Took(startedAt)),
	)

	<-ctx.Done()
	logger.Info(context.Background(), logger.CompApp, "shutdown")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := manager.StopAll(stopCtx); err != nil {
		logger.Warn(stopCtx, logger.CompApp, "bots.stop",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}
	return nil
}

func resolveConfigPath(envVar, fallback string) (string, error) {
	if envVar == "" {
		envVar = "CONFIG_PATH"
	}
	if p := os.Getenv(envVar); p != "" {
		return p, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", envVar)
}
