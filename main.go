// Package main implements the drawma gallery tools: an incremental
// sync that downloads drawings posted to the #drawma Slack channel,
// and a headline scraper that feeds the daily prompt generator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"drawma-gallery/config"
	"drawma-gallery/download"
	"drawma-gallery/headlines"
	"drawma-gallery/slack"
	"drawma-gallery/storage"
	"drawma-gallery/sync"
)

const requestTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Missing .env is fine; real deployments use plain env vars.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	channel := flag.String("channel", "", "override the Slack channel")
	days := flag.Int("days", 0, "override the image lookback window in days")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		return 1
	}
	if *channel != "" {
		cfg.Slack.Channel = *channel
	}
	if *days > 0 {
		cfg.Gallery.LookbackDays = *days
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "sync"
	}

	ctx := context.Background()

	switch cmd {
	case "sync":
		return runSync(ctx, cfg, logger)
	case "headlines":
		return runHeadlines(ctx, cfg, logger)
	default:
		logger.Error("Unknown command", "command", cmd)
		return 2
	}
}

func runSync(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	token := os.Getenv("SLACK_BOT_TOKEN")
	if token == "" {
		logger.Error("SLACK_BOT_TOKEN environment variable not set")
		return 1
	}

	var storageClient *gcs.Client
	localDir := cfg.Gallery.OutputDir
	if cfg.Gallery.Bucket != "" {
		localDir = ""
		var err error
		storageClient, err = newStorageClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			return 1
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
		logger.Info("Using Cloud Storage", "bucket", cfg.Gallery.Bucket)
	} else {
		logger.Info("Using local storage", "dir", localDir)
	}

	store := storage.New(storageClient, cfg.Gallery.Bucket, localDir, logger)
	chat := slack.New(&http.Client{Timeout: requestTimeout}, token, logger)
	downloader := download.New(logger, requestTimeout)

	syncer := sync.New(chat, store, downloader, sync.Config{
		Channel:  cfg.Slack.Channel,
		Token:    token,
		Lookback: time.Duration(cfg.Gallery.LookbackDays) * 24 * time.Hour,
	}, logger)

	summary, err := syncer.Run(ctx)
	if err != nil {
		logger.Error("Sync failed", "error", err)
		return 1
	}

	logger.Info("Run summary",
		"prompts", summary.Prompts,
		"discovered", summary.Discovered,
		"new", summary.New,
		"downloaded", summary.Downloaded,
		"failed", summary.Failed)
	return 0
}

func runHeadlines(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	scraper := headlines.New(&http.Client{Timeout: 10 * time.Second}, logger)

	all := scraper.All(ctx, cfg.Sources)
	if len(all) == 0 {
		logger.Error("No headlines scraped from any source")
		return 1
	}

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		logger.Error("Failed to encode headlines", "error", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func newStorageClient(ctx context.Context) (*gcs.Client, error) {
	// Explicit credentials first (local development); otherwise fall
	// back to Application Default Credentials.
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credsJSON != "" {
		return gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	return gcs.NewClient(ctx)
}
