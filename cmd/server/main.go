// Command server runs the snippet service.
//
// Configuration comes from an optional YAML file (-config flag or
// CONFIG_PATH) overlaid with environment variables; see package config.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/snippets/internal/config"
	"github.com/sakif/snippets/internal/handler"
	"github.com/sakif/snippets/internal/repository/memory"
	"github.com/sakif/snippets/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store := memory.New(
		memory.WithGrace(cfg.Store.Grace),
		memory.WithShards(cfg.Store.Shards),
		memory.WithLogger(logger),
	)

	srv := server.New(server.Config{
		Port:      cfg.Port,
		PublicURL: cfg.PublicURL,
		Limits: handler.Limits{
			MaxNameBytes:    cfg.Limits.MaxNameBytes,
			MaxSnippetBytes: cfg.Limits.MaxSnippetBytes,
			MaxBodyBytes:    cfg.Limits.MaxBodyBytes,
			MaxExpiresIn:    cfg.Store.MaxExpiresIn,
		},
		Likes: cfg.Extensions.Likes,
		Edits: cfg.Extensions.Edits,
	}, logger, store)

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
