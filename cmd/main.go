package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"dojotap/internal/dojo"
	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	var store storage.Store = storage.NewMemoryStore()
	var history *storage.SQLiteStore
	if db, err := shared.NewDatabase(config.Database.Path); err == nil {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err == nil {
			sqliteStore := storage.NewSQLiteStore(db)
			store = sqliteStore
			history = sqliteStore
		} else {
			logger.Warn("migrations failed, falling back to in-memory storage", "error", err)
		}
	} else {
		logger.Warn("database unavailable, falling back to in-memory storage", "error", err)
	}

	session := dojo.NewSessionManager(config.Auth, store, http.DefaultClient)
	client := dojo.NewHTTPClient(config.Upstream, session, http.DefaultClient, logger)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Client:     client,
		Session:    session,
		Store:      store,
		History:    history,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:    "dojotap",
		Usage:   "Fast progress logging for your ChessDojo training plan",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrAuthRequired) || errors.Is(err, shared.ErrNotAuthenticated) {
			logger.Error("authentication required", "err", err)
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
