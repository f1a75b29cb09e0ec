package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	_ "github.com/seaward/marketsync/internal/adapter/database/mysql"
	_ "github.com/seaward/marketsync/internal/adapter/database/postgres"
	_ "github.com/seaward/marketsync/internal/adapter/database/sqlite"
	_ "github.com/seaward/marketsync/internal/adapter/storage/local"
	"github.com/seaward/marketsync/internal/app"
	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/logger"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary carries its own defaults.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS bundles the schema migration scripts into the binary.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

const usage = `usage: update-all [<start> <end>]

Loads marketplace data for the inclusive date range <start>..<end>
(YYYY-MM-DD). Without arguments the configured lookback window ending
today is loaded.`

func main() {
	args := os.Args[1:]
	if len(args) != 0 && len(args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(app.ExitUsage)
	}

	var startArg, endArg string
	if len(args) == 2 {
		startArg, endArg = args[0], args[1]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("received signal '%v', stopping the run", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	os.Exit(app.RunApplication(ctx, app.Params{
		EnvFilePath:    envFilePath,
		EmbeddedConfig: config.EmbeddedConfig(embeddedConfig),
		MigrationsFS:   migrationsFS,
		MigrationsPath: "resources/migrations",
		StartArg:       startArg,
		EndArg:         endArg,
	}))
}
