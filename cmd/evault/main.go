package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/evault-dev/evault/internal/cli"
	"github.com/evault-dev/evault/internal/logging"
	"github.com/evault-dev/evault/internal/vault"
	"github.com/evault-dev/evault/internal/vault/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	v, err := vault.New(cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	cli.NewApp(v).Run(ctx)
}
