package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/config"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(config.StageLocal)
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Init(cfg.Stage)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}

	logger.Info("Server stopped cleanly")
}
