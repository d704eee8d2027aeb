package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/logger"
	"storefront-session-svc/src/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}

	cfg := config.Load()
	logger.Init(cfg)

	logrus.Infof("Application %s is starting....", cfg.App.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Error creating server")
	}

	if err := srv.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Error starting server")
	}

	logrus.Info("Server stopped")
}
