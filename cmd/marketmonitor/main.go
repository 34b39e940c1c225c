package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"MarketMonitor/internal/app"
	"MarketMonitor/internal/config"
	"MarketMonitor/internal/logging"
)

func main() {
	poll := flag.Bool("poll", false, "poll continuously instead of running a single pass")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if *poll {
		err = application.RunForever(ctx)
	} else {
		err = application.Run(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
