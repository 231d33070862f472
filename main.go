package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashmap-kz/colorclip/cmd"
	"github.com/hashmap-kz/colorclip/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.App().Run(ctx, os.Args); err != nil {
		slog.Log(ctx, logger.LevelFatal, "colorclip failed", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
}
