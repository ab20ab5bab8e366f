package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daily-news-parser/internal/observability"
)

// GracefulShutdown запускает мониторинг OS сигналов и возвращает context для отмены.
// shutdownTimeout = 0 означает работу до сигнала.
func GracefulShutdown(logger *observability.Logger, shutdownTimeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if shutdownTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
