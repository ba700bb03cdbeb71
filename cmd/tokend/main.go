// Command tokend serves token issuance and validation over HTTP.
//
//	tokend -config /etc/tokend/tokend.yaml
//
// The configuration file is watched and the engine rebuilt on change. Set
// LOG_LEVEL to debug, info, warn or error.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/internal/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "tokend.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload the configuration when the file changes")
	flag.Parse()

	logger, err := logging.FromEnv()
	if err != nil {
		log.Fatalf("Cannot initialize Zap logger: %v.", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fc, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Error loading configuration.", zap.Error(err))
	}

	rt, err := server.Build(fc, logger.Named("engine"))
	if err != nil {
		logger.Fatal("Error building token engine.", zap.Error(err))
	}

	srv := server.New(rt, logger)
	defer srv.Close()

	if *watch {
		if err := srv.Watch(ctx, *configPath); err != nil {
			logger.Fatal("Error watching configuration.", zap.Error(err))
		}
	}

	httpServer := &http.Server{
		Handler:      srv.Handler(),
		Addr:         fc.Listen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server...", zap.String("addr", fc.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server exited with error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down tokend...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
