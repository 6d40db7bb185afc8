package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentmcp/internal/config"
	"agentmcp/internal/httpapi"
	"agentmcp/internal/log"
	"agentmcp/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.ErrorErr(log.CatConfig, "config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(ctx, cfg)
	if err != nil {
		log.ErrorErr(log.CatConfig, "startup", err)
		os.Exit(1)
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(svc.HTTPDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(log.CatHTTP, "api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorErr(log.CatHTTP, "listen", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Long create_and_wait calls are cut short by the shutdown deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "shutdown", err)
	}
}
