// Command stdio serves the MCP tools over stdin/stdout. Every call acts with
// the configured AGENTMCP_API_KEY.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"agentmcp/internal/config"
	"agentmcp/internal/log"
	"agentmcp/internal/service"
	"agentmcp/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.ErrorErr(log.CatConfig, "config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; logs stay on stderr.
	svc, err := service.Build(ctx, cfg)
	if err != nil {
		log.ErrorErr(log.CatConfig, "startup", err)
		os.Exit(1)
	}
	defer svc.Close()

	if cfg.APIKey == "" {
		log.Warn(log.CatAuth, "AGENTMCP_API_KEY not set; remote tools will fail")
	}

	log.Info(log.CatMCP, "serving on stdio")
	err = svc.MCP.Serve(tools.WithCredential(ctx, cfg.APIKey), os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.ErrorErr(log.CatMCP, "serve", err)
		svc.Close()
		os.Exit(1)
	}
}
