// Package service assembles the MCP server and its collaborators from
// configuration. Both transports start from Build.
package service

import (
	"context"
	"fmt"
	"time"

	"agentmcp/internal/agentapi"
	"agentmcp/internal/cancel"
	"agentmcp/internal/config"
	"agentmcp/internal/credential"
	"agentmcp/internal/httpapi"
	"agentmcp/internal/log"
	"agentmcp/internal/mcp"
	"agentmcp/internal/retry"
	"agentmcp/internal/token"
	"agentmcp/internal/tools"
	"agentmcp/internal/tracing"
	"agentmcp/internal/wait"
)

const (
	Name    = "agentmcp"
	Version = "0.1.0"
)

const instructions = "Tools for launching and supervising remote coding agents. " +
	"Use create_and_wait to run an agent to completion; pass a cancelToken if you may " +
	"need to stop waiting with cancel_wait_token."

type Service struct {
	Config   config.Config
	Codec    *token.Codec
	Resolver *credential.Resolver
	Registry *cancel.Registry
	MCP      *mcp.Server
	Tracing  *tracing.Provider
}

// Build wires every component from cfg. Close must be called to flush
// traces.
func Build(ctx context.Context, cfg config.Config) (*Service, error) {
	if err := log.Init(log.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty}); err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	tcfg := tracing.DefaultConfig()
	tcfg.Exporter = cfg.TraceExporter
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.ServiceName = Name
	tp, err := tracing.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	codec, err := token.NewCodec(token.Config{Secret: cfg.TokenSecret, TTL: cfg.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	if codec.Ephemeral() {
		log.Warn(log.CatConfig, "AGENTMCP_TOKEN_SECRET not set; tokens are valid for this process only")
	}

	registry := cancel.NewRegistry()
	orch := wait.New(registry,
		wait.WithTracer(tp.Tracer()),
		wait.WithPollRetry(retry.Config{MaxAttempts: cfg.PollRetries, ShouldRetry: agentapi.IsTransient}),
	)

	server := mcp.NewServer(Name, Version,
		mcp.WithInstructions(instructions),
		mcp.WithTracer(tp.Tracer()),
	)
	tools.Register(server, tools.Deps{
		Clients:      tools.APIClientFactory(cfg.APIBaseURL, agentapi.WithUserAgent(Name+"/"+Version)),
		Orchestrator: orch,
		Minter:       codec,
		Catalog:      agentapi.NewCatalogCache(agentapi.DefaultCatalogTTL),
		Defaults: tools.WaitDefaults{
			PollInterval:    cfg.PollInterval,
			Timeout:         cfg.WaitTimeout,
			MinPollInterval: config.MinPollInterval,
			MaxTimeout:      cfg.MaxWaitTimeout,
		},
	})

	log.Info(log.CatConfig, "service configured",
		"api_base_url", cfg.APIBaseURL,
		"default_credential", credential.Mask(cfg.APIKey),
		"token_ttl", cfg.TokenTTL.String(),
		"poll_interval", cfg.PollInterval.String(),
		"trace_exporter", cfg.TraceExporter)

	return &Service{
		Config:   cfg,
		Codec:    codec,
		Resolver: credential.NewResolver(codec),
		Registry: registry,
		MCP:      server,
		Tracing:  tp,
	}, nil
}

// HTTPDeps returns the dependencies of the HTTP transport.
func (s *Service) HTTPDeps() httpapi.Deps {
	return httpapi.Deps{
		MCP:                s.MCP,
		Resolver:           s.Resolver,
		Minter:             s.Codec,
		DefaultKey:         s.Config.APIKey,
		CORSOrigins:        s.Config.CORSOrigins,
		RateLimitPerMinute: s.Config.RateLimitPerMinute,
	}
}

func (s *Service) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Tracing.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
	}
}
