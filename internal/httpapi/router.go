package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(d Deps) http.Handler {
	now := d.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(serverErrorLoggerMiddleware)
	r.Use(newCORSPolicy(d.CORSOrigins).middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newIPRateLimiter(d.RateLimitPerMinute, now).middleware)
	r.Use(middleware.Heartbeat("/healthz"))

	s := server{
		mcp:        d.MCP,
		resolver:   d.Resolver,
		minter:     d.Minter,
		defaultKey: d.DefaultKey,
	}

	r.Post("/mcp", s.handleMCP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tokens", s.handleMintToken)
	})

	return r
}
