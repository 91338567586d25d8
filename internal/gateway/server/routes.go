package server

import (
	"net/http"

	"uigen/internal/gateway/handler"
	"uigen/internal/gateway/middleware"
)

// MuxConfig carries the cross-cutting middleware for NewMux.
type MuxConfig struct {
	FrontendURL string
	Auth        middleware.Middleware
	RateLimit   *middleware.RateLimiter
	Logger      middleware.Middleware
}

func NewMux(h *handler.Set, cfg MuxConfig) http.Handler {
	api := http.NewServeMux()

	// AI
	api.HandleFunc("POST /api/ai/generate", h.AI.Generate)
	api.HandleFunc("POST /api/ai/refine", h.AI.Refine)
	api.HandleFunc("POST /api/ai/chat", h.AI.Chat)
	api.HandleFunc("GET /api/ai/models", h.AI.Models)

	// Sessions
	api.HandleFunc("GET /api/sessions", h.Sessions.List)
	api.HandleFunc("POST /api/sessions", h.Sessions.Create)
	api.HandleFunc("GET /api/sessions/{id}", h.Sessions.Get)
	api.HandleFunc("PUT /api/sessions/{id}", h.Sessions.Update)
	api.HandleFunc("DELETE /api/sessions/{id}", h.Sessions.Delete)
	api.HandleFunc("POST /api/sessions/{id}/duplicate", h.Sessions.Duplicate)
	api.HandleFunc("GET /api/sessions/{id}/export", h.Sessions.Export)
	api.HandleFunc("GET /api/sessions/{id}/watch", h.Watch.Watch)

	// Components
	api.HandleFunc("GET /api/components/{sessionId}/current", h.Components.Current)
	api.HandleFunc("GET /api/components/{sessionId}/versions", h.Components.Versions)
	api.HandleFunc("GET /api/components/{sessionId}/{version}", h.Components.Get)
	api.HandleFunc("PUT /api/components/{sessionId}/{version}", h.Components.Update)
	api.HandleFunc("POST /api/components/{sessionId}/{version}/set-current", h.Components.SetCurrent)
	api.HandleFunc("POST /api/components/{sessionId}/{version}/duplicate", h.Components.Duplicate)
	api.HandleFunc("GET /api/components/{sessionId}/{version}/download", h.Components.Download)
	api.HandleFunc("GET /api/components/{sessionId}/{version}/download-url", h.Components.DownloadURL)

	api.HandleFunc("/", handler.NotFound)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.Handle("/api/", middleware.Chain(api, cfg.Auth))
	mux.HandleFunc("/", handler.NotFound)

	var limit middleware.Middleware
	if cfg.RateLimit != nil {
		limit = cfg.RateLimit.Middleware
	}
	return middleware.Chain(mux,
		middleware.Recover,
		cfg.Logger,
		middleware.CORS(cfg.FrontendURL),
		limit,
	)
}
