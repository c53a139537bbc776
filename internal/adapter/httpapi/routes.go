package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/AgentBridge/internal/adapter/otel"
	"github.com/Strob0t/AgentBridge/internal/config"
	"github.com/Strob0t/AgentBridge/internal/domain/risk"
)

// NewRouter assembles the full HTTP surface: middleware stack, JSON API,
// and the WebSocket endpoint.
func NewRouter(h *Handlers, cfg *config.Config, log *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(CORS(cfg.Server.CORSOrigin))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", h.Health)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.Auth.TokenHash))

		r.Post("/initialize", h.Initialize)

		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions", h.ListSessions)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Post("/sessions/{id}/load", h.LoadSession)
		r.Post("/sessions/{id}/prompt", h.Prompt)
		r.Post("/sessions/{id}/cancel", h.Cancel)
		r.Post("/sessions/{id}/policy", h.SetPolicy)

		r.Post("/permission", h.ResolvePermission)
	})

	return r
}

// parseThreshold maps a wire threshold onto a risk level, defaulting to
// HIGH so a garbled adopt-risky decision never loosens the policy.
func parseThreshold(s string) risk.Level {
	if s == "" {
		return risk.LevelHigh
	}
	if lvl := risk.ParseLevel(s); lvl != risk.LevelUnknown {
		return lvl
	}
	return risk.LevelHigh
}
