package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/verityai/caseflow/internal/api/v1"
	"github.com/verityai/caseflow/internal/api/ws"
	"github.com/verityai/caseflow/internal/config"
	"github.com/verityai/caseflow/internal/server/middleware"
)

func newRouter(cfg *config.Config, deps Deps) chi.Router {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(deps.Review, deps.Chat)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(context.Background(), 50, 100))

		apiConfig := huma.DefaultConfig("Caseflow API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		v1.RegisterChatRoutes(api, deps.Chat)
		v1.RegisterStatusRoutes(api, deps.Status, deps.Entities)
		v1.RegisterReviewRoutes(api, deps.Review)

		// SSE endpoint; huma cannot model an unbounded event stream, so this
		// one is a plain chi handler on the same group.
		r.Get("/chat/sessions/{id}/stream", hub.ServeChatStream)
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Get("/review/{entityID}", hub.ServeReview)
	})

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return router
}
