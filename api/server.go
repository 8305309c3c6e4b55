/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*      Registration and profiles
  /api/questions/*  Questions, voting, answers, acceptance
  /api/answers/*    Answer voting and deletion
  /api/badges       Badge catalog
  /api/admin/*      Reconciliation

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
		})

		// Question routes
		r.Route("/questions", func(r chi.Router) {
			r.Get("/", h.ListQuestions)
			r.Post("/", h.AskQuestion)
			r.Get("/{id}", h.GetQuestion)
			r.Delete("/{id}", h.DeleteQuestion)
			r.Post("/{id}/vote", h.VoteQuestion)
			r.Post("/{id}/answers", h.PostAnswer)
			r.Post("/{id}/accept/{answerID}", h.AcceptAnswer)
		})

		// Answer routes
		r.Route("/answers", func(r chi.Router) {
			r.Post("/{id}/vote", h.VoteAnswer)
			r.Delete("/{id}", h.DeleteAnswer)
		})

		// Badge catalog
		r.Get("/badges", h.ListBadges)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.RunReconciliation)
		})
	})

	return r
}
