package api

import (
	"net/http"

	"github.com/bcnelson/casbin-dynamodb-adapter/internal/api/handler"
	"github.com/bcnelson/casbin-dynamodb-adapter/internal/api/middleware"
	"github.com/bcnelson/casbin-dynamodb-adapter/internal/authz"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(authorizer *authz.Authorizer, apiKey string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(apiKey))

		policyHandler := handler.NewPolicyHandler(authorizer)
		r.Get("/policies", policyHandler.List)
		r.Post("/policies", policyHandler.Add)
		r.Delete("/policies", policyHandler.Remove)
		r.Post("/policies/batch", policyHandler.AddBatch)
		r.Delete("/policies/batch", policyHandler.RemoveBatch)
		r.Post("/policies/filter", policyHandler.RemoveFiltered)
		r.Post("/policies/reload", policyHandler.Reload)

		checkHandler := handler.NewCheckHandler(authorizer)
		r.Post("/check", checkHandler.Check)
	})

	return r
}
