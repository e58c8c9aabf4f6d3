/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend
  5. requireAuth: API key + identity resolution on /api and /ws

ROUTE GROUPS:
  /api/summary, /api/monthly-sales,
  /api/outstanding, /api/missing-data   Snapshot analysis
  /api/projects/*                       Project CRUD + code allocation
  /api/preview-code, /api/meta/options  Allocation support
  /api/refresh                          Manual poll trigger
  /ws                                   Live update stream
  /healthz                              Unauthenticated liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - ws.go: Websocket upgrade and subscriber registration
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxAdmin    contextKey = "admin"
)

// Identity returns the authenticated email stored by requireAuth.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(ctxIdentity).(string)
	return id
}

// IsAdmin reports whether requireAuth classified the caller as admin.
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(ctxAdmin).(bool)
	return admin
}

// requireAuth rejects requests without a valid API key and identity
// header, and stashes the resolved identity for handlers.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, admin := h.Auth.Resolve(r.Header)
		if identity == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxIdentity, identity)
		ctx = context.WithValue(ctx, ctxAdmin, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-User-Email"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAuth)

		// Analysis routes
		r.Get("/summary", h.GetSummary)
		r.Get("/monthly-sales", h.GetMonthlySales)
		r.Get("/outstanding", h.GetOutstanding)
		r.Get("/missing-data", h.GetMissingData)

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Post("/auto", h.AutoCreateProject)
			r.Get("/{code}", h.GetProject)
			r.Put("/{code}", h.UpdateProject)
		})

		// Allocation support routes
		r.Get("/preview-code", h.PreviewCode)
		r.Get("/meta/options", h.GetOptions)

		// Control routes
		r.Post("/refresh", h.Refresh)
		r.Post("/reports/run", h.RunReports)
	})

	// Live update stream
	r.Get("/ws", h.ServeWS)

	return r
}
