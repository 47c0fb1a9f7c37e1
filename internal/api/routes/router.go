package routes

import (
	"net/http"

	"github.com/nahid2887/today/internal/api/handlers"
	"github.com/nahid2887/today/internal/api/middleware"
	"github.com/nahid2887/today/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	chatHandler    *handlers.ChatHandler
	catalogHandler *handlers.CatalogHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. catalogHandler may be nil when the
// process does not own catalog sync.
func NewRouter(
	chatHandler *handlers.ChatHandler,
	catalogHandler *handlers.CatalogHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		chatHandler:    chatHandler,
		catalogHandler: catalogHandler,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Conversation endpoints
	r.mux.HandleFunc("POST /api/chat", r.chatHandler.Chat)
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.chatHandler.ResetSession)

	// Catalog endpoints
	if r.catalogHandler != nil {
		r.mux.HandleFunc("POST /api/catalog/sync", r.catalogHandler.TriggerSync)
		r.mux.HandleFunc("GET /api/catalog/status", r.catalogHandler.GetStatus)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
