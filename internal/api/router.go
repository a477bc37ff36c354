package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/kiranshivaraju/storyforge/internal/api/middleware"
	"github.com/kiranshivaraju/storyforge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	APIPrefix      string
	AllowedOrigins []string

	Session   *mw.Session
	RateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	MetricsHandler       http.Handler
	CreateStoryHandler   http.HandlerFunc
	CompleteStoryHandler http.HandlerFunc
	GetJobHandler        http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(corsHandler(deps.AllowedOrigins))

	r.Get("/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route(deps.APIPrefix+"/stories", func(r chi.Router) {
		r.With(sessionChain(deps)...).Post("/create", orNotImplemented(deps.CreateStoryHandler))
		r.Get("/{storyID}/complete", orNotImplemented(deps.CompleteStoryHandler))
	})
	r.Get(deps.APIPrefix+"/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))

	return r
}

// corsHandler allows credentialed requests from the configured origins. With
// no origins configured every cross-origin request is refused.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}

// sessionChain is the middleware in front of story creation: identify the
// session, then rate limit it.
func sessionChain(deps Dependencies) []func(http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler
	if deps.Session != nil {
		chain = append(chain, deps.Session.Handle)
	}
	if deps.RateLimit != nil {
		chain = append(chain, deps.RateLimit.Limit)
	}
	return chain
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
