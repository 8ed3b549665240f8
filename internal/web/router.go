package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/znz-systems/mailsift/internal/auth"
	"github.com/znz-systems/mailsift/internal/ratelimit"
	"github.com/znz-systems/mailsift/internal/web/handlers"
	"github.com/znz-systems/mailsift/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	AnalysisHandler *handlers.AnalysisHandler
	RulesHandler    *handlers.RulesHandler
	SenderHandler   *handlers.SenderHandler
	Verifier        *auth.KeyVerifier
	Limiter         *ratelimit.Limiter
	DB              handlers.Pinger
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)

	r.Get("/healthz", handlers.HandleHealth(deps.DB))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter))
		r.Use(middleware.RequireAPIKey(deps.Verifier))
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Post("/subscriptions", deps.AnalysisHandler.HandleSubscriptions)
		r.Post("/rates", deps.AnalysisHandler.HandleRates)
		r.Post("/cleanup", deps.AnalysisHandler.HandleCleanup)

		r.Get("/mailbox/subscriptions", deps.AnalysisHandler.HandleMailboxSubscriptions)
		r.Get("/mailbox/cleanup", deps.AnalysisHandler.HandleMailboxCleanup)

		r.Get("/rules", deps.RulesHandler.HandleGet)
		r.Post("/rules/shield", deps.RulesHandler.HandleShield)
		r.Post("/rules/rollup", deps.RulesHandler.HandleRollup)
		r.Post("/rules/whitelist", deps.RulesHandler.HandleTrust)
		r.Delete("/rules/whitelist/{sender}", deps.RulesHandler.HandleUntrust)
		r.Delete("/rules/{sender}", deps.RulesHandler.HandleRemove)

		r.Post("/senders/actions", deps.SenderHandler.HandleRecordAction)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})

	return r
}
