package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nffg-orchestrator/infrastructure/config"
	"nffg-orchestrator/interfaces/http/rest/handlers"
	"nffg-orchestrator/interfaces/http/rest/middleware"
	"nffg-orchestrator/pkg/auth"
)

// RouterDeps carries everything the HTTP surface needs
type RouterDeps struct {
	Config       *config.Config
	Logger       *zap.Logger
	NFFGHandler  *handlers.NFFGHandler
	AuthHandler  *handlers.AuthHandler
	JWTValidator *auth.JWTValidator
	Resolver     auth.TenantResolver
}

// NewRouter assembles the REST interface
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.Logger(deps.Logger))

	if deps.Config.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "DELETE", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-User", "X-Auth-Pass"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", deps.AuthHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.JWTValidator, deps.Resolver, deps.Logger))

		r.Route("/nffg", func(r chi.Router) {
			r.Put("/", deps.NFFGHandler.PutGraph)
			r.Get("/{graphID}", deps.NFFGHandler.GetGraph)
			r.Delete("/{graphID}", deps.NFFGHandler.DeleteGraph)
			r.Get("/{graphID}/status", deps.NFFGHandler.GetStatus)
		})
	})

	return r
}
