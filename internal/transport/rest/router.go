package rest

import (
	"net/http"

	"github.com/frahmantamala/securemind/internal/admin"
	"github.com/frahmantamala/securemind/internal/auth"
	"github.com/frahmantamala/securemind/internal/gate"
	"github.com/frahmantamala/securemind/internal/notification"
	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/registration"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
	"github.com/frahmantamala/securemind/internal/transport/middleware"
	"github.com/frahmantamala/securemind/internal/transport/swagger"
	"github.com/frahmantamala/securemind/internal/user"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
)

const OpenAPIPath = "/openapi.yml"

type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Registration *registration.Handler
	Gate         *gate.Handler
	Admin        *admin.Handler
	Notification *notification.Handler
	Callable     *callable.Server
}

// Options toggles the optional layers. A nil limiter or validator is skipped;
// an empty MetricsPath disables the metrics endpoint.
type Options struct {
	AllowedOrigins string
	RateLimiter    *middleware.RateLimiter
	Validator      *middleware.RequestValidator
	MetricsPath    string
	OpenAPI        []byte
}

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, base *transport.BaseHandler, h Handlers, opts Options) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(base))
	router.Use(middleware.LoggingMiddleware(opts.MetricsPath, "/api/v1/ping"))
	if opts.MetricsPath != "" {
		router.Use(obs.Instrument)
		router.Handle(opts.MetricsPath, obs.Handler())
	}

	if opts.OpenAPI != nil {
		router.Get(OpenAPIPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(opts.OpenAPI)
		})
		router.Handle("/swagger/*", swagger.Handler(OpenAPIPath))
	}

	rateLimited := func(next http.Handler) http.Handler {
		if opts.RateLimiter == nil {
			return next
		}
		return opts.RateLimiter.Middleware(next)
	}
	// Contract checks run after authentication and role checks so callers
	// without access never learn the request shape.
	validated := func(next http.Handler) http.Handler {
		if opts.Validator == nil {
			return next
		}
		return opts.Validator.Middleware(next)
	}

	// Mount API under /api/v1 to match the OpenAPI paths
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.With(rateLimited, validated).Post("/signup", h.Auth.Signup)
			sr.With(rateLimited, validated).Post("/login", h.Auth.Login)
			sr.With(validated).Post("/refresh", h.Auth.RefreshToken)
		})

		// Callable functions authorize per function before decoding data.
		if h.Callable != nil {
			r.With(h.Auth.OptionalAuthMiddleware).Post("/callable/{name}", h.Callable.ServeHTTP)
		}
		if h.Gate != nil {
			r.With(h.Auth.OptionalAuthMiddleware, validated).Get("/session/gate", h.Gate.Check)
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.With(validated).Get("/users/me", h.User.GetCurrentUser)
			}
			if h.Registration != nil {
				pr.With(validated).Post("/registration/complete", h.Registration.Complete)
			}

			if h.Admin != nil {
				pr.Route("/admin/users", func(ar chi.Router) {
					ar.Use(h.Auth.RequireRole(roles.Admin))
					ar.Use(validated)
					ar.Post("/", h.Admin.CreateUser)
					ar.Put("/", h.Admin.UpdateUser)
					ar.Delete("/", h.Admin.DeleteUser)
					ar.Patch("/{uid}", h.Admin.UpdateUser)
					ar.Delete("/{uid}", h.Admin.DeleteUser)
					ar.Post("/{uid}/role", h.Admin.SetRole)
				})
			}

			if h.Notification != nil {
				pr.Group(func(nr chi.Router) {
					nr.Use(h.Auth.RequireRole(roles.Admin))
					nr.Use(validated)
					nr.Post("/notifications/facts/broadcast", h.Notification.BroadcastFact)
					nr.Post("/notifications/policies/broadcast", h.Notification.BroadcastPolicy)
				})
				pr.With(h.Auth.RequireRole(roles.Admin, roles.Security), validated).Post("/facts", h.Notification.PublishFact)
			}
		})
	})
}
