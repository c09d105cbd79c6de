package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/securemind/api"
	"github.com/frahmantamala/securemind/internal/admin"
	"github.com/frahmantamala/securemind/internal/auth"
	"github.com/frahmantamala/securemind/internal/gate"
	"github.com/frahmantamala/securemind/internal/notification"
	"github.com/frahmantamala/securemind/internal/registration"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
	"github.com/frahmantamala/securemind/internal/transport/middleware"
	"github.com/frahmantamala/securemind/internal/transport/rest"
	"github.com/frahmantamala/securemind/internal/user"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API and callable requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	router, err := newRouter(ctx, app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build router: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: app.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       app.Config.Server.ReadTimeout,
		WriteTimeout:      app.Config.Server.WriteTimeout,
		IdleTimeout:       app.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			app.Close()
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func newRouter(ctx context.Context, app *App) (*chi.Mux, error) {
	base := transport.NewBaseHandler(app.Logger)

	validator, err := middleware.NewRequestValidator(api.OpenAPI, base)
	if err != nil {
		return nil, err
	}

	authHandler := auth.NewHandler(base, app.Auth)
	registrationHandler := registration.NewHandler(base, app.Registration)
	adminHandler := admin.NewHandler(base, app.Admin)
	notificationHandler := notification.NewHandler(base, app.Notifications)

	callables := callable.NewServer(base)
	callables.RegisterAll(registrationHandler, adminHandler, notificationHandler)

	opts := rest.Options{
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(ctx, app.Config.RateLimit.RequestsPerSecond, app.Config.RateLimit.Burst),
		Validator:      validator,
		OpenAPI:        api.OpenAPI,
	}
	if app.Config.Observability.Metrics.Enabled {
		opts.MetricsPath = app.Config.Observability.Metrics.Path
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, app.DB, base, rest.Handlers{
		Auth:         authHandler,
		User:         user.NewHandler(base, app.Users),
		Registration: registrationHandler,
		Gate:         gate.NewHandler(base, app.Gate),
		Admin:        adminHandler,
		Notification: notificationHandler,
		Callable:     callables,
	}, opts)

	slog.Info("callable functions registered", "names", callables.Names())
	return router, nil
}
