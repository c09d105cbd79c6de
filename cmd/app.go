package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/admin"
	"github.com/frahmantamala/securemind/internal/auth"
	"github.com/frahmantamala/securemind/internal/claims"
	claimsPostgres "github.com/frahmantamala/securemind/internal/claims/postgres"
	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/directory"
	directoryPostgres "github.com/frahmantamala/securemind/internal/directory/postgres"
	"github.com/frahmantamala/securemind/internal/gate"
	"github.com/frahmantamala/securemind/internal/identity"
	identityPostgres "github.com/frahmantamala/securemind/internal/identity/postgres"
	"github.com/frahmantamala/securemind/internal/notification"
	notificationPostgres "github.com/frahmantamala/securemind/internal/notification/postgres"
	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/queue"
	"github.com/frahmantamala/securemind/internal/registration"
	registrationPostgres "github.com/frahmantamala/securemind/internal/registration/postgres"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
	userPostgres "github.com/frahmantamala/securemind/internal/user/postgres"
	"github.com/frahmantamala/securemind/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// App holds every service built from one configuration. Commands take the
// parts they need.
type App struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Bus    *events.EventBus

	Identity      *identity.Provider
	Users         *user.Service
	Directory     *directory.Service
	Preapprovals  registration.PreapprovalRepositoryAPI
	Propagator    *claims.Propagator
	Reconciler    *claims.Reconciler
	Registration  *registration.Service
	Admin         *admin.Service
	Auth          *auth.Service
	Gate          *gate.Gate
	Broadcaster   *notification.Broadcaster
	Notifications *notification.Service

	Rabbit    *queue.RabbitmqClient
	Forwarder *events.Forwarder

	closers []func() error
}

func newApp(ctx context.Context) (*App, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	if cfg.Observability.Metrics.Enabled {
		obs.Init()
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app := &App{Config: cfg, Logger: lg, DB: db}
	app.closers = append(app.closers, db.Close)

	app.Gorm, err = gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	privateKey, err := cfg.Security.GetPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	issuer := identity.NewTokenIssuer(privateKey, cfg.Security.Issuer, cfg.Security.IDTokenDuration, cfg.Security.RefreshTokenDuration)
	a.Identity = identity.NewProvider(identityPostgres.NewAccountRepository(a.Gorm), issuer, identity.Options{
		BCryptCost:        cfg.Security.BCryptCost,
		MinPasswordLength: cfg.Security.MinPasswordLength,
	}, a.Logger)

	a.Bus = events.NewEventBus(a.Logger)
	a.Users = user.NewService(userPostgres.NewUserRepository(a.Gorm), a.Logger)
	a.Directory = directory.NewService(directoryPostgres.NewEmployeeRepository(a.Gorm), a.Logger)
	a.Preapprovals = registrationPostgres.NewPreapprovalRepository(a.Gorm)

	a.Propagator = claims.NewPropagator(a.Identity, a.Users, claims.RetryConfig{
		Attempts:  cfg.Claims.RetryAttempts,
		BaseDelay: cfg.Claims.RetryBaseDelay,
	}, a.Logger)
	a.Reconciler = claims.NewReconciler(claimsPostgres.NewRoleStateRepository(a.DB), a.Propagator, a.Users,
		cfg.Reconcile.Workers, cfg.Claims.LegacyRoleFlag, a.Logger)

	resolver := roles.NewResolver(a.Directory, a.Preapprovals, a.Logger)
	a.Registration = registration.NewService(resolver, a.Directory, a.Propagator, a.Preapprovals,
		registration.Config{LegacyRoleFlag: cfg.Claims.LegacyRoleFlag}, a.Logger).WithEvents(a.Bus)
	a.Registration.RegisterEventHandlers(a.Bus)

	a.Admin = admin.NewService(a.Identity, a.Users, a.Directory, a.Propagator,
		admin.Config{LegacyRoleFlag: cfg.Claims.LegacyRoleFlag}, a.Logger).WithEvents(a.Bus)
	a.Auth = auth.NewService(a.Identity, a.Bus, a.Logger)
	a.Gate = gate.New(a.Identity, a.Users, a.Logger)

	a.Broadcaster = notification.NewBroadcaster(a.Users, notificationPostgres.NewNotificationRepository(a.Gorm), notification.BroadcasterConfig{
		BatchSize:     cfg.Notifications.BatchSize,
		RoleChunkSize: cfg.Notifications.RoleChunkSize,
	}, a.Logger)
	a.Notifications = notification.NewService(notificationPostgres.NewFactRepository(a.Gorm), a.Broadcaster, a.Logger)

	if cfg.Messaging.RabbitMQURL != "" {
		rabbit, err := queue.NewClient(cfg.Messaging.RabbitMQURL)
		if err != nil {
			// Notifications are still written; only the downstream delivery is lost.
			a.Logger.WarnContext(ctx, "rabbitmq unavailable, delivery jobs disabled", "error", err)
		} else if err := rabbit.CreateQueue(cfg.Notifications.DeliveryQueue); err != nil {
			_ = rabbit.Close()
			a.Logger.WarnContext(ctx, "declare delivery queue failed, delivery jobs disabled", "error", err)
		} else {
			a.Rabbit = rabbit
			a.closers = append(a.closers, rabbit.Close)
			a.Broadcaster.WithDelivery(queue.NewDeliveryPublisher(rabbit, cfg.Notifications.DeliveryQueue, a.Logger))
		}
	}

	if brokers := kafkaBrokers(cfg); len(brokers) > 0 {
		a.Forwarder = events.NewForwarder(events.NewKafkaWriter(brokers, cfg.Messaging.KafkaTopic), a.Logger)
		a.Forwarder.Attach(a.Bus)
		a.closers = append(a.closers, a.Forwarder.Close)
	}

	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}

func kafkaBrokers(cfg *internal.Config) []string {
	var brokers []string
	for _, b := range strings.Split(cfg.Messaging.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
