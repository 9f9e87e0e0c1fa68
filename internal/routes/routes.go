package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/backoffice/internal/account"
	"github.com/congo-pay/backoffice/internal/auth"
	"github.com/congo-pay/backoffice/internal/config"
	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/importer"
	"github.com/congo-pay/backoffice/internal/ledger"
	"github.com/congo-pay/backoffice/internal/middleware"
	"github.com/congo-pay/backoffice/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Stores
	var (
		store        ledger.Store
		auditStore   ledger.AuditStore
		identityRepo identity.Repository
	)
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB)
		store, auditStore = pg, pg
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		mem := ledger.NewInMemory()
		store, auditStore = mem, mem
		identityRepo = identity.NewMemoryRepository()
	}

	// Services and handlers
	ledgerSvc := ledger.NewService(store, auditStore, d.Notifier, d.Logger, ledger.Options{
		StoreTimeout: d.Cfg.StoreTimeout,
		BulkWorkers:  d.Cfg.BulkWorkers,
	})
	accountSvc := account.NewService(store, ledgerSvc, d.Logger)
	importSvc := importer.NewService(ledgerSvc, d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	if d.Cfg.BootstrapAdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		admin, err := identitySvc.EnsureBootstrap(ctx, d.Cfg.BootstrapAdminEmail, d.Cfg.BootstrapAdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		d.Logger.Info("bootstrap superadmin ready", slog.String("user_id", admin.ID), slog.String("email", admin.Email))
	}

	authHandler := auth.NewHandler(identitySvc, authSvc)
	ledgerHandler := ledger.NewHandler(ledgerSvc, auth.ActorFrom)
	accountHandler := account.NewHandler(accountSvc, auth.ActorFrom)
	importHandler := importer.NewHandler(importSvc, auth.ActorFrom)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocalKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(authSvc)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit), jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger, "/api/v1/auth/"))
	}
	RegisterStaffRoutes(protected, authHandler)
	read := middleware.RequireRole(identity.RoleAdmin, identity.RoleSuperAdmin, identity.RoleAuditor)
	write := middleware.RequireRole(identity.RoleAdmin, identity.RoleSuperAdmin)
	RegisterLedgerRoutes(protected, ledgerHandler, accountHandler, importHandler, read, write)

	return nil
}
