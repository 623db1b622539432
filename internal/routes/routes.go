package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/minted-protocol/canton-bridge/internal/config"
	"github.com/minted-protocol/canton-bridge/internal/conversion"
	"github.com/minted-protocol/canton-bridge/internal/funding"
	"github.com/minted-protocol/canton-bridge/internal/idempotency"
	"github.com/minted-protocol/canton-bridge/internal/identity"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/middleware"
	"github.com/minted-protocol/canton-bridge/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Ledger ledger.Client
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	resolver, err := identity.NewResolver(
		d.Cfg.OperatorParty,
		"",
		d.Cfg.PartyAliases,
		d.Cfg.AliasAllowOperator,
	)
	if err != nil {
		// Fail closed at startup: a bad alias table must never serve
		// requests.
		return err
	}

	// The idempotency store backend escalates with what the deployment
	// provides: in-process by default, redis when shared, postgres when
	// conversion history must survive restarts.
	var store idempotency.Store
	switch {
	case d.DB != nil:
		pg := idempotency.NewPostgresStore(d.DB, d.Cfg.IdempotencyTTL)
		if err := pg.Migrate(context.Background()); err != nil {
			return err
		}
		store = pg
	case d.Cache != nil:
		store = idempotency.NewRedisStore(d.Cache, d.Cfg.IdempotencyTTL)
	default:
		store = idempotency.NewMemoryStore(d.Cfg.IdempotencyTTL, d.Cfg.IdempotencyCapacity)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	conversionSvc := conversion.NewService(
		d.Ledger, resolver, store, d.Cfg.PackageID, d.Cfg.OperatorParty, notifier, d.Logger,
	)
	conversionHandler := conversion.NewHandler(conversionSvc, d.Cfg.FallbackEnabled)

	fundingSvc := funding.NewService(d.Ledger, resolver, d.Cfg.PackageID, d.Cfg.OperatorParty, funding.Options{
		Enabled:   d.Cfg.FundingEnabled,
		Allowlist: d.Cfg.FundingAllowlist,
		DailyCap:  d.Cfg.FundingDailyCap,
		Cooldown:  d.Cfg.FundingCooldown,
	}, d.Logger)
	fundingHandler := funding.NewHandler(fundingSvc)

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterConversionRoutes(api, conversionHandler)
	RegisterFundingRoutes(api, fundingHandler)

	return nil
}
