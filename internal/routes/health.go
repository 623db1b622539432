package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ledgerStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.Ledger != nil {
			if _, err := d.Ledger.LedgerEnd(ctx); err != nil {
				ledgerStatus = err.Error()
			}
		}
		status := http.StatusOK
		if ledgerStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"ledger": ledgerStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
