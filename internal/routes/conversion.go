package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minted-protocol/canton-bridge/internal/conversion"
)

// RegisterConversionRoutes wires the conversion endpoints.
func RegisterConversionRoutes(r fiber.Router, h *conversion.Handler) {
	r.Post("/convert", h.Convert)
	r.Post("/redeem", h.Redeem)
	r.Get("/inventory", h.Inventory)
}
