package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minted-protocol/canton-bridge/internal/funding"
)

// RegisterFundingRoutes wires the operator-funded provisioning endpoint.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/fund", h.Fund)
}
