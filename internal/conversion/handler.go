package conversion

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/minted-protocol/canton-bridge/internal/fallback"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

// Handler exposes conversion endpoints.
type Handler struct {
	service *Service
	// fallbackEnabled is the deployment-wide flag gating whether callers
	// may act on an "allow" classification after an upstream failure.
	fallbackEnabled bool
}

// NewHandler constructs a conversion handler.
func NewHandler(service *Service, fallbackEnabled bool) *Handler {
	return &Handler{service: service, fallbackEnabled: fallbackEnabled}
}

// Convert processes a legacy → CIP-56 conversion.
func (h *Handler) Convert(c *fiber.Ctx) error {
	var req ExchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.writeError(c, NewError(TypeInvalidInput, err, "malformed request body"))
	}
	record, err := h.service.Convert(c.UserContext(), req.Party, req.Amount)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toRecordResponse(record))
}

// Redeem processes the reverse CIP-56 → legacy conversion.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req ExchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.writeError(c, NewError(TypeInvalidInput, err, "malformed request body"))
	}
	record, err := h.service.Redeem(c.UserContext(), req.Party, req.Amount)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toRecordResponse(record))
}

// Inventory reports the operator's spendable CIP-56 pool.
func (h *Handler) Inventory(c *fiber.Ctx) error {
	inv, err := h.service.OperatorInventory(c.UserContext(), ledger.SchemaCIP56)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(InventoryResponse{
		Schema:    string(inv.Schema),
		Available: inv.Available.String(),
		Contracts: inv.Contracts,
		Reserved:  inv.Reserved,
	})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	if typed, ok := AsError(err); ok {
		resp := ErrorResponse{
			Error:     typed.Message,
			ErrorType: string(typed.Type),
		}
		if typed.Type == TypeUpstreamError {
			// Tell the caller whether retreating to the legacy path is an
			// option for this failure class.
			classified := fallback.Classify(typed.UpstreamStatus)
			resp.Fallback = &FallbackAdvice{
				Decision:  string(classified.Decision),
				Reason:    classified.Reason,
				Permitted: fallback.Permitted(h.fallbackEnabled, classified),
			}
		}
		return c.Status(typed.HTTPStatus()).JSON(resp)
	}
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Error:     err.Error(),
		ErrorType: string(TypeConfigError),
	})
}
