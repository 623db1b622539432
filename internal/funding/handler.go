package funding

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the provisioning endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// FundRequest captures the provisioning input.
type FundRequest struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

// FundResponse is the successful provisioning outcome.
type FundResponse struct {
	Party              string    `json:"party"`
	Amount             string    `json:"amount"`
	InventoryRemaining string    `json:"inventoryRemaining"`
	RemainingDailyCap  string    `json:"remainingDailyCap"`
	NextAllowedAt      time.Time `json:"nextAllowedAt"`
}

type errorResponse struct {
	Error         string     `json:"error"`
	ErrorType     string     `json:"errorType"`
	NextAllowedAt *time.Time `json:"nextAllowedAt,omitempty"`
}

// Fund processes an operator-funded provisioning request.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{
			Error:     err.Error(),
			ErrorType: string(CodeInvalidInput),
		})
	}

	res, err := h.service.Fund(c.UserContext(), req.Party, req.Amount)
	if err != nil {
		typed, ok := AsError(err)
		if !ok {
			return c.Status(http.StatusInternalServerError).JSON(errorResponse{
				Error:     err.Error(),
				ErrorType: string(CodeConfigError),
			})
		}
		body := errorResponse{Error: typed.Message, ErrorType: string(typed.Code)}
		if typed.Code == CodeRateLimited {
			next := typed.NextAllowedAt
			body.NextAllowedAt = &next
		}
		return c.Status(statusFor(typed.Code)).JSON(body)
	}

	return c.Status(http.StatusOK).JSON(FundResponse{
		Party:              res.Party,
		Amount:             res.Amount.String(),
		InventoryRemaining: res.InventoryRemaining.String(),
		RemainingDailyCap:  res.RemainingDailyCap.String(),
		NextAllowedAt:      res.NextAllowedAt,
	})
}

func statusFor(code ErrorCode) int {
	switch code {
	case CodeDisabled:
		return http.StatusServiceUnavailable
	case CodeNotAllowlisted:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInsufficientInventory:
		return http.StatusConflict
	case CodeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
