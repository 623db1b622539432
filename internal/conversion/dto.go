package conversion

import (
	"time"

	"github.com/minted-protocol/canton-bridge/internal/idempotency"
)

// ExchangeRequest captures user-provided data for a convert or redeem call.
type ExchangeRequest struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

// RecordResponse is the API shape of a conversion record.
type RecordResponse struct {
	Success          bool      `json:"success"`
	ConvertedAmount  string    `json:"convertedAmount"`
	SourceSchema     string    `json:"sourceSchema"`
	TargetSchema     string    `json:"targetSchema"`
	BatchID          string    `json:"batchId"`
	LockedSourceIDs  []string  `json:"lockedSourceIds"`
	ReleasedTokenIDs []string  `json:"releasedSourceIds"`
	Timestamp        time.Time `json:"timestamp"`
}

// ErrorResponse is the uniform error body; ErrorType is stable and safe to
// branch on. Fallback is only present on upstream failures.
type ErrorResponse struct {
	Error     string          `json:"error"`
	ErrorType string          `json:"errorType"`
	Fallback  *FallbackAdvice `json:"fallback,omitempty"`
}

// FallbackAdvice tells callers whether retrying against the legacy path is
// permitted after an upstream failure. Decision and Reason come from the
// classifier; Permitted additionally applies the deployment's fallback flag.
type FallbackAdvice struct {
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	Permitted bool   `json:"permitted"`
}

// InventoryResponse summarizes the operator pool.
type InventoryResponse struct {
	Schema    string `json:"schema"`
	Available string `json:"available"`
	Contracts int    `json:"contracts"`
	Reserved  int    `json:"reserved"`
}

func toRecordResponse(record idempotency.Record) RecordResponse {
	return RecordResponse{
		Success:          record.Success,
		ConvertedAmount:  record.ConvertedAmount,
		SourceSchema:     record.SourceSchema,
		TargetSchema:     record.TargetSchema,
		BatchID:          record.BatchID,
		LockedSourceIDs:  record.LockedSourceIDs,
		ReleasedTokenIDs: record.ReleasedTokenIDs,
		Timestamp:        record.Timestamp,
	}
}
