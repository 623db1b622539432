package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/batch"
	"github.com/minted-protocol/canton-bridge/internal/identity"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/selection"
)

// ErrorCode is the stable discriminant for funding failures.
type ErrorCode string

const (
	CodeDisabled              ErrorCode = "DISABLED"
	CodeNotAllowlisted        ErrorCode = "NOT_ALLOWLISTED"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
	CodeInvalidInput          ErrorCode = "INVALID_INPUT"
	CodeConfigError           ErrorCode = "CONFIG_ERROR"
	CodeInsufficientInventory ErrorCode = "INSUFFICIENT_OPERATOR_INVENTORY"
	CodeUpstreamError         ErrorCode = "UPSTREAM_ERROR"
)

// Error is a typed funding failure. NextAllowedAt is only set for
// CodeRateLimited.
type Error struct {
	Code          ErrorCode
	Message       string
	NextAllowedAt time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Options configures the provisioning policy, captured once at startup.
type Options struct {
	Enabled   bool
	Allowlist []string
	DailyCap  decimal.Decimal
	Cooldown  time.Duration
}

// Service hands out small operator-funded CIP-56 grants so fresh parties can
// exercise the bridge without first holding legacy tokens. Policy checks
// (enabled, allowlist, quota) all precede any ledger I/O.
type Service struct {
	ledger    ledger.Client
	resolver  *identity.Resolver
	limiter   *RateLimiter
	builder   *batch.Builder
	opts      Options
	allowlist map[string]bool
	operator  string
	packageID string
	logger    *slog.Logger
}

// NewService wires the provisioning service.
func NewService(
	client ledger.Client,
	resolver *identity.Resolver,
	packageID, operator string,
	opts Options,
	logger *slog.Logger,
) *Service {
	allow := make(map[string]bool, len(opts.Allowlist))
	for _, p := range opts.Allowlist {
		allow[p] = true
	}
	return &Service{
		ledger:    client,
		resolver:  resolver,
		limiter:   NewRateLimiter(opts.Cooldown, opts.DailyCap),
		builder:   batch.NewBuilder(packageID, operator),
		opts:      opts,
		allowlist: allow,
		operator:  operator,
		packageID: packageID,
		logger:    logger,
	}
}

// Result is the successful funding outcome.
type Result struct {
	Party              string
	Amount             decimal.Decimal
	InventoryRemaining decimal.Decimal
	RemainingDailyCap  decimal.Decimal
	NextAllowedAt      time.Time
}

// Fund grants rawAmount of CIP-56 tokens from the operator inventory to the
// resolved party.
func (s *Service) Fund(ctx context.Context, rawParty, rawAmount string) (Result, error) {
	if !s.opts.Enabled {
		return Result{}, &Error{Code: CodeDisabled, Message: "operator-funded provisioning is disabled"}
	}

	resolved, err := s.resolver.Resolve(rawParty)
	if err != nil {
		return Result{}, &Error{Code: CodeInvalidInput, Message: err.Error()}
	}
	party := resolved.Resolved

	if len(s.allowlist) > 0 && !s.allowlist[party] {
		return Result{}, &Error{Code: CodeNotAllowlisted, Message: fmt.Sprintf("%s is not allowlisted", resolved.Requested)}
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil || !amount.IsPositive() {
		return Result{}, &Error{Code: CodeInvalidInput, Message: fmt.Sprintf("amount %q must be a positive decimal", rawAmount)}
	}

	if ok, next := s.limiter.Check(party, amount); !ok {
		return Result{}, &Error{
			Code:          CodeRateLimited,
			Message:       fmt.Sprintf("quota exhausted for %s", resolved.Requested),
			NextAllowedAt: next,
		}
	}

	offset, err := s.ledger.LedgerEnd(ctx)
	if err != nil {
		return Result{}, s.upstream(err)
	}

	tokens, reserved, err := s.operatorTokens(ctx, offset)
	if err != nil {
		return Result{}, err
	}

	chosen, _, err := selection.SelectInventory(selection.SortByAmountDesc(tokens), amount, reserved)
	if err != nil {
		return Result{}, &Error{Code: CodeInsufficientInventory, Message: fmt.Sprintf("operator inventory cannot cover %s", amount)}
	}

	plan, err := s.builder.Transfer(party, ledger.SchemaCIP56, amount, chosen)
	if err != nil {
		return Result{}, &Error{Code: CodeConfigError, Message: err.Error()}
	}

	if err := s.ledger.Submit(ctx, plan.Batch); err != nil {
		return Result{}, s.upstream(err)
	}

	s.limiter.Record(party, amount)

	s.logger.Info("provisioning grant submitted",
		slog.String("party", party),
		slog.String("amount", amount.String()),
		slog.String("batch_id", plan.Batch.CommandID),
	)

	return Result{
		Party:              party,
		Amount:             amount,
		InventoryRemaining: plan.OperatorSum.Sub(amount),
		RemainingDailyCap:  s.limiter.Remaining(party),
		NextAllowedAt:      time.Now().Add(s.opts.Cooldown),
	}, nil
}

func (s *Service) operatorTokens(ctx context.Context, offset int64) ([]ledger.TokenContract, map[string]bool, error) {
	contracts, err := s.ledger.ActiveContracts(ctx, s.operator, offset)
	if err != nil {
		return nil, nil, s.upstream(err)
	}

	var tokens []ledger.TokenContract
	reserved := map[string]bool{}
	for _, ac := range contracts {
		if ac.Template.PackageID != s.packageID {
			continue
		}
		switch ac.Template.Entity {
		case ledger.EntityCip56Token:
			token, err := ledger.ParseToken(ac)
			if err != nil {
				return nil, nil, &Error{Code: CodeConfigError, Message: err.Error()}
			}
			if token.Owner == s.operator {
				tokens = append(tokens, token)
			}
		case ledger.EntityStakingService, ledger.EntityBoostPool:
			for _, field := range []string{"pooledTokenCid", "reserveTokenCid"} {
				if cid, ok := ac.Fields[field].(string); ok && cid != "" {
					reserved[cid] = true
				}
			}
			if locked, ok := ac.Fields["lockedTokenCids"].([]any); ok {
				for _, v := range locked {
					if cid, ok := v.(string); ok && cid != "" {
						reserved[cid] = true
					}
				}
			}
		}
	}
	return tokens, reserved, nil
}

func (s *Service) upstream(err error) error {
	status, _ := ledger.StatusOf(err)
	return &Error{Code: CodeUpstreamError, Message: fmt.Sprintf("ledger failure (status %d): %v", status, err)}
}

// AsError extracts a typed funding error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
