package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/batch"
	"github.com/minted-protocol/canton-bridge/internal/idempotency"
	"github.com/minted-protocol/canton-bridge/internal/identity"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/notification"
	"github.com/minted-protocol/canton-bridge/internal/selection"
)

// Service orchestrates request-level conversions: identity resolution,
// ledger queries, double selection, batch assembly, atomic submission and
// outcome memoization. It holds no per-request state; the idempotency store
// is the only shared mutable structure it touches.
type Service struct {
	ledger    ledger.Client
	resolver  *identity.Resolver
	store     idempotency.Store
	builder   *batch.Builder
	operator  string
	packageID string
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService wires the orchestrator.
func NewService(
	client ledger.Client,
	resolver *identity.Resolver,
	store idempotency.Store,
	packageID, operator string,
	notifier notification.Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:    client,
		resolver:  resolver,
		store:     store,
		builder:   batch.NewBuilder(packageID, operator),
		operator:  operator,
		packageID: packageID,
		notifier:  notifier,
		logger:    logger,
	}
}

// Convert exchanges rawAmount of the caller's legacy tokens for CIP-56
// tokens out of the operator inventory, 1:1 via locked escrow.
func (s *Service) Convert(ctx context.Context, rawParty, rawAmount string) (idempotency.Record, error) {
	return s.exchange(ctx, rawParty, rawAmount, ledger.SchemaLegacy, ledger.SchemaCIP56, "convert")
}

// Redeem is the reverse leg: CIP-56 tokens back into legacy tokens.
func (s *Service) Redeem(ctx context.Context, rawParty, rawAmount string) (idempotency.Record, error) {
	return s.exchange(ctx, rawParty, rawAmount, ledger.SchemaCIP56, ledger.SchemaLegacy, "redeem")
}

func (s *Service) exchange(
	ctx context.Context,
	rawParty, rawAmount string,
	sourceSchema, targetSchema ledger.SchemaKind,
	prefix string,
) (idempotency.Record, error) {
	resolved, err := s.resolver.Resolve(rawParty)
	if err != nil {
		return idempotency.Record{}, NewError(TypeInvalidIdentity, err, "party %q: %v", rawParty, err)
	}
	party := resolved.Resolved

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return idempotency.Record{}, NewError(TypeInvalidInput, err, "amount %q is not a decimal", rawAmount)
	}
	if !amount.IsPositive() {
		return idempotency.Record{}, NewError(TypeInvalidInput, nil, "amount must be positive, got %s", amount)
	}

	offset, err := s.ledger.LedgerEnd(ctx)
	if err != nil {
		return idempotency.Record{}, s.upstream(err, "ledger end")
	}

	sourceTokens, _, err := s.partyState(ctx, party, offset, sourceSchema)
	if err != nil {
		return idempotency.Record{}, err
	}
	if len(sourceTokens) == 0 {
		return idempotency.Record{}, NewError(TypeInsufficientBalance, selection.ErrInsufficientBalance,
			"%s holds no %s tokens", resolved.Requested, sourceSchema)
	}

	sourceSelection, _, err := selection.Select(selection.SortByAmountDesc(sourceTokens), amount, nil)
	if err != nil {
		return idempotency.Record{}, NewError(TypeInsufficientBalance, err,
			"%s cannot cover %s %s", resolved.Requested, amount, sourceSchema)
	}

	// The key binds to the caller's selected source ids only; the operator
	// selection may legitimately vary between otherwise identical runs.
	key := idempotency.Key(prefix, contractIDs(sourceSelection), amount, party)
	if record, ok := s.store.Get(key); ok {
		s.logger.Info("conversion replayed from idempotency store",
			slog.String("party", party),
			slog.String("batch_id", record.BatchID),
		)
		return record, nil
	}

	operatorTokens, reserved, err := s.partyState(ctx, s.operator, offset, targetSchema)
	if err != nil {
		return idempotency.Record{}, err
	}

	operatorSelection, _, err := selection.SelectInventory(selection.SortByAmountDesc(operatorTokens), amount, reserved)
	if err != nil {
		return idempotency.Record{}, NewError(TypeInsufficientInventory, err,
			"operator inventory cannot cover %s %s", amount, targetSchema)
	}

	plan, err := s.builder.Convert(party, sourceSchema, targetSchema, amount, sourceSelection, operatorSelection)
	if err != nil {
		return idempotency.Record{}, NewError(TypeConfigError, err, "assemble batch: %v", err)
	}

	// No automatic retry here: a failed submission surfaces its upstream
	// status for the caller's own fallback classification.
	if err := s.ledger.Submit(ctx, plan.Batch); err != nil {
		return idempotency.Record{}, s.upstream(err, "submit batch")
	}

	record := idempotency.Record{
		Success:          true,
		ConvertedAmount:  amount.String(),
		SourceSchema:     string(sourceSchema),
		TargetSchema:     string(targetSchema),
		BatchID:          plan.Batch.CommandID,
		LockedSourceIDs:  plan.LockedSourceIDs,
		ReleasedTokenIDs: plan.ArchivedOperator,
		Timestamp:        time.Now().UTC(),
	}
	s.store.Set(key, record)

	s.logger.Info("conversion submitted",
		slog.String("party", party),
		slog.String("amount", amount.String()),
		slog.String("source_schema", string(sourceSchema)),
		slog.String("batch_id", record.BatchID),
		slog.Int("locked_sources", len(record.LockedSourceIDs)),
	)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindConversion,
			Destination: party,
			Body:        fmt.Sprintf("Converted %s %s to %s", amount, sourceSchema, targetSchema),
		})
	}

	return record, nil
}

// Inventory summarizes the operator pool for the given schema: total
// spendable amount after reservation exclusions, contract count and the
// reserved id count.
type Inventory struct {
	Schema    ledger.SchemaKind
	Available decimal.Decimal
	Contracts int
	Reserved  int
}

// OperatorInventory reports the operator's spendable pool per schema.
func (s *Service) OperatorInventory(ctx context.Context, schema ledger.SchemaKind) (Inventory, error) {
	offset, err := s.ledger.LedgerEnd(ctx)
	if err != nil {
		return Inventory{}, s.upstream(err, "ledger end")
	}
	tokens, reserved, err := s.partyState(ctx, s.operator, offset, schema)
	if err != nil {
		return Inventory{}, err
	}

	inv := Inventory{Schema: schema, Reserved: len(reserved)}
	for _, t := range tokens {
		if reserved[t.ID] {
			continue
		}
		inv.Available = inv.Available.Add(t.Amount)
		inv.Contracts++
	}
	return inv, nil
}

// partyState queries the ACS and splits it into the party's tokens of the
// wanted schema and the reserved contract ids advertised by pool service
// contracts. Contracts from foreign packages are ignored; malformed token
// payloads reject the request rather than silently skewing sums.
func (s *Service) partyState(ctx context.Context, party string, offset int64, schema ledger.SchemaKind) ([]ledger.TokenContract, map[string]bool, error) {
	contracts, err := s.ledger.ActiveContracts(ctx, party, offset)
	if err != nil {
		return nil, nil, s.upstream(err, "active contracts")
	}

	var tokens []ledger.TokenContract
	reserved := map[string]bool{}

	for _, ac := range contracts {
		if ac.Template.PackageID != s.packageID {
			continue
		}
		switch ac.Template.Entity {
		case ledger.TokenEntity(schema):
			token, err := ledger.ParseToken(ac)
			if err != nil {
				return nil, nil, NewError(TypeConfigError, err, "parse token %s: %v", ac.ID, err)
			}
			if token.Owner != party {
				continue
			}
			tokens = append(tokens, token)
		case ledger.EntityStakingService, ledger.EntityBoostPool:
			collectReserved(ac.Fields, reserved)
		}
	}
	return tokens, reserved, nil
}

// collectReserved pulls pool-held collateral ids out of a service contract
// payload. A staking pool's locked token must never be spendable inventory.
func collectReserved(fields map[string]any, reserved map[string]bool) {
	for _, field := range []string{"pooledTokenCid", "reserveTokenCid"} {
		if cid, ok := fields[field].(string); ok && cid != "" {
			reserved[cid] = true
		}
	}
	if locked, ok := fields["lockedTokenCids"].([]any); ok {
		for _, v := range locked {
			if cid, ok := v.(string); ok && cid != "" {
				reserved[cid] = true
			}
		}
	}
}

func (s *Service) upstream(err error, op string) error {
	status, _ := ledger.StatusOf(err)
	typed := NewError(TypeUpstreamError, err, "%s: %v", op, err)
	typed.UpstreamStatus = status
	return typed
}

func contractIDs(contracts []ledger.TokenContract) []string {
	ids := make([]string, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	return ids
}
