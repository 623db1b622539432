package replenish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

// Status is the final outcome of a replenishment run.
type Status string

const (
	// StatusAlreadyAboveTarget means no chunks were needed.
	StatusAlreadyAboveTarget Status = "AlreadyAboveTarget"
	// StatusTargetReached means re-queried inventory covers the target.
	StatusTargetReached Status = "TargetReached"
	// StatusExhausted means every planned chunk was submitted but the
	// target was not yet confirmed by the final query.
	StatusExhausted Status = "Exhausted"
	// StatusFailed means no chunk succeeded.
	StatusFailed Status = "Failed"
)

// ErrNoMintService indicates the operator holds no DirectMintService
// contract, so there is no mint path to drive.
var ErrNoMintService = errors.New("no direct mint service contract")

// Summary reports a run. Per-chunk failures are recorded, not fatal:
// partial replenishment is still useful.
type Summary struct {
	Starting     decimal.Decimal
	Target       decimal.Decimal
	Succeeded    int
	Failed       int
	Minted       decimal.Decimal
	Final        decimal.Decimal
	FinalStatus  Status
	StoppedEarly bool
	Errors       []string
}

// Replenisher tops the operator's CIP-56 inventory back up to a floor by
// driving chunked mint operations against the DirectMintService contract.
type Replenisher struct {
	ledger    ledger.Client
	packageID string
	operator  string
	maxTx     int
	logger    *slog.Logger
}

// New builds a replenisher; maxTx bounds the chunks of a single run.
func New(client ledger.Client, packageID, operator string, maxTx int, logger *slog.Logger) *Replenisher {
	if maxTx <= 0 {
		maxTx = 10
	}
	return &Replenisher{ledger: client, packageID: packageID, operator: operator, maxTx: maxTx, logger: logger}
}

// Run mints up to ceil(deficit/chunk) chunks (capped at maxTx), re-querying
// inventory after each so it can stop early once the target is covered.
func (r *Replenisher) Run(ctx context.Context, target, chunk decimal.Decimal) (Summary, error) {
	if !target.IsPositive() || !chunk.IsPositive() {
		return Summary{}, fmt.Errorf("target and chunk must be positive")
	}

	current, err := r.Inventory(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Starting: current, Target: target, Final: current, Minted: decimal.Zero}
	if current.GreaterThanOrEqual(target) {
		summary.FinalStatus = StatusAlreadyAboveTarget
		return summary, nil
	}

	deficit := target.Sub(current)
	txCount := int(deficit.Div(chunk).Ceil().IntPart())
	if txCount > r.maxTx {
		txCount = r.maxTx
	}

	mintCid, mintTemplate, err := r.mintService(ctx)
	if err != nil {
		return Summary{}, err
	}

	for i := 0; i < txCount; i++ {
		if err := r.mint(ctx, mintCid, mintTemplate, chunk); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err.Error())
			r.logger.Warn("mint chunk failed",
				slog.Int("chunk", i+1),
				slog.String("amount", chunk.String()),
				slog.Any("error", err),
			)
			continue
		}
		summary.Succeeded++
		summary.Minted = summary.Minted.Add(chunk)

		current, err = r.Inventory(ctx)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("requery: %v", err))
			break
		}
		summary.Final = current
		if current.GreaterThanOrEqual(target) {
			// Stopped on the re-query, not by exhausting the plan.
			summary.FinalStatus = StatusTargetReached
			summary.StoppedEarly = true
			return summary, nil
		}
	}

	summary.Final = current
	switch {
	case current.GreaterThanOrEqual(target):
		summary.FinalStatus = StatusTargetReached
	case summary.Succeeded == 0:
		summary.FinalStatus = StatusFailed
	default:
		summary.FinalStatus = StatusExhausted
	}
	return summary, nil
}

func (r *Replenisher) mint(ctx context.Context, cid string, template ledger.TemplateID, amount decimal.Decimal) error {
	cmd := ledger.Command{Exercise: &ledger.ExerciseCommand{
		TemplateID: template,
		ContractID: cid,
		Choice:     "DirectMint_Mint",
		ChoiceArgument: map[string]any{
			"amount": amount.String(),
		},
	}}
	return r.ledger.Submit(ctx, ledger.Batch{
		CommandID: fmt.Sprintf("replenish-%s", uuid.NewString()),
		ActAs:     []string{r.operator},
		Commands:  []ledger.Command{cmd},
	})
}

// Inventory sums the operator's spendable CIP-56 tokens, excluding
// pool-reserved collateral.
func (r *Replenisher) Inventory(ctx context.Context) (decimal.Decimal, error) {
	offset, err := r.ledger.LedgerEnd(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	contracts, err := r.ledger.ActiveContracts(ctx, r.operator, offset)
	if err != nil {
		return decimal.Zero, err
	}

	reserved := map[string]bool{}
	for _, ac := range contracts {
		if ac.Template.PackageID != r.packageID {
			continue
		}
		if ac.Template.Entity == ledger.EntityStakingService || ac.Template.Entity == ledger.EntityBoostPool {
			for _, field := range []string{"pooledTokenCid", "reserveTokenCid"} {
				if cid, ok := ac.Fields[field].(string); ok && cid != "" {
					reserved[cid] = true
				}
			}
		}
	}

	total := decimal.Zero
	for _, ac := range contracts {
		if ac.Template.PackageID != r.packageID || ac.Template.Entity != ledger.EntityCip56Token {
			continue
		}
		if reserved[ac.ID] {
			continue
		}
		token, err := ledger.ParseToken(ac)
		if err != nil {
			return decimal.Zero, err
		}
		if token.Owner == r.operator {
			total = total.Add(token.Amount)
		}
	}
	return total, nil
}

func (r *Replenisher) mintService(ctx context.Context) (string, ledger.TemplateID, error) {
	offset, err := r.ledger.LedgerEnd(ctx)
	if err != nil {
		return "", ledger.TemplateID{}, err
	}
	contracts, err := r.ledger.ActiveContracts(ctx, r.operator, offset)
	if err != nil {
		return "", ledger.TemplateID{}, err
	}
	for _, ac := range contracts {
		if ac.Template.PackageID == r.packageID && ac.Template.Entity == ledger.EntityDirectMintService {
			return ac.ID, ac.Template, nil
		}
	}
	return "", ledger.TemplateID{}, ErrNoMintService
}
