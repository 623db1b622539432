package batch

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
	"github.com/minted-protocol/canton-bridge/internal/selection"
)

// Plan is an assembled, conservation-preserving command sequence ready for
// atomic submission, together with the arithmetic that produced it.
type Plan struct {
	Batch            ledger.Batch
	Target           decimal.Decimal
	SourceSum        decimal.Decimal
	OperatorSum      decimal.Decimal
	SourceChange     decimal.Decimal
	OperatorChange   decimal.Decimal
	LockedSourceIDs  []string
	ArchivedOperator []string
}

// Builder assembles conversion batches. The command ordering is fixed:
// archive caller sources, return caller change, lock escrow to the operator,
// archive operator inventory, release target to the caller, return operator
// remainder. Supply conservation holds by construction: every created
// amount is derived from the archived sums, so destroyed == created without
// a post-hoc assertion.
type Builder struct {
	packageID string
	operator  string
	issuer    string
}

// NewBuilder builds a batch builder bound to the bridge package and
// operator identity.
func NewBuilder(packageID, operator string) *Builder {
	return &Builder{packageID: packageID, operator: operator, issuer: operator}
}

// Convert produces the batch exchanging target of the caller's sourceSchema
// tokens for the same amount of targetSchema tokens out of the operator's
// inventory. Both selections must already cover target (the selector
// guarantees this); sums below target are a programming error surfaced as
// one.
func (b *Builder) Convert(
	caller string,
	sourceSchema, targetSchema ledger.SchemaKind,
	target decimal.Decimal,
	sourceSelection, operatorSelection []ledger.TokenContract,
) (Plan, error) {
	sourceSum := sumOf(sourceSelection)
	operatorSum := sumOf(operatorSelection)

	if sourceSum.Add(selection.Epsilon).LessThan(target) {
		return Plan{}, fmt.Errorf("source selection %s does not cover target %s", sourceSum, target)
	}
	if operatorSum.Add(selection.Epsilon).LessThan(target) {
		return Plan{}, fmt.Errorf("operator selection %s does not cover target %s", operatorSum, target)
	}

	sourceTemplate := b.template(sourceSchema)
	targetTemplate := b.template(targetSchema)

	plan := Plan{
		Target:         target,
		SourceSum:      sourceSum,
		OperatorSum:    operatorSum,
		SourceChange:   sourceSum.Sub(target),
		OperatorChange: operatorSum.Sub(target),
	}

	var commands []ledger.Command

	// 1. Consume the caller's selected source contracts.
	for _, contract := range sourceSelection {
		commands = append(commands, ledger.NewArchive(sourceTemplate, contract.ID))
		plan.LockedSourceIDs = append(plan.LockedSourceIDs, contract.ID)
	}

	// 2. Change back to the caller when the selection overshot.
	if plan.SourceChange.GreaterThan(selection.Epsilon) {
		commands = append(commands, b.create(sourceTemplate, caller, sourceSchema, plan.SourceChange))
	}

	// 3. Escrow exactly target to the operator: the caller's locked value.
	commands = append(commands, b.create(sourceTemplate, b.operator, sourceSchema, target))

	// 4. Consume the operator's selected inventory.
	for _, contract := range operatorSelection {
		commands = append(commands, ledger.NewArchive(targetTemplate, contract.ID))
		plan.ArchivedOperator = append(plan.ArchivedOperator, contract.ID)
	}

	// 5. Release exactly target to the caller.
	commands = append(commands, b.create(targetTemplate, caller, targetSchema, target))

	// 6. Remainder back to the operator.
	if plan.OperatorChange.GreaterThan(selection.Epsilon) {
		commands = append(commands, b.create(targetTemplate, b.operator, targetSchema, plan.OperatorChange))
	}

	plan.Batch = ledger.Batch{
		CommandID: fmt.Sprintf("convert-%s", uuid.NewString()),
		ActAs:     []string{caller, b.operator},
		Commands:  commands,
	}
	return plan, nil
}

// Destroyed returns the total amount archived by the plan.
func (p Plan) Destroyed() decimal.Decimal {
	return p.SourceSum.Add(p.OperatorSum)
}

// Created returns the total amount created by the plan. By construction it
// equals Destroyed.
func (p Plan) Created() decimal.Decimal {
	created := p.Target.Add(p.Target) // escrow + release
	created = created.Add(p.SourceChange)
	created = created.Add(p.OperatorChange)
	return created
}

// Transfer produces the batch moving target of schema out of the operator's
// selected inventory to recipient: archive the selection, create target for
// the recipient, return any remainder to the operator. Conservation holds by
// the same construction as Convert.
func (b *Builder) Transfer(
	recipient string,
	schema ledger.SchemaKind,
	target decimal.Decimal,
	operatorSelection []ledger.TokenContract,
) (Plan, error) {
	operatorSum := sumOf(operatorSelection)
	if operatorSum.Add(selection.Epsilon).LessThan(target) {
		return Plan{}, fmt.Errorf("operator selection %s does not cover target %s", operatorSum, target)
	}

	template := b.template(schema)
	plan := Plan{
		Target:         target,
		OperatorSum:    operatorSum,
		OperatorChange: operatorSum.Sub(target),
	}

	var commands []ledger.Command
	for _, contract := range operatorSelection {
		commands = append(commands, ledger.NewArchive(template, contract.ID))
		plan.ArchivedOperator = append(plan.ArchivedOperator, contract.ID)
	}
	commands = append(commands, b.create(template, recipient, schema, target))
	if plan.OperatorChange.GreaterThan(selection.Epsilon) {
		commands = append(commands, b.create(template, b.operator, schema, plan.OperatorChange))
	}

	plan.Batch = ledger.Batch{
		CommandID: fmt.Sprintf("fund-%s", uuid.NewString()),
		ActAs:     []string{b.operator},
		Commands:  commands,
	}
	return plan, nil
}

func (b *Builder) template(schema ledger.SchemaKind) ledger.TemplateID {
	return ledger.TemplateID{
		PackageID: b.packageID,
		Module:    ledger.ModuleBridge,
		Entity:    ledger.TokenEntity(schema),
	}
}

func (b *Builder) create(template ledger.TemplateID, owner string, schema ledger.SchemaKind, amount decimal.Decimal) ledger.Command {
	return ledger.NewCreate(template, ledger.TokenFields(ledger.TokenContract{
		Owner:  owner,
		Issuer: b.issuer,
		Amount: amount,
		Schema: schema,
	}))
}

func sumOf(contracts []ledger.TokenContract) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range contracts {
		sum = sum.Add(c.Amount)
	}
	return sum
}
