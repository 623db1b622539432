package ledger

import (
	"context"
	"fmt"
	"sync"
)

type inMemoryLedger struct {
	mu         sync.RWMutex
	offset     int64
	seq        int
	active     map[string]ActiveContract
	submits    int
	failStatus int
}

// InMemory is a concurrency-safe in-memory ledger useful for unit tests. It
// enforces archive-once semantics and applies batches atomically, mirroring
// the participant's behavior for the paths the engine exercises.
type InMemory struct {
	*inMemoryLedger
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{&inMemoryLedger{active: make(map[string]ActiveContract)}}
}

func (l *inMemoryLedger) LedgerEnd(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.failStatus != 0 {
		return 0, &UpstreamError{Status: l.failStatus, Body: "injected failure"}
	}
	return l.offset, nil
}

func (l *inMemoryLedger) ActiveContracts(_ context.Context, party string, _ int64) ([]ActiveContract, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.failStatus != 0 {
		return nil, &UpstreamError{Status: l.failStatus, Body: "injected failure"}
	}

	var out []ActiveContract
	for _, ac := range l.active {
		owner, _ := ac.Fields["owner"].(string)
		operator, _ := ac.Fields["operator"].(string)
		if owner == party || operator == party {
			out = append(out, ac)
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Submit(_ context.Context, batch Batch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failStatus != 0 {
		return &UpstreamError{Status: l.failStatus, Body: "injected failure"}
	}

	// Validate the whole batch before mutating anything so a rejected batch
	// leaves no partial state behind.
	archived := map[string]bool{}
	for _, cmd := range batch.Commands {
		if cmd.Exercise != nil && cmd.Exercise.Choice == "Archive" {
			id := cmd.Exercise.ContractID
			if _, ok := l.active[id]; !ok || archived[id] {
				return &UpstreamError{Status: 409, Body: fmt.Sprintf("%s: %s", ErrContractNotActive, id)}
			}
			archived[id] = true
		}
	}

	for _, cmd := range batch.Commands {
		switch {
		case cmd.Exercise != nil && cmd.Exercise.Choice == "Archive":
			delete(l.active, cmd.Exercise.ContractID)
		case cmd.Exercise != nil && cmd.Exercise.Choice == "DirectMint_Mint":
			service, ok := l.active[cmd.Exercise.ContractID]
			if !ok {
				return &UpstreamError{Status: 409, Body: fmt.Sprintf("%s: %s", ErrContractNotActive, cmd.Exercise.ContractID)}
			}
			operator, _ := service.Fields["operator"].(string)
			amount, _ := cmd.Exercise.ChoiceArgument["amount"].(string)
			l.seq++
			id := fmt.Sprintf("%s#%d", EntityCip56Token, l.seq)
			l.active[id] = ActiveContract{
				ID: id,
				Template: TemplateID{
					PackageID: cmd.Exercise.TemplateID.PackageID,
					Module:    ModuleBridge,
					Entity:    EntityCip56Token,
				},
				Fields: map[string]any{
					"owner":         operator,
					"issuer":        operator,
					"amount":        amount,
					"agreementHash": "",
					"agreementUri":  "",
				},
			}
		case cmd.Create != nil:
			l.seq++
			id := fmt.Sprintf("%s#%d", cmd.Create.TemplateID.Entity, l.seq)
			l.active[id] = ActiveContract{
				ID:       id,
				Template: cmd.Create.TemplateID,
				Fields:   cmd.Create.CreateArguments,
			}
		}
	}

	l.offset++
	l.submits++
	return nil
}

// Seed places an active contract directly onto the ledger and returns its id.
func (l *InMemory) Seed(template TemplateID, fields map[string]any) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	id := fmt.Sprintf("%s#%d", template.Entity, l.seq)
	l.active[id] = ActiveContract{ID: id, Template: template, Fields: fields}
	return id
}

// Submissions reports how many batches have been applied.
func (l *InMemory) Submissions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.submits
}

// FailWith makes every subsequent call fail with the given upstream status.
// Pass 0 to restore normal behavior.
func (l *InMemory) FailWith(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failStatus = status
}
