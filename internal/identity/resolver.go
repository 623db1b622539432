package identity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidIdentity occurs when a caller-supplied party identifier does
	// not match the hint::namespace-hex shape.
	ErrInvalidIdentity = errors.New("invalid party identifier")

	// ErrAliasPolicyViolation indicates the alias table maps a non-operator
	// identity onto the operator identity without an explicit override. This
	// is fatal at startup: such a mapping would route user balance queries
	// through the operator account and mask real balances.
	ErrAliasPolicyViolation = errors.New("alias policy violation")
)

// AliasSource records where a resolved identity came from.
type AliasSource string

const (
	// AliasSourceNone means the identity passed through unchanged.
	AliasSourceNone AliasSource = "none"
	// AliasSourceEnv means an alias table entry rewrote the identity.
	AliasSourceEnv AliasSource = "env"
	// AliasSourceFallback means the default party stood in for an absent one.
	AliasSourceFallback AliasSource = "fallback"
)

// ResolvedParty is the per-request outcome of identity resolution. It is
// never persisted.
type ResolvedParty struct {
	Requested string
	Resolved  string
	Aliased   bool
	Source    AliasSource
}

// Resolver validates and canonicalizes caller-supplied party identifiers.
// Construction fails closed on an alias table that violates the operator
// aliasing policy, so a misconfigured table can never serve requests.
type Resolver struct {
	operator     string
	defaultParty string
	aliases      map[string]string
}

const (
	minPartyLen = 5
	maxPartyLen = 256
)

// NewResolver builds a resolver over the given alias table. Unless
// allowOperatorAlias is set, any entry mapping a non-operator key to the
// operator party fails with ErrAliasPolicyViolation.
func NewResolver(operator, defaultParty string, aliases map[string]string, allowOperatorAlias bool) (*Resolver, error) {
	if operator == "" {
		return nil, fmt.Errorf("operator party is required")
	}
	if !allowOperatorAlias {
		for from, to := range aliases {
			if to == operator && from != operator {
				return nil, fmt.Errorf("%w: %q -> operator", ErrAliasPolicyViolation, from)
			}
		}
	}

	copied := make(map[string]string, len(aliases))
	for from, to := range aliases {
		copied[from] = to
	}
	return &Resolver{operator: operator, defaultParty: defaultParty, aliases: copied}, nil
}

// Resolve validates raw and applies the alias table. An absent identifier
// resolves to the default party when one is configured. Deterministic and
// side-effect-free.
func (r *Resolver) Resolve(raw string) (ResolvedParty, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if r.defaultParty == "" {
			return ResolvedParty{}, fmt.Errorf("%w: empty", ErrInvalidIdentity)
		}
		return ResolvedParty{
			Requested: raw,
			Resolved:  r.defaultParty,
			Aliased:   true,
			Source:    AliasSourceFallback,
		}, nil
	}

	if err := Validate(raw); err != nil {
		return ResolvedParty{}, err
	}

	if to, ok := r.aliases[raw]; ok && to != raw {
		if err := Validate(to); err != nil {
			return ResolvedParty{}, err
		}
		return ResolvedParty{Requested: raw, Resolved: to, Aliased: true, Source: AliasSourceEnv}, nil
	}

	return ResolvedParty{Requested: raw, Resolved: raw, Aliased: false, Source: AliasSourceNone}, nil
}

// Operator reports whether party is the configured operator identity.
func (r *Resolver) Operator(party string) bool {
	return party == r.operator
}

// Validate checks the hint::namespace-hex shape of a Canton party id.
func Validate(party string) error {
	if len(party) < minPartyLen || len(party) > maxPartyLen {
		return fmt.Errorf("%w: length %d", ErrInvalidIdentity, len(party))
	}
	hint, namespace, found := strings.Cut(party, "::")
	if !found || hint == "" || namespace == "" {
		return fmt.Errorf("%w: want hint::namespace", ErrInvalidIdentity)
	}
	for _, r := range hint {
		if !isHintRune(r) {
			return fmt.Errorf("%w: bad hint character %q", ErrInvalidIdentity, r)
		}
	}
	for _, r := range namespace {
		if !isHexRune(r) {
			return fmt.Errorf("%w: namespace is not hex", ErrInvalidIdentity)
		}
	}
	return nil
}

func isHintRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	default:
		return false
	}
}

func isHexRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	default:
		return false
	}
}
