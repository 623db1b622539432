package identity

import (
	"errors"
	"strings"
	"testing"
)

const (
	operator = "operator::1220deadbeef"
	alice    = "alice::1220aabbcc"
	bob      = "bob-7::1220ddeeff"
)

func TestValidate(t *testing.T) {
	valid := []string{alice, bob, "a.b_c-1::ABC123", "x::00"}
	for _, p := range valid {
		if err := Validate(p); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{
		"",
		"abcd",
		"noseparator",
		"::1220aa",
		"alice::",
		"alice::not-hex!",
		"al ice::1220aa",
		"alice:1220aa",
		"a::" + strings.Repeat("f", 300),
	}
	for _, p := range invalid {
		if err := Validate(p); !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidIdentity", p, err)
		}
	}
}

func TestNewResolverRejectsOperatorAlias(t *testing.T) {
	_, err := NewResolver(operator, "", map[string]string{alice: operator}, false)
	if !errors.Is(err, ErrAliasPolicyViolation) {
		t.Fatalf("expected ErrAliasPolicyViolation, got %v", err)
	}
}

func TestNewResolverOperatorAliasOverride(t *testing.T) {
	r, err := NewResolver(operator, "", map[string]string{alice: operator}, true)
	if err != nil {
		t.Fatalf("expected override to permit the mapping, got %v", err)
	}
	resolved, err := r.Resolve(alice)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Resolved != operator || resolved.Source != AliasSourceEnv {
		t.Fatalf("unexpected resolution %+v", resolved)
	}
}

func TestResolveAlias(t *testing.T) {
	r, err := NewResolver(operator, "", map[string]string{alice: bob}, false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	resolved, err := r.Resolve(alice)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Resolved != bob || !resolved.Aliased || resolved.Source != AliasSourceEnv {
		t.Fatalf("unexpected resolution %+v", resolved)
	}

	passthrough, err := r.Resolve(bob)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if passthrough.Resolved != bob || passthrough.Aliased || passthrough.Source != AliasSourceNone {
		t.Fatalf("unexpected passthrough %+v", passthrough)
	}
}

func TestResolveDefaultParty(t *testing.T) {
	r, err := NewResolver(operator, alice, nil, false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	resolved, err := r.Resolve("   ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Resolved != alice || resolved.Source != AliasSourceFallback {
		t.Fatalf("unexpected fallback %+v", resolved)
	}

	bare, err := NewResolver(operator, "", nil, false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := bare.Resolve(""); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity without a default party, got %v", err)
	}
}

func TestOperator(t *testing.T) {
	r, err := NewResolver(operator, "", nil, false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if !r.Operator(operator) {
		t.Fatalf("expected operator to be recognized")
	}
	if r.Operator(alice) {
		t.Fatalf("expected non-operator to be rejected")
	}
}
