package static

import (
	"encoding/json"
	"testing"

	"github.com/osvaldoandrade/flowdb/pkg/auth"
)

func TestStaticValidator(t *testing.T) {
	raw := json.RawMessage(`{"token":"t-1","subject":"s-1","scopes":["flowdb:read"],"raw":{"role":"ADMIN"}}`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}

	claims, err := v.Validate("t-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "s-1" {
		t.Fatalf("expected subject s-1, got %q", claims.Subject)
	}
	if !claims.HasScope("flowdb:read") {
		t.Fatalf("expected scope present")
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected ADMIN role to grant admin")
	}

	if _, err := v.Validate("wrong"); err == nil {
		t.Fatalf("expected validation error for wrong token")
	}
}

func TestStaticValidator_StringConfig(t *testing.T) {
	raw := json.RawMessage(`"t-2"`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}
	claims, err := v.Validate(" t-2 ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !claims.HasScope(auth.AdminScope) || claims.Subject != "flowdb-admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestStaticValidator_InvalidConfig(t *testing.T) {
	for _, raw := range []string{``, `{}`, `{"token":"  "}`, `{bad`} {
		if _, err := NewValidatorFromJSON(json.RawMessage(raw)); err == nil {
			t.Errorf("expected error for config %q", raw)
		}
	}
}

func TestStaticRegistered(t *testing.T) {
	v, err := auth.NewValidator(auth.ProviderConfig{Type: "static", Config: json.RawMessage(`"t-3"`)})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate("t-3"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
