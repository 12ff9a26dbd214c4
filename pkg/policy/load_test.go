package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempPolicy(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp policy: %v", err)
	}
	return path
}

func TestParse_Valid(t *testing.T) {
	content := `
acl:
  admins:
    - alice
    - bob
  operators:
    - carol
    - +admins
method2acl:
  weather.get: admins
  weather.*: operators
backend2acl:
  weather.*: admins
backendfilter:
  weather.*: region
methods:
  weather.forecast: "weather."
  weather.history:
    backend: weather.history_v2
    doc: historical data
`
	path := writeTempPolicy(t, content)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !p.CheckACL([]string{"admins"}, "alice") {
		t.Errorf("expected alice to be in admins")
	}
	if !p.CheckACL([]string{"operators"}, "bob") {
		t.Errorf("expected bob to inherit operators via admins")
	}
	if p.CheckACL([]string{"admins"}, "carol") {
		t.Errorf("carol should not be in admins")
	}
	if !p.CheckACL([]string{Public}, "nobody") {
		t.Errorf("unknown users should still be public")
	}

	acl, ok := p.LookupMethodACL("weather.get")
	if !ok || len(acl) != 1 || acl[0] != "admins" {
		t.Errorf("unexpected method acl for weather.get: %v, %v", acl, ok)
	}

	acl, ok = p.LookupMethodACL("weather.radar")
	if !ok || acl[0] != "operators" {
		t.Errorf("expected weather.radar to fall back to weather.* wildcard, got %v, %v", acl, ok)
	}

	def, ok := p.Methods["weather.forecast"]
	if !ok {
		t.Fatalf("expected weather.forecast method to be defined")
	}
	if def.Backend != "weather.forecast" {
		t.Errorf("expected shorthand backend 'weather.forecast', got %q", def.Backend)
	}
	if def.CallCounter == nil {
		t.Errorf("expected call counter to be initialized")
	}

	def, ok = p.Methods["weather.history"]
	if !ok || def.Backend != "weather.history_v2" || def.Doc != "historical data" {
		t.Fatalf("unexpected weather.history method def: %+v, %v", def, ok)
	}

	key, ok := p.LookupFilterKey("weather.radar")
	if !ok || key != "region" {
		t.Errorf("expected weather.radar to resolve filter key via wildcard, got %q, %v", key, ok)
	}
}

func TestParse_UnknownACLReference(t *testing.T) {
	content := `
acl:
  admins:
    - alice
method2acl:
  weather.get: admin
`
	path := writeTempPolicy(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for unknown acl reference")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 1 {
		t.Fatalf("expected 1 validation error, got %d: %v", len(verrs), verrs)
	}
	if want := "admins"; !contains(verrs[0].Message, want) {
		t.Errorf("expected suggestion mentioning %q, got %q", want, verrs[0].Message)
	}
}

func TestParse_MethodWithoutNamespace(t *testing.T) {
	content := `
acl:
  admins:
    - alice
methods:
  noop: "noop."
`
	path := writeTempPolicy(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for method without namespace")
	}
}

func TestParse_CollectsMultipleErrors(t *testing.T) {
	content := `
acl:
  admins:
    - alice
method2acl:
  weather.get: bogus1
backend2acl:
  weather.set: bogus2
`
	path := writeTempPolicy(t, content)

	_, err := Load(path)
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 collected validation errors, got %d: %v", len(verrs), verrs)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RPCSWITCH_TEST_ADMIN", "alice")
	t.Setenv("RPCSWITCH_TEST_BACKEND", "weather.forecast_v2")
	t.Setenv("RPCSWITCH_TEST_FILTER_KEY", "region")

	content := `
acl:
  admins:
    - ${RPCSWITCH_TEST_ADMIN}
method2acl:
  weather.get: admins
backend2acl:
  weather.*: admins
backendfilter:
  weather.*: ${RPCSWITCH_TEST_FILTER_KEY}
methods:
  weather.get:
    backend: ${RPCSWITCH_TEST_BACKEND}
`
	path := writeTempPolicy(t, content)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !p.CheckACL([]string{"admins"}, "alice") {
		t.Errorf("expected ${RPCSWITCH_TEST_ADMIN} to expand to alice in the admins acl")
	}

	def, ok := p.Methods["weather.get"]
	if !ok || def.Backend != "weather.forecast_v2" {
		t.Fatalf("expected backend to expand to weather.forecast_v2, got %+v, %v", def, ok)
	}

	key, ok := p.LookupFilterKey("weather.radar")
	if !ok || key != "region" {
		t.Errorf("expected filter key to expand to region, got %q, %v", key, ok)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
