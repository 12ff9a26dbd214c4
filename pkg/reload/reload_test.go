package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpcswitch/rpc-switch/pkg/policy"
	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

type allowAllAuth struct{}

func (allowAllAuth) Verify(ctx context.Context, method, who, token string) (rpcswitch.AuthResult, error) {
	return rpcswitch.AuthResult{Who: who}, nil
}

const basePolicyDoc = `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`

func writePolicy(t *testing.T, path, doc string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing policy file: %v", err)
	}
}

func TestHandler_Reload_NoChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, basePolicyDoc)

	pol, err := policy.Load(path)
	if err != nil {
		t.Fatalf("loading initial policy: %v", err)
	}
	broker := rpcswitch.New(pol, rpcswitch.Options{Auth: allowAllAuth{}, PingInterval: time.Hour})

	h := NewHandler(path, pol, broker)
	result, err := h.Reload()
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if !result.Success || result.Message != "no changes detected" {
		t.Fatalf("expected no-change result, got %+v", result)
	}
}

func TestHandler_Reload_AppliesNewPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, basePolicyDoc)

	pol, err := policy.Load(path)
	if err != nil {
		t.Fatalf("loading initial policy: %v", err)
	}
	broker := rpcswitch.New(pol, rpcswitch.Options{Auth: allowAllAuth{}, PingInterval: time.Hour})

	h := NewHandler(path, pol, broker)

	writePolicy(t, path, `
acl:
  anyone:
    - alice
    - bob
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
  foo.baz: "foo."
`)

	result, err := h.Reload()
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful reload, got %+v", result)
	}
	if result.Diff == nil || len(result.Diff.Methods.Added) != 1 {
		t.Fatalf("expected one added method in diff, got %+v", result.Diff)
	}
	if broker.Policy().Methods["foo.baz"] == nil {
		t.Fatal("expected broker's active policy to include foo.baz after reload")
	}
}

func TestHandler_Reload_RejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, basePolicyDoc)

	pol, err := policy.Load(path)
	if err != nil {
		t.Fatalf("loading initial policy: %v", err)
	}
	broker := rpcswitch.New(pol, rpcswitch.Options{Auth: allowAllAuth{}, PingInterval: time.Hour})
	h := NewHandler(path, pol, broker)

	writePolicy(t, path, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: nonexistent_acl
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)

	result, err := h.Reload()
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected rejected reload for unknown ACL reference, got %+v", result)
	}
	if broker.Policy().Methods["foo.bar"] == nil {
		t.Fatal("expected broker to keep serving the last-good policy after a rejected reload")
	}
}
