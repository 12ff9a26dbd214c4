package reload

import (
	"testing"

	"github.com/rpcswitch/rpc-switch/pkg/policy"
)

func mustParse(t *testing.T, doc string) *policy.Policy {
	t.Helper()
	pol, err := policy.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parsing policy: %v", err)
	}
	return pol
}

func TestComputeDiff_Empty(t *testing.T) {
	doc := `
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
	old := mustParse(t, doc)
	new := mustParse(t, doc)

	diff := ComputeDiff(old, new)
	if !diff.IsEmpty() {
		t.Error("expected empty diff for identical policies")
	}
}

func TestComputeDiff_AddedMethod(t *testing.T) {
	old := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)
	new := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
  foo.baz: "foo."
`)

	diff := ComputeDiff(old, new)
	if diff.IsEmpty() {
		t.Fatal("expected non-empty diff")
	}
	if len(diff.Methods.Added) != 1 || diff.Methods.Added[0] != "foo.baz" {
		t.Fatalf("expected foo.baz added, got %v", diff.Methods.Added)
	}
}

func TestComputeDiff_RemovedMethod(t *testing.T) {
	old := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
  foo.baz: "foo."
`)
	new := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)

	diff := ComputeDiff(old, new)
	if len(diff.Methods.Removed) != 1 || diff.Methods.Removed[0] != "foo.baz" {
		t.Fatalf("expected foo.baz removed, got %v", diff.Methods.Removed)
	}
}

func TestComputeDiff_ModifiedMethodBackend(t *testing.T) {
	old := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
  bar.*: anyone
methods:
  foo.bar: "foo."
`)
	new := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
  bar.*: anyone
methods:
  foo.bar: "bar."
`)

	diff := ComputeDiff(old, new)
	if len(diff.Methods.Modified) != 1 {
		t.Fatalf("expected 1 modified method, got %d", len(diff.Methods.Modified))
	}
	if diff.Methods.Modified[0].OldBackend != "foo.bar" || diff.Methods.Modified[0].NewBackend != "bar.bar" {
		t.Fatalf("unexpected modified method: %+v", diff.Methods.Modified[0])
	}
}

func TestComputeDiff_ACLMembershipChange(t *testing.T) {
	old := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)
	new := mustParse(t, `
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
`)

	diff := ComputeDiff(old, new)
	if len(diff.ACLs.Modified) != 1 {
		t.Fatalf("expected 1 modified ACL, got %d", len(diff.ACLs.Modified))
	}
	if diff.ACLs.Modified[0].Name != "anyone" {
		t.Errorf("expected modified ACL 'anyone', got %q", diff.ACLs.Modified[0].Name)
	}
}

func TestComputeDiff_AddedACL(t *testing.T) {
	old := mustParse(t, `
acl:
  anyone:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)
	new := mustParse(t, `
acl:
  anyone:
    - alice
  trusted:
    - alice
method2acl:
  foo.*: anyone
backend2acl:
  foo.*: anyone
methods:
  foo.bar: "foo."
`)

	diff := ComputeDiff(old, new)
	if len(diff.ACLs.Added) != 1 || diff.ACLs.Added[0] != "trusted" {
		t.Fatalf("expected trusted added, got %v", diff.ACLs.Added)
	}
}
