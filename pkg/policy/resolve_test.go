package policy

import "testing"

func TestResolveACL_TransitiveInclusion(t *testing.T) {
	raw := map[string][]string{
		"base":  {"alice"},
		"mid":   {"bob", "+base"},
		"top":   {"carol", "+mid"},
	}

	acl, who2acl, err := resolveACL(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !acl["top"]["alice"] {
		t.Errorf("expected alice to be transitively included in top via mid -> base")
	}
	if !acl["top"]["bob"] || !acl["top"]["carol"] {
		t.Errorf("expected top to contain its direct and included members")
	}
	if !who2acl["alice"]["base"] || !who2acl["alice"][Public] {
		t.Errorf("expected alice's membership to include base and public, got %v", who2acl["alice"])
	}
}

func TestResolveACL_CycleDetected(t *testing.T) {
	raw := map[string][]string{
		"a": {"+b"},
		"b": {"+a"},
	}

	_, _, err := resolveACL(raw)
	if err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestResolveACL_UnknownInclude(t *testing.T) {
	raw := map[string][]string{
		"a": {"+nonexistent"},
	}

	_, _, err := resolveACL(raw)
	if err == nil {
		t.Fatalf("expected error for unknown included acl")
	}
}

func TestResolveACL_DepthCapExceeded(t *testing.T) {
	raw := map[string][]string{}
	prev := "acl0"
	raw[prev] = []string{"user0"}
	for i := 1; i <= MaxIncludeDepth+2; i++ {
		name := "acl" + string(rune('a'+i))
		raw[name] = []string{"+" + prev}
		prev = name
	}

	_, _, err := resolveACL(raw)
	if err == nil {
		t.Fatalf("expected depth cap error for a %d-deep inclusion chain", MaxIncludeDepth+2)
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"admins", "operators", "public"}
	if got := suggest("admin", candidates); got == "" {
		t.Errorf("expected a suggestion for near-miss %q", "admin")
	}
	if got := suggest("zzzzzzzzzzzz", candidates); got != "" {
		t.Errorf("expected no suggestion for a far-off name, got %q", got)
	}
}
