package reload

import (
	"github.com/rpcswitch/rpc-switch/pkg/policy"
)

// PolicyDiff represents the differences between two policy snapshots.
type PolicyDiff struct {
	ACLs    ACLDiff
	Methods MethodDiff
}

// ACLDiff contains changes to named ACLs (by their resolved membership).
type ACLDiff struct {
	Added    []string
	Removed  []string
	Modified []ACLChange
}

// ACLChange represents a change in an ACL's resolved membership.
type ACLChange struct {
	Name string
	Old  []string
	New  []string
}

// MethodDiff contains changes to public method routes.
type MethodDiff struct {
	Added    []string
	Removed  []string
	Modified []MethodChange
}

// MethodChange represents a change in a method's backend route.
type MethodChange struct {
	Name       string
	OldBackend string
	NewBackend string
}

// IsEmpty returns true if there are no changes.
func (d *PolicyDiff) IsEmpty() bool {
	return len(d.ACLs.Added) == 0 &&
		len(d.ACLs.Removed) == 0 &&
		len(d.ACLs.Modified) == 0 &&
		len(d.Methods.Added) == 0 &&
		len(d.Methods.Removed) == 0 &&
		len(d.Methods.Modified) == 0
}

// ComputeDiff computes the differences between two policy snapshots.
func ComputeDiff(old, new *policy.Policy) *PolicyDiff {
	return &PolicyDiff{
		ACLs:    diffACLs(old.ACL, new.ACL),
		Methods: diffMethods(old.Methods, new.Methods),
	}
}

func diffACLs(oldACL, newACL map[string]map[string]bool) ACLDiff {
	diff := ACLDiff{}

	for name, members := range newACL {
		oldMembers, exists := oldACL[name]
		if !exists {
			diff.Added = append(diff.Added, name)
		} else if !memberSetEqual(oldMembers, members) {
			diff.Modified = append(diff.Modified, ACLChange{
				Name: name,
				Old:  sortedKeys(oldMembers),
				New:  sortedKeys(members),
			})
		}
	}

	for name := range oldACL {
		if _, exists := newACL[name]; !exists {
			diff.Removed = append(diff.Removed, name)
		}
	}

	return diff
}

func diffMethods(oldMethods, newMethods map[string]*policy.MethodDef) MethodDiff {
	diff := MethodDiff{}

	for name, def := range newMethods {
		oldDef, exists := oldMethods[name]
		if !exists {
			diff.Added = append(diff.Added, name)
		} else if oldDef.Backend != def.Backend {
			diff.Modified = append(diff.Modified, MethodChange{
				Name:       name,
				OldBackend: oldDef.Backend,
				NewBackend: def.Backend,
			})
		}
	}

	for name := range oldMethods {
		if _, exists := newMethods[name]; !exists {
			diff.Removed = append(diff.Removed, name)
		}
	}

	return diff
}

func memberSetEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if !b[name] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
