// Package policy loads and resolves the switch's access-control policy: the
// ACL definitions, the method/backend/filter tables, and the who-may-call
// and who-may-announce lookups derived from them.
package policy

import "sync/atomic"

// Public is the distinguished ACL name implicitly granted to every principal.
const Public = "public"

// MaxIncludeDepth bounds transitive +OTHER ACL inclusion.
const MaxIncludeDepth = 10

// MethodDef is one entry of the methods table: the backend a public method
// name dispatches to, optional documentation, and a live call counter.
//
// CallCounter is the one mutable field in an otherwise immutable snapshot:
// it is incremented on every successful dispatch (§4.6 step 5) and read by
// rpcswitch.get_stats. A reload installs a fresh Policy with fresh,
// zeroed counters; it never mutates a counter belonging to a policy still
// referenced by in-flight channels.
type MethodDef struct {
	Backend     string
	Doc         string
	CallCounter *atomic.Int64
}

// Policy is an immutable snapshot of the resolved access-control and
// method-routing configuration. A new Policy is built wholesale on load or
// reload and swapped in atomically; nothing mutates a Policy's maps after
// construction (CallCounter values aside).
type Policy struct {
	// ACL maps an ACL name to the set of user names that belong to it,
	// fully resolved (every +OTHER inclusion flattened in).
	ACL map[string]map[string]bool

	// Who2ACL is the inverted form of ACL: user name -> set of ACL names
	// the user belongs to. Every user implicitly belongs to "public".
	Who2ACL map[string]map[string]bool

	// Method2ACL maps a fully-qualified method name or a "ns.*" wildcard
	// to the list of ACL names allowed to call it.
	Method2ACL map[string][]string

	// Backend2ACL maps a backend method name or wildcard to the list of
	// ACL names allowed to announce it.
	Backend2ACL map[string][]string

	// BackendFilter maps a backend method name or wildcard to the single
	// field name that must appear in the call's params (and in the
	// announcement's filter object) for worker selection.
	BackendFilter map[string]string

	// Methods maps a fully-qualified public method name to its backend
	// routing record.
	Methods map[string]*MethodDef
}

// CheckACL reports whether who belongs to any of the ACL names in spec.
// Unknown users are treated as belonging only to "public".
func (p *Policy) CheckACL(spec []string, who string) bool {
	membership, ok := p.Who2ACL[who]
	if !ok {
		membership = map[string]bool{Public: true}
	}
	for _, name := range spec {
		if membership[name] {
			return true
		}
	}
	return false
}

// LookupMethodACL resolves the ACL list that governs calling method m,
// falling back to its namespace wildcard. ok is false if neither is defined.
func (p *Policy) LookupMethodACL(m string) (acl []string, ok bool) {
	return lookupWithWildcard(p.Method2ACL, m)
}

// LookupBackendACL resolves the ACL list that governs announcing backend b.
func (p *Policy) LookupBackendACL(b string) (acl []string, ok bool) {
	return lookupWithWildcard(p.Backend2ACL, b)
}

// LookupFilterKey resolves the filter key name for backend b, if any.
func (p *Policy) LookupFilterKey(b string) (key string, ok bool) {
	if key, ok = p.BackendFilter[b]; ok {
		return key, true
	}
	ns, _, err := SplitMethod(b)
	if err != nil {
		return "", false
	}
	key, ok = p.BackendFilter[ns+".*"]
	return key, ok
}

func lookupWithWildcard(m map[string][]string, name string) ([]string, bool) {
	if acl, ok := m[name]; ok {
		return acl, true
	}
	ns, _, err := SplitMethod(name)
	if err != nil {
		return nil, false
	}
	acl, ok := m[ns+".*"]
	return acl, ok
}
