package policy

import (
	"fmt"
	"strings"
)

// resolveACL expands every "+OTHER" inclusion in raw ACL definitions into
// flat user sets, and builds the inverted who2acl index. Inclusions are
// resolved depth-first: an ACL reached again while it is still being
// resolved is part of a cycle, and an inclusion chain longer than
// MaxIncludeDepth is an error.
func resolveACL(raw map[string][]string) (acl map[string]map[string]bool, who2acl map[string]map[string]bool, err error) {
	// Build the +OTHER inclusion graph and an initial flat (non-included)
	// member set per ACL.
	type node struct {
		members  map[string]bool
		includes []string
	}
	nodes := make(map[string]*node, len(raw))
	for name, entries := range raw {
		n := &node{members: map[string]bool{}}
		for _, e := range entries {
			if strings.HasPrefix(e, "+") {
				inc := e[1:]
				if _, ok := raw[inc]; !ok {
					return nil, nil, fmt.Errorf("acl %q: unknown included acl %q%s", name, inc, suggest(inc, aclNames(raw)))
				}
				n.includes = append(n.includes, inc)
			} else {
				n.members[e] = true
			}
		}
		nodes[name] = n
	}

	resolved := make(map[string]map[string]bool, len(nodes))
	heights := make(map[string]int, len(nodes))
	resolving := make(map[string]bool, len(nodes))

	var resolve func(name string, depth int) (map[string]bool, error)
	resolve = func(name string, depth int) (map[string]bool, error) {
		if depth > MaxIncludeDepth {
			return nil, fmt.Errorf("acl %q: inclusion depth exceeds %d", name, MaxIncludeDepth)
		}
		if m, ok := resolved[name]; ok {
			// A cached ACL's own inclusion chain still counts toward the
			// depth of the chain that reaches it.
			if depth+heights[name] > MaxIncludeDepth {
				return nil, fmt.Errorf("acl %q: inclusion depth exceeds %d", name, MaxIncludeDepth)
			}
			return m, nil
		}
		if resolving[name] {
			return nil, fmt.Errorf("acl %q: inclusion cycle detected", name)
		}
		n, ok := nodes[name]
		if !ok {
			return nil, fmt.Errorf("unknown acl %q%s", name, suggest(name, aclNames(raw)))
		}

		resolving[name] = true
		merged := make(map[string]bool, len(n.members))
		for u := range n.members {
			merged[u] = true
		}
		height := 0
		for _, inc := range n.includes {
			incMembers, err := resolve(inc, depth+1)
			if err != nil {
				return nil, err
			}
			for u := range incMembers {
				merged[u] = true
			}
			if h := heights[inc] + 1; h > height {
				height = h
			}
		}
		resolving[name] = false
		resolved[name] = merged
		heights[name] = height
		return merged, nil
	}

	for name := range nodes {
		if _, err := resolve(name, 0); err != nil {
			return nil, nil, err
		}
	}

	who2acl = make(map[string]map[string]bool)
	addMembership := func(user, aclName string) {
		m, ok := who2acl[user]
		if !ok {
			m = map[string]bool{}
			who2acl[user] = m
		}
		m[aclName] = true
	}
	for name, members := range resolved {
		for u := range members {
			addMembership(u, name)
		}
	}
	// Every user (known or not) belongs to "public"; stamp it onto
	// everyone we've already seen. Unknown users default to {public} at
	// lookup time in Policy.CheckACL, so we don't need an entry here for
	// users who appear nowhere in the ACL file.
	for u := range who2acl {
		addMembership(u, Public)
	}

	return resolved, who2acl, nil
}

func aclNames(raw map[string][]string) []string {
	names := make([]string, 0, len(raw))
	for n := range raw {
		names = append(names, n)
	}
	return names
}

// suggest returns a " (did you mean 'x'?)" hint for a misspelled name, or
// "" if nothing is close enough. Mirrors the teacher's DAG step-ID typo
// helper (pkg/registry/dag.go's suggestStepID/levenshtein).
func suggest(target string, candidates []string) string {
	var best string
	bestDist := len(target)/2 + 1
	for _, c := range candidates {
		d := levenshtein(target, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
