package policy

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

func newCounter() *atomic.Int64 { return &atomic.Int64{} }

// Load reads and parses a policy file, returning a fully resolved,
// immutable Policy snapshot. Every error found during validation is
// collected before Load fails, the way pkg/config/validate.go's
// ValidationErrors aggregates config errors instead of stopping at the
// first one.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Policy snapshot from raw YAML bytes.
func Parse(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	expandEnvVars(&doc)

	var errs ValidationErrors

	acl, who2acl, err := resolveACL(doc.ACL)
	if err != nil {
		errs = append(errs, ValidationError{Field: "acl", Message: err.Error()})
	}
	if acl == nil {
		acl = map[string]map[string]bool{}
	}

	method2acl := map[string][]string{}
	for name, n := range doc.Method2ACL {
		spec, err := decodeACLSpec(n)
		if err != nil {
			errs = append(errs, ValidationError{Field: "method2acl." + name, Message: err.Error()})
			continue
		}
		for _, a := range spec {
			if _, ok := acl[a]; !ok && a != Public {
				errs = append(errs, ValidationError{
					Field:   "method2acl." + name,
					Message: fmt.Sprintf("references undefined acl %q%s", a, suggest(a, aclNames(doc.ACL))),
				})
			}
		}
		method2acl[name] = spec
	}

	backend2acl := map[string][]string{}
	for name, n := range doc.Backend2ACL {
		spec, err := decodeACLSpec(n)
		if err != nil {
			errs = append(errs, ValidationError{Field: "backend2acl." + name, Message: err.Error()})
			continue
		}
		for _, a := range spec {
			if _, ok := acl[a]; !ok && a != Public {
				errs = append(errs, ValidationError{
					Field:   "backend2acl." + name,
					Message: fmt.Sprintf("references undefined acl %q%s", a, suggest(a, aclNames(doc.ACL))),
				})
			}
		}
		backend2acl[name] = spec
	}

	methods := map[string]*MethodDef{}
	for name, n := range doc.Methods {
		if _, _, err := SplitMethod(name); err != nil {
			errs = append(errs, ValidationError{Field: "methods." + name, Message: err.Error()})
			continue
		}
		def, err := decodeMethodSpec(name, n)
		if err != nil {
			errs = append(errs, ValidationError{Field: "methods." + name, Message: err.Error()})
			continue
		}
		methods[name] = def
	}

	backendFilter := make(map[string]string, len(doc.BackendFilter))
	for k, v := range doc.BackendFilter {
		backendFilter[k] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Policy{
		ACL:           acl,
		Who2ACL:       who2acl,
		Method2ACL:    method2acl,
		Backend2ACL:   backend2acl,
		BackendFilter: backendFilter,
		Methods:       methods,
	}, nil
}
