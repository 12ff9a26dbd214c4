package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a policy file, parsed with
// gopkg.in/yaml.v3 the way pkg/config/loader.go parses the teacher's stack
// file: decode into a plain struct, then resolve/validate in separate
// passes.
type document struct {
	ACL           map[string][]string  `yaml:"acl"`
	Method2ACL    map[string]yaml.Node `yaml:"method2acl"`
	Backend2ACL   map[string]yaml.Node `yaml:"backend2acl"`
	BackendFilter map[string]string    `yaml:"backendfilter"`
	Methods       map[string]yaml.Node `yaml:"methods"`
}

// expandEnvVars expands environment variables in the ACL member lists and
// backendfilter values of a decoded document, the way
// pkg/config/loader.go's expandEnvVars walks a decoded Stack before
// defaults/validation run. method2acl/backend2acl values and method specs
// are expanded as they are decoded.
func expandEnvVars(doc *document) {
	for name, members := range doc.ACL {
		expanded := make([]string, len(members))
		for i, m := range members {
			expanded[i] = os.ExpandEnv(m)
		}
		doc.ACL[name] = expanded
	}
	for key, val := range doc.BackendFilter {
		doc.BackendFilter[key] = os.ExpandEnv(val)
	}
}

// decodeACLSpec decodes a method2acl/backend2acl value that may be either a
// scalar ACL name or a list of ACL names, always returning a list.
func decodeACLSpec(n yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return []string{os.ExpandEnv(s)}, nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return nil, err
		}
		for i, s := range list {
			list[i] = os.ExpandEnv(s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("acl spec must be a string or list of strings")
	}
}

// decodeMethodSpec decodes a methods table value that may be a string
// shorthand ("prefix." -> append short name) or a full record.
func decodeMethodSpec(name string, n yaml.Node) (*MethodDef, error) {
	if n.Kind == yaml.ScalarNode {
		var prefix string
		if err := n.Decode(&prefix); err != nil {
			return nil, err
		}
		prefix = os.ExpandEnv(prefix)
		backend := prefix
		if len(prefix) > 0 && prefix[len(prefix)-1] == '.' {
			_, short, err := SplitMethod(name)
			if err != nil {
				return nil, err
			}
			backend = prefix + short
		}
		return &MethodDef{Backend: backend, CallCounter: newCounter()}, nil
	}

	var rec struct {
		Backend string `yaml:"backend"`
		Doc     string `yaml:"doc"`
	}
	if err := n.Decode(&rec); err != nil {
		return nil, err
	}
	rec.Backend = os.ExpandEnv(rec.Backend)
	rec.Doc = os.ExpandEnv(rec.Doc)
	if rec.Backend == "" {
		return nil, fmt.Errorf("method %q: backend is required", name)
	}
	return &MethodDef{Backend: rec.Backend, Doc: rec.Doc, CallCounter: newCounter()}, nil
}
