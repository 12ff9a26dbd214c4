package policy

import (
	"fmt"
	"strings"
)

// SplitMethod splits a fully-qualified method name "ns.name" into its
// namespace and short name. It fails if the method has no "ns." prefix.
func SplitMethod(m string) (ns, name string, err error) {
	idx := strings.IndexByte(m, '.')
	if idx <= 0 || idx == len(m)-1 {
		return "", "", fmt.Errorf("method %q has no namespace", m)
	}
	return m[:idx], m[idx+1:], nil
}
