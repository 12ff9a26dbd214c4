package authverify

import (
	"context"
	"fmt"

	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

// StaticVerifier checks hello's token against a single configured shared
// secret. It exists for local development and tests, where standing up an
// external auth service is unwanted overhead; production deployments
// should use HTTPVerifier instead.
type StaticVerifier struct {
	token string
}

// NewStaticVerifier creates a verifier that accepts any hello whose token
// matches the given shared secret. An empty secret accepts any token.
func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: token}
}

// Verify implements rpcswitch.AuthVerifier.
func (v *StaticVerifier) Verify(ctx context.Context, method, who, token string) (rpcswitch.AuthResult, error) {
	if v.token != "" && token != v.token {
		return rpcswitch.AuthResult{}, fmt.Errorf("token mismatch for %q", who)
	}
	return rpcswitch.AuthResult{Who: who}, nil
}
