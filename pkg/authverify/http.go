// Package authverify implements the broker's one concrete AuthVerifier: an
// HTTP call to an external auth service. The verifier is deliberately
// pluggable at the rpcswitch.Broker boundary (rpcswitch.AuthVerifier);
// this package supplies the daemon's default implementation of it.
package authverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

// HTTPVerifier calls an external auth endpoint with {method, who, token}
// and expects {ok, reauth} back. It never sees or caches credentials
// beyond the single request/response pair.
type HTTPVerifier struct {
	endpoint   string
	authHeader string
	authToken  string
	httpClient *http.Client
}

// NewHTTPVerifier creates a verifier posting to endpoint. authToken, if
// non-empty, is sent as a bearer token on the verifier's own outbound
// request (authenticating the broker to the auth service, not the peer
// being verified).
func NewHTTPVerifier(endpoint, authToken string) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint:   endpoint,
		authHeader: "Authorization",
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyRequest struct {
	Method string `json:"method"`
	Who    string `json:"who"`
	Token  string `json:"token"`
}

type verifyResponse struct {
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	ReAuth map[string]any `json:"reauth,omitempty"`
}

// Verify implements rpcswitch.AuthVerifier.
func (v *HTTPVerifier) Verify(ctx context.Context, method, who, token string) (rpcswitch.AuthResult, error) {
	body, err := json.Marshal(verifyRequest{Method: method, Who: who, Token: token})
	if err != nil {
		return rpcswitch.AuthResult{}, fmt.Errorf("marshaling verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return rpcswitch.AuthResult{}, fmt.Errorf("creating verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.authToken != "" {
		req.Header.Set(v.authHeader, "Bearer "+v.authToken)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return rpcswitch.AuthResult{}, fmt.Errorf("calling auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return rpcswitch.AuthResult{}, fmt.Errorf("auth service returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return rpcswitch.AuthResult{}, fmt.Errorf("decoding verify response: %w", err)
	}
	if !vr.OK {
		reason := vr.Reason
		if reason == "" {
			reason = "authentication rejected"
		}
		return rpcswitch.AuthResult{}, fmt.Errorf("%s", reason)
	}

	return rpcswitch.AuthResult{Who: who, ReAuth: vr.ReAuth}, nil
}
