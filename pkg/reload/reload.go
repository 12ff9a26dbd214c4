// Package reload drives policy hot-reload: watching the policy file for
// changes and swapping a freshly parsed and validated snapshot into a
// running Broker without dropping connections or in-flight channels.
package reload

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rpcswitch/rpc-switch/pkg/logging"
	"github.com/rpcswitch/rpc-switch/pkg/policy"
	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

// Result contains the outcome of a reload operation.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Diff    *PolicyDiff `json:"diff,omitempty"`
}

// Handler manages hot reload of a Broker's policy.
type Handler struct {
	mu         sync.Mutex
	policyPath string
	current    *policy.Policy
	broker     *rpcswitch.Broker
	logger     *slog.Logger
}

// NewHandler creates a reload handler bound to a running broker.
func NewHandler(policyPath string, current *policy.Policy, broker *rpcswitch.Broker) *Handler {
	return &Handler{
		policyPath: policyPath,
		current:    current,
		broker:     broker,
		logger:     logging.NewDiscardLogger(),
	}
}

// SetLogger sets the logger used for reload events.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// CurrentPolicy returns the policy snapshot this handler last loaded.
func (h *Handler) CurrentPolicy() *policy.Policy {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Reload re-reads and re-validates the policy file and, if it parses
// cleanly, swaps it into the broker atomically. A parse or validation
// failure leaves the broker running on its current policy; the operator
// is reporting a broken file, not an intent to take the broker down.
func (h *Handler) Reload() (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("reloading policy", "path", h.policyPath)

	newPol, err := policy.Load(h.policyPath)
	if err != nil {
		h.logger.Error("policy reload rejected", "error", err)
		return &Result{
			Success: false,
			Message: fmt.Sprintf("failed to load policy: %v", err),
		}, nil
	}

	diff := ComputeDiff(h.current, newPol)
	if diff.IsEmpty() {
		h.logger.Info("no policy changes detected")
		return &Result{Success: true, Message: "no changes detected"}, nil
	}

	h.broker.Reload(newPol)
	h.current = newPol

	h.logger.Info("policy reload complete",
		"acls_added", len(diff.ACLs.Added),
		"acls_removed", len(diff.ACLs.Removed),
		"acls_modified", len(diff.ACLs.Modified),
		"methods_added", len(diff.Methods.Added),
		"methods_removed", len(diff.Methods.Removed),
		"methods_modified", len(diff.Methods.Modified))

	return &Result{
		Success: true,
		Message: "policy reloaded successfully",
		Diff:    diff,
	}, nil
}
