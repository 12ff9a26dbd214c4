// Package rpcswitch implements the dispatch, ACL, multiplexing, and
// lifecycle machinery of the broker: connection lifecycle and
// authentication, method/ACL policy lookups, worker announcement and
// selection, and bidirectional forwarding over virtual channels.
package rpcswitch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
	"github.com/rpcswitch/rpc-switch/pkg/policy"
)

// AuthResult is returned by an AuthVerifier on successful authentication.
type AuthResult struct {
	Who string
	// ReAuth is optional re-auth metadata returned by the verifier. The
	// broker does not store it or consult it on a later hello; every hello
	// invokes the verifier.
	ReAuth map[string]any
}

//go:generate mockgen -destination=mock_auth_verifier_test.go -package=rpcswitch . AuthVerifier

// AuthVerifier is the pluggable, external authentication back-end invoked
// during rpcswitch.hello. It is called asynchronously; the broker does
// not block its own state access on it.
type AuthVerifier interface {
	Verify(ctx context.Context, method, who, token string) (AuthResult, error)
}

// Options configures a Broker.
type Options struct {
	Auth   AuthVerifier
	Logger *slog.Logger
	// PingInterval is how often an announced worker is pinged. Zero uses
	// DefaultPingInterval.
	PingInterval time.Duration
	// MinWorkerProtocol, if set, is a semver constraint (e.g. ">= 1.2.0")
	// a worker's announce-time protocol_version must satisfy. Workers
	// that omit protocol_version are never gated by it; the field is
	// advisory until an operator opts into requiring it.
	MinWorkerProtocol string
}

const (
	DefaultPingInterval = 60 * time.Second
	pingDeadline        = 10 * time.Second
)

// Broker owns every piece of broker-mutable state: the policy snapshot,
// the connection table, and the worker registry. A single mutex covers
// the connection table and channel wiring; the registry and policy
// snapshot carry their own synchronization.
type Broker struct {
	mu          sync.Mutex
	connections map[uint64]*Connection

	policy   atomic.Pointer[policy.Policy]
	registry *Registry

	auth              AuthVerifier
	logger            *slog.Logger
	pingInterval      time.Duration
	minWorkerProtocol *semver.Constraints

	nextConnID   atomic.Uint64
	nextWorkerID atomic.Uint64
	chunks       atomic.Int64
}

// New creates a Broker with the given initial policy and options.
func New(pol *policy.Policy, opts Options) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	var minProtocol *semver.Constraints
	if opts.MinWorkerProtocol != "" {
		c, err := semver.NewConstraint(opts.MinWorkerProtocol)
		if err != nil {
			logger.Warn("ignoring invalid MinWorkerProtocol constraint", "constraint", opts.MinWorkerProtocol, "error", err)
		} else {
			minProtocol = c
		}
	}
	b := &Broker{
		connections:       make(map[uint64]*Connection),
		registry:          NewRegistry(),
		auth:              opts.Auth,
		logger:            logger,
		pingInterval:      interval,
		minWorkerProtocol: minProtocol,
	}
	b.policy.Store(pol)
	return b
}

// Policy returns the currently active policy snapshot.
func (b *Broker) Policy() *policy.Policy { return b.policy.Load() }

// checkWorkerProtocol reports whether a worker-reported protocol version
// satisfies the broker's minimum, if one is configured. An empty version
// string always passes: gating is opt-in per worker capability, not
// mandatory.
func (b *Broker) checkWorkerProtocol(version string) error {
	if b.minWorkerProtocol == nil || version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid protocol_version %q: %w", version, err)
	}
	if !b.minWorkerProtocol.Check(v) {
		return fmt.Errorf("protocol_version %q does not satisfy %s", version, b.minWorkerProtocol.String())
	}
	return nil
}

// Reload swaps in a new policy snapshot atomically. In-flight calls and
// existing channels keep referencing whatever snapshot they captured at
// call arrival; only subsequent hello/announce/call lookups see pol.
func (b *Broker) Reload(pol *policy.Policy) {
	b.policy.Store(pol)
	b.logger.Info("policy reloaded")
}

// Accept registers a freshly transported connection with the broker and
// returns the Connection wrapper the caller should read frames into.
func (b *Broker) Accept(from string, sender Sender) *Connection {
	id := b.nextConnID.Add(1)
	c := NewConnection(id, from, sender)

	b.mu.Lock()
	b.connections[id] = c
	b.mu.Unlock()

	b.logger.Debug("connection accepted", "conn_id", id, "from", from)
	return c
}

// findOrCreateChannel returns the existing channel between client and
// worker if one already exists, otherwise creates and registers a new one
// in both endpoints' tables.
func (b *Broker) findOrCreateChannel(client, worker *Connection) *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range client.Channels() {
		if ch.WorkerConn == worker {
			return ch
		}
	}

	vci := newVCI()
	ch := newChannel(vci, client, worker)
	client.setChannel(vci, ch)
	worker.setChannel(vci, ch)
	return ch
}

// newVCI derives a fresh, process-unique virtual channel id. A random
// UUID sidesteps the source's address-derived scheme (§9): it can't
// collide with a freed-and-reused connection.
func newVCI() string {
	return uuid.NewString()
}

// Disconnect tears down c: removes it from the broker's table, withdraws
// any announced methods, and unblocks outstanding channel requests (§4.8).
func (b *Broker) Disconnect(c *Connection) {
	b.mu.Lock()
	delete(b.connections, c.ID)
	b.mu.Unlock()

	for _, wm := range c.Methods() {
		b.registry.Withdraw(wm.Method, c.ID)
	}
	c.stopPing()

	for _, ch := range c.Channels() {
		opp := ch.opposite(c)
		for _, r := range ch.outstanding() {
			// The disconnecting side was the responder for any entry whose
			// recorded direction points at it: it received the request and
			// never answered.
			respondingSideIsC := (r.dir == toWorker && c == ch.WorkerConn) || (r.dir == toClient && c == ch.ClientConn)
			if respondingSideIsC {
				_ = opp.Send(jsonrpc.NewErrorResponse(r.id, CodeGone, "opposite end of channel gone"))
			}
		}
		_ = opp.Send(jsonrpc.Request{
			JSONRPC: "2.0",
			Method:  "rpcswitch.channel_gone",
			Params:  mustMarshal(map[string]string{"channel": ch.VCI}),
		})
		opp.removeChannel(ch.VCI)
	}

	c.Close()
	b.logger.Info("connection disconnected", "conn_id", c.ID, "who", c.Who())
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Clients returns a snapshot of every currently connected Connection.
func (b *Broker) Clients() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Connection, 0, len(b.connections))
	for _, c := range b.connections {
		out = append(out, c)
	}
	return out
}

// Chunks returns the number of JSON frames the broker has handled.
func (b *Broker) Chunks() int64 { return b.chunks.Load() }

func (b *Broker) refcountOf(connID uint64) int64 {
	b.mu.Lock()
	c, ok := b.connections[connID]
	b.mu.Unlock()
	if !ok {
		return 1<<62 - 1 // vanished connection: never preferred
	}
	return c.Refcount()
}

// connection looks up a still-connected peer by its connection id.
func (b *Broker) connection(connID uint64) (*Connection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.connections[connID]
	return c, ok
}
