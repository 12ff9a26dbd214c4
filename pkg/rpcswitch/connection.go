package rpcswitch

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
)

// State is a connection's position in the hello/auth state machine.
type State string

const (
	StateNew     State = "new"
	StateAuth    State = "auth"
	StateClosing State = "closing"
)

// Sender is the write side of a transported connection; pkg/transport
// implementations satisfy it. Send must be safe for concurrent use:
// Connection.Send calls it directly from whichever goroutine is forwarding,
// and each transport serializes its own writes.
type Sender interface {
	Send(v any) error
	Close() error
}

// WorkerMethod is one method a connection has announced. OwningConnID is a
// stable id rather than a pointer back to the Connection, so a disconnected
// connection can't be resurrected through a dangling registry entry.
type WorkerMethod struct {
	Method       string
	OwningConnID uint64
	Doc          string
	FilterKey    string
	FilterValue  string
}

// Connection is one accepted socket, client or worker, before or after
// authentication. ID and From never change after Accept; the refcount and
// the other counters are atomics, so the registry can read refcounts
// without taking the connection's own lock during worker selection. The
// remaining fields are guarded by mu.
type Connection struct {
	ID   uint64
	From string

	sender Sender

	mu         sync.Mutex
	state      State
	who        string
	workerName string
	workerID   uint64
	methods    map[string]*WorkerMethod
	channels   map[string]*Channel

	refcount          atomic.Int64
	pingTimer         *time.Timer
	pendingPing       string
	pingDeadlineTimer *time.Timer
	nextReqID         atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewConnection wraps an accepted transport sender with broker-side state.
func NewConnection(id uint64, from string, sender Sender) *Connection {
	return &Connection{
		ID:      id,
		From:    from,
		sender:  sender,
		state:   StateNew,
		methods: make(map[string]*WorkerMethod),
		channels: make(map[string]*Channel),
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) Who() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.who
}

func (c *Connection) setWho(who string) {
	c.mu.Lock()
	c.who = who
	c.mu.Unlock()
}

func (c *Connection) WorkerID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workerID
}

func (c *Connection) WorkerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workerName != "" {
		return c.workerName
	}
	return c.who
}

// Refcount is advisory: used only for worker selection, allowed to drift
// by one during deferred write-drain bursts (§5).
func (c *Connection) Refcount() int64 { return c.refcount.Load() }

func (c *Connection) incRef() { c.refcount.Add(1) }
func (c *Connection) decRef() { c.refcount.Add(-1) }

// Methods returns a snapshot of the connection's announced methods.
func (c *Connection) Methods() []*WorkerMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*WorkerMethod, 0, len(c.methods))
	for _, wm := range c.methods {
		out = append(out, wm)
	}
	return out
}

// Channels returns a snapshot of the connection's channel table.
func (c *Connection) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *Connection) channel(vci string) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[vci]
	return ch, ok
}

func (c *Connection) setChannel(vci string, ch *Channel) {
	c.mu.Lock()
	c.channels[vci] = ch
	c.mu.Unlock()
}

func (c *Connection) removeChannel(vci string) {
	c.mu.Lock()
	delete(c.channels, vci)
	c.mu.Unlock()
}

// Send writes a value to the peer. Safe to call concurrently; the
// underlying transport owns its own single-writer discipline.
func (c *Connection) Send(v any) error {
	if c.closed.Load() {
		return nil
	}
	return c.sender.Send(v)
}

// Close marks the connection closing and tears down its transport. Calling
// Close more than once is a no-op.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.setState(StateClosing)
		c.stopPing()
		_ = c.sender.Close()
	})
}

func (c *Connection) Closed() bool { return c.closed.Load() }

func (c *Connection) stopPing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
	if c.pingDeadlineTimer != nil {
		c.pingDeadlineTimer.Stop()
		c.pingDeadlineTimer = nil
	}
	c.pendingPing = ""
}

// nextInternalID allocates an id for a broker-originated request (e.g.
// rpcswitch.ping) in a space disjoint from forwarded channel ids, per the
// open question in SPEC_FULL.md about id-namespace collisions.
func (c *Connection) nextInternalID() *json.RawMessage {
	n := c.nextReqID.Add(1)
	return jsonrpc.NewID("ping-" + strconv.FormatInt(n, 10))
}
