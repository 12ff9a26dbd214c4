package rpcswitch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
	"github.com/rpcswitch/rpc-switch/pkg/policy"
)

// internalHandler implements one rpcswitch.* method. It is responsible
// for writing its own response (success or error) to c.
type internalHandler func(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage)

var internalHandlers = map[string]internalHandler{
	"rpcswitch.hello":              handleHello,
	"rpcswitch.ping":               handlePing,
	"rpcswitch.announce":           handleAnnounce,
	"rpcswitch.withdraw":           handleWithdraw,
	"rpcswitch.get_clients":        handleGetClients,
	"rpcswitch.get_methods":        handleGetMethods,
	"rpcswitch.get_method_details": handleGetMethodDetails,
	"rpcswitch.get_workers":        handleGetWorkers,
	"rpcswitch.get_stats":          handleGetStats,
}

// handleInternal dispatches to an internal method's handler, catching any
// panic and mapping it to handler-threw so a single bad handler can't take
// down the broker (§7).
func (b *Broker) handleInternal(ctx context.Context, c *Connection, id *json.RawMessage, method string, params json.RawMessage, h internalHandler) {
	if id == nil {
		_ = c.Send(errNotNotification(nil))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			_ = c.Send(errHandlerThrew(id, fmt.Errorf("%v", r)))
		}
	}()
	h(b, ctx, c, id, params)
}

type helloParams struct {
	Method string `json:"method"`
	Who    string `json:"who"`
	Token  string `json:"token"`
}

// handleHello authenticates the connection asynchronously via the
// external AuthVerifier (§4.2). The response is written when the
// verifier completes, which may be after other traffic has been handled
// on other connections.
func handleHello(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	var p helloParams
	if err := json.Unmarshal(params, &p); err != nil {
		_ = c.Send(errInvalidParams(id, err.Error()))
		return
	}

	go func() {
		result, err := b.auth.Verify(ctx, p.Method, p.Who, p.Token)
		if err != nil {
			_ = c.Send(jsonrpc.NewErrorResponse(id, jsonrpc.InvalidRequest, "authentication failed: "+err.Error()))
			c.Close()
			return
		}
		c.setWho(result.Who)
		c.setState(StateAuth)
		_ = c.Send(jsonrpc.NewSuccessResponse(id, map[string]any{"msg": "success", "who": result.Who}))
	}()
}

// handlePing answers an incoming rpcswitch.ping with the literal string
// "pong?" (§4.7). This is distinct from the broker's own outbound pings
// to announced workers, handled in ping.go.
func handlePing(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	_ = c.Send(jsonrpc.NewSuccessResponse(id, "pong?"))
}

type announceParams struct {
	Method          string          `json:"method"`
	WorkerName      string          `json:"workername"`
	Filter          json.RawMessage `json:"filter"`
	Doc             string          `json:"doc"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
}

func handleAnnounce(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}

	var p announceParams
	if err := json.Unmarshal(params, &p); err != nil {
		_ = c.Send(errInvalidParams(id, err.Error()))
		return
	}

	if _, _, err := policy.SplitMethod(p.Method); err != nil {
		_ = c.Send(errNoNamespace(id))
		return
	}

	if err := b.checkWorkerProtocol(p.ProtocolVersion); err != nil {
		_ = c.Send(errBadParam(id, err.Error()))
		return
	}

	pol := b.Policy()
	acl, ok := pol.LookupBackendACL(p.Method)
	if !ok {
		_ = c.Send(errNoACL(id))
		return
	}
	if !pol.CheckACL(acl, c.Who()) {
		_ = c.Send(errNoACL(id))
		return
	}

	filterKey, hasFilter := pol.LookupFilterKey(p.Method)
	var filterValue string
	if hasFilter {
		if len(p.Filter) == 0 {
			_ = c.Send(errBadParam(id, "announce requires filter."+filterKey))
			return
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(p.Filter, &obj); err != nil || len(obj) != 1 {
			_ = c.Send(errBadParam(id, "filter must be an object with exactly one key"))
			return
		}
		raw, ok := obj[filterKey]
		if !ok {
			_ = c.Send(errBadParam(id, "filter must set key "+filterKey))
			return
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil || v == nil {
			_ = c.Send(errBadParam(id, "filter value must be a defined scalar"))
			return
		}
		filterValue = fmt.Sprint(v)
	} else if len(p.Filter) > 0 {
		_ = c.Send(errBadParam(id, "method does not accept a filter"))
		return
	}

	for _, existing := range c.Methods() {
		if existing.Method == p.Method {
			_ = c.Send(errHandlerThrew(id, fmt.Errorf("method %q already announced on this connection", p.Method)))
			return
		}
	}

	if c.WorkerID() == 0 {
		c.mu.Lock()
		c.workerID = b.nextWorkerID.Add(1)
		if p.WorkerName != "" {
			c.workerName = p.WorkerName
		}
		c.mu.Unlock()
	}

	wm := &WorkerMethod{
		Method:       p.Method,
		OwningConnID: c.ID,
		Doc:          p.Doc,
		FilterKey:    filterKey,
		FilterValue:  filterValue,
	}
	c.mu.Lock()
	c.methods[p.Method] = wm
	c.mu.Unlock()

	b.registry.Announce(wm)
	b.startPing(c)

	_ = c.Send(jsonrpc.NewSuccessResponse(id, map[string]any{"msg": "success", "worker_id": c.WorkerID()}))
}

type withdrawParams struct {
	Method string `json:"method"`
}

func handleWithdraw(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}

	var p withdrawParams
	if err := json.Unmarshal(params, &p); err != nil {
		_ = c.Send(errInvalidParams(id, err.Error()))
		return
	}

	c.mu.Lock()
	_, existed := c.methods[p.Method]
	delete(c.methods, p.Method)
	remaining := len(c.methods)
	c.mu.Unlock()

	if existed {
		b.registry.Withdraw(p.Method, c.ID)
	}
	if remaining == 0 {
		c.stopPing()
	}

	_ = c.Send(jsonrpc.NewSuccessResponse(id, true))
}

func handleGetClients(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	type clientInfo struct {
		From     string `json:"from"`
		Who      string `json:"who"`
		State    string `json:"state"`
		WorkerID uint64 `json:"worker_id"`
	}
	var out []clientInfo
	for _, conn := range b.Clients() {
		out = append(out, clientInfo{From: conn.From, Who: conn.Who(), State: string(conn.State()), WorkerID: conn.WorkerID()})
	}
	_ = c.Send(jsonrpc.NewSuccessResponse(id, out))
}

func handleGetMethods(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	pol := b.Policy()
	out := make(map[string]string, len(pol.Methods))
	for name, def := range pol.Methods {
		out[name] = def.Backend
	}
	_ = c.Send(jsonrpc.NewSuccessResponse(id, out))
}

func handleGetMethodDetails(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	var p struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		_ = c.Send(errInvalidParams(id, err.Error()))
		return
	}
	def, ok := b.Policy().Methods[p.Method]
	if !ok {
		_ = c.Send(errMethodNotFound(id, p.Method))
		return
	}
	_ = c.Send(jsonrpc.NewSuccessResponse(id, map[string]any{
		"method":       p.Method,
		"backend":      def.Backend,
		"doc":          def.Doc,
		"call_counter": def.CallCounter.Load(),
	}))
}

func handleGetWorkers(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	type workerInfo struct {
		Method      string `json:"method"`
		WorkerID    uint64 `json:"worker_id"`
		FilterKey   string `json:"filter_key,omitempty"`
		FilterValue string `json:"filter_value,omitempty"`
	}
	var out []workerInfo
	for _, wm := range b.registry.Workers() {
		var workerID uint64
		if owner, ok := b.connection(wm.OwningConnID); ok {
			workerID = owner.WorkerID()
		}
		out = append(out, workerInfo{Method: wm.Method, WorkerID: workerID, FilterKey: wm.FilterKey, FilterValue: wm.FilterValue})
	}
	_ = c.Send(jsonrpc.NewSuccessResponse(id, out))
}

func handleGetStats(b *Broker, ctx context.Context, c *Connection, id *json.RawMessage, params json.RawMessage) {
	if c.State() != StateAuth {
		_ = c.Send(errBadState(id))
		return
	}
	pol := b.Policy()
	methods := make(map[string]int64)
	for name, def := range pol.Methods {
		if n := def.CallCounter.Load(); n != 0 {
			methods[name] = n
		}
	}
	clients := b.Clients()
	_ = c.Send(jsonrpc.NewSuccessResponse(id, map[string]any{
		"chunks":      b.Chunks(),
		"clients":     len(clients),
		"connections": len(clients),
		"workers":     b.registry.Count(),
		"methods":     methods,
	}))
}
