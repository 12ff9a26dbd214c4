package rpcswitch

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
	"github.com/rpcswitch/rpc-switch/pkg/policy"
	"github.com/rpcswitch/rpc-switch/pkg/tracing"
)

// frame is the superset of fields Handle needs to classify an incoming
// JSON-RPC object before deciding how to route it (§4.4).
type frame struct {
	Method    *string           `json:"method"`
	ID        *json.RawMessage  `json:"id"`
	Params    json.RawMessage   `json:"params"`
	Result    json.RawMessage   `json:"result"`
	Error     *jsonrpc.Error    `json:"error"`
	RPCSwitch *jsonrpc.Envelope `json:"rpcswitch"`
}

// Handle processes one decoded JSON-RPC object arriving on c, following
// the decision order in §4.4: response-to-tracked-channel or internal
// matcher, enveloped channel traffic, internal method, policy-routed
// external call, else method-not-found.
func (b *Broker) Handle(ctx context.Context, c *Connection, raw json.RawMessage) {
	b.chunks.Add(1)

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		_ = c.Send(errParse(nil, err.Error()))
		return
	}

	isResponse := f.Method == nil && f.ID != nil && (f.Result != nil || f.Error != nil)
	if isResponse {
		b.handleResponse(c, &f)
		return
	}

	if f.Method == nil {
		_ = c.Send(jsonrpc.NewErrorResponse(f.ID, jsonrpc.InvalidRequest, "request has neither method nor result/error"))
		return
	}
	method := *f.Method

	if f.RPCSwitch != nil {
		b.handleChannelRequest(c, f.ID, method, f.Params, f.RPCSwitch, raw)
		return
	}

	if h, ok := internalHandlers[method]; ok {
		b.handleInternal(ctx, c, f.ID, method, f.Params, h)
		return
	}

	if def, ok := b.Policy().Methods[method]; ok {
		b.handleExternalCall(ctx, c, f.ID, method, def, f.Params)
		return
	}

	if f.ID == nil {
		b.logger.Debug("dropped unroutable notification", "method", method)
		return
	}
	_ = c.Send(errMethodNotFound(f.ID, method))
}

// handleResponse routes a bare response: either it answers a
// broker-originated ping, or it resolves an outstanding forwarded request
// on one of c's channels (4.5).
func (b *Broker) handleResponse(c *Connection, f *frame) {
	idVal, ok := jsonrpc.RawID(f.ID)
	if !ok {
		return
	}
	idStr := fmt.Sprint(idVal)

	if b.resolvePing(c, idStr) {
		return
	}

	if f.RPCSwitch == nil || f.RPCSwitch.VCookie != jsonrpc.EatMe {
		b.logger.Debug("unmatched response dropped", "conn_id", c.ID, "id", idStr)
		return
	}

	ch, ok := c.channel(f.RPCSwitch.VCI)
	if !ok {
		return
	}
	if _, ok := ch.resolveRequest(idStr); !ok {
		return
	}

	// c is the side that just answered the request; its refcount was the
	// one incremented when the request was forwarded to it.
	c.decRef()

	dest := ch.opposite(c)
	_ = dest.Send(jsonrpc.Response{
		JSONRPC:   "2.0",
		ID:        f.ID,
		Result:    f.Result,
		Error:     f.Error,
		RPCSwitch: &jsonrpc.Envelope{VCookie: jsonrpc.EatMe, VCI: f.RPCSwitch.VCI},
	})
}

// handleChannelRequest forwards a request bearing a genuine rpcswitch
// envelope to the opposite endpoint of its channel (4.5).
func (b *Broker) handleChannelRequest(c *Connection, id *json.RawMessage, method string, params json.RawMessage, env *jsonrpc.Envelope, raw json.RawMessage) {
	if env.VCookie != jsonrpc.EatMe || env.VCI == "" {
		if id != nil {
			_ = c.Send(errBadChannel(id))
		}
		return
	}

	ch, ok := c.channel(env.VCI)
	if !ok {
		if id != nil {
			_ = c.Send(errNoChannel(id))
		}
		return
	}

	if id == nil {
		// Notification on a channel: forward verbatim, no reqs bookkeeping.
		dest := ch.opposite(c)
		_ = dest.Send(raw)
		return
	}

	idVal, ok := jsonrpc.RawID(id)
	if !ok {
		_ = c.Send(errBadChannel(id))
		return
	}
	idStr := fmt.Sprint(idVal)

	dest := ch.opposite(c)
	d := toWorker
	if c == ch.WorkerConn {
		d = toClient
	}
	ch.recordRequest(idStr, d, id)
	dest.incRef()

	_ = dest.Send(raw)
}

// handleExternalCall performs ACL, filter, and worker-selection lookups
// for a call to a policy-routed public method, then rewrites and forwards
// the request to the chosen worker (4.6).
func (b *Broker) handleExternalCall(ctx context.Context, c *Connection, id *json.RawMessage, method string, def *policy.MethodDef, params json.RawMessage) {
	_, span := tracing.StartDispatch(ctx, "", method, def.Backend, c.Who())
	defer span.End()

	if c.State() != StateAuth {
		if id != nil {
			_ = c.Send(errBadState(id))
		}
		return
	}

	pol := b.Policy()
	acl, ok := pol.LookupMethodACL(method)
	if !ok {
		if id != nil {
			_ = c.Send(errNoACL(id))
		}
		return
	}
	if !pol.CheckACL(acl, c.Who()) {
		if id != nil {
			_ = c.Send(errNotAllowed(id))
		}
		return
	}

	backend := def.Backend
	filterValue := ""
	if key, ok := pol.LookupFilterKey(backend); ok {
		v, err := extractFilterValue(params, key)
		if err != nil {
			if id != nil {
				_ = c.Send(errBadParam(id, err.Error()))
			}
			return
		}
		filterValue = v
	}

	wm, ok := b.registry.Select(backend, filterValue, b.refcountOf)
	if !ok {
		if id != nil {
			_ = c.Send(errNoWorker(id))
		}
		return
	}

	worker, ok := b.connection(wm.OwningConnID)
	if !ok {
		if id != nil {
			_ = c.Send(errNoWorker(id))
		}
		return
	}

	def.CallCounter.Add(1)

	ch := b.findOrCreateChannel(c, worker)
	span.SetAttributes(attribute.String("rpcswitch.vci", ch.VCI))

	outgoing := jsonrpc.Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  backend,
		Params:  params,
		RPCSwitch: &jsonrpc.Envelope{
			VCookie: jsonrpc.EatMe,
			VCI:     ch.VCI,
			Who:     c.Who(),
		},
	}

	if id != nil {
		idVal, _ := jsonrpc.RawID(id)
		ch.recordRequest(fmt.Sprint(idVal), toWorker, id)
		worker.incRef()
	}

	_ = worker.Send(outgoing)
}

// extractFilterValue requires params to be a JSON object containing a
// defined scalar value at key (§4.6 step 2).
func extractFilterValue(params json.RawMessage, key string) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing filter param %q", key)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(params, &obj); err != nil {
		return "", fmt.Errorf("params must be an object to carry filter %q", key)
	}
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("missing filter param %q", key)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "", fmt.Errorf("filter param %q must be a defined scalar", key)
	}
	return fmt.Sprint(v), nil
}
