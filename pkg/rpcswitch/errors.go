package rpcswitch

import (
	"encoding/json"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
)

// Broker-specific error codes, layered on top of the standard JSON-RPC
// codes in pkg/jsonrpc. CodeTooBig and CodeBadParam are kept symbolically
// distinct even though they share a numeric code; see DESIGN.md.
const (
	CodeNotNotification = -32000
	CodeHandlerThrew    = -32001
	CodeBadState        = -32002
	CodeNoWorker        = -32003
	CodeBadChannel      = -32004
	CodeNoChannel       = -32005
	CodeGone            = -32006
	CodeNoNamespace     = -32007
	CodeNoACL           = -32008
	CodeNotAllowed      = -32009
	CodeBadParam        = -32010
	CodeTooBig          = -32010
)

func errNotNotification(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNotNotification, "request requires an id")
}

func errHandlerThrew(id *json.RawMessage, cause error) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeHandlerThrew, "handler error: "+cause.Error())
}

func errBadState(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeBadState, "method not valid in current connection state")
}

func errNoWorker(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNoWorker, "no worker registered for method")
}

func errBadChannel(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeBadChannel, "missing or malformed rpcswitch envelope")
}

func errNoChannel(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNoChannel, "unknown channel")
}

func errGone(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeGone, "opposite end of channel gone")
}

func errNoNamespace(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNoNamespace, "method has no namespace")
}

func errNoACL(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNoACL, "no acl entry for method")
}

func errNotAllowed(id *json.RawMessage) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeNotAllowed, "caller not permitted")
}

func errBadParam(id *json.RawMessage, detail string) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, CodeBadParam, "bad param: "+detail)
}

func errMethodNotFound(id *json.RawMessage, method string) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, jsonrpc.MethodNotFound, "method not found: "+method)
}

func errInvalidParams(id *json.RawMessage, detail string) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, jsonrpc.InvalidParams, "invalid params: "+detail)
}

func errParse(id *json.RawMessage, detail string) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, jsonrpc.ParseError, "parse error: "+detail)
}
