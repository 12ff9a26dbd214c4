package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
)

// wireClient is a minimal synchronous JSON-RPC client over the switch's
// newline-delimited wire protocol: dial, hello, then one request/response
// call at a time. It exists for rpcswitchctl's introspection commands, not
// as a general worker/client SDK.
type wireClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
	nextID  atomic.Int64
}

// dialAndHello connects to addr and authenticates as who via authMethod,
// returning a client ready to issue introspection calls.
func dialAndHello(addr, authMethod, who, token string, timeout time.Duration) (*wireClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	c := &wireClient{conn: conn, scanner: scanner}

	var helloResult struct {
		Who string `json:"who"`
	}
	if err := c.call("rpcswitch.hello", map[string]string{
		"method": authMethod,
		"who":    who,
		"token":  token,
	}, &helloResult); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}

	return c, nil
}

// call sends one JSON-RPC request and blocks for its matching response.
func (c *wireClient) call(method string, params, out any) error {
	id := c.nextID.Add(1)
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	req := jsonrpc.Request{
		JSONRPC: "2.0",
		ID:      jsonrpc.NewID(id),
		Method:  method,
		Params:  paramsBytes,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	if _, err := c.conn.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return fmt.Errorf("connection closed before a response arrived")
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if out != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

func (c *wireClient) Close() error {
	return c.conn.Close()
}
