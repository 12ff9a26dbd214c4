package rpcswitch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rpcswitch/rpc-switch/pkg/jsonrpc"
)

const pingIDPrefix = "ping-"

// startPing arms the connection's recurring ping schedule. Called once, on
// the first successful announce (§4.3 step 7).
func (b *Broker) startPing(c *Connection) {
	c.mu.Lock()
	if c.pingTimer != nil {
		c.mu.Unlock()
		return
	}
	c.pingTimer = time.AfterFunc(b.pingInterval, func() { b.sendPing(c) })
	c.mu.Unlock()
}

func (b *Broker) sendPing(c *Connection) {
	if c.Closed() {
		return
	}

	id := c.nextInternalID()
	c.mu.Lock()
	c.pendingPing = idFromRaw(id)
	c.mu.Unlock()

	if err := c.Send(jsonrpc.Request{JSONRPC: "2.0", ID: id, Method: "rpcswitch.ping"}); err != nil {
		b.Disconnect(c)
		return
	}

	deadline := time.AfterFunc(pingDeadline, func() { b.pingTimedOut(c) })

	c.mu.Lock()
	c.pingDeadlineTimer = deadline
	c.mu.Unlock()
}

func (b *Broker) pingTimedOut(c *Connection) {
	c.mu.Lock()
	stillPending := c.pendingPing != ""
	c.mu.Unlock()
	if !stillPending || c.Closed() {
		return
	}
	b.logger.Warn("ping deadline expired, disconnecting", "conn_id", c.ID, "who", c.Who())
	b.Disconnect(c)
}

// resolvePing clears an outstanding ping and reschedules the next one if
// idStr matches the connection's pending ping id. Reports whether it was
// handled.
func (b *Broker) resolvePing(c *Connection, idStr string) bool {
	if !strings.HasPrefix(idStr, pingIDPrefix) {
		return false
	}

	c.mu.Lock()
	matched := c.pendingPing == idStr
	if matched {
		c.pendingPing = ""
		if c.pingDeadlineTimer != nil {
			c.pingDeadlineTimer.Stop()
			c.pingDeadlineTimer = nil
		}
	}
	c.mu.Unlock()

	if matched && !c.Closed() {
		c.mu.Lock()
		c.pingTimer = time.AfterFunc(b.pingInterval, func() { b.sendPing(c) })
		c.mu.Unlock()
	}
	return true
}

func idFromRaw(id *json.RawMessage) string {
	v, ok := jsonrpc.RawID(id)
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}
