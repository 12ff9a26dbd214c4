package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"

	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

// Listener accepts raw TCP connections, frames them as newline-delimited
// JSON, and feeds decoded frames to a Broker. One goroutine per accepted
// connection runs its read loop; Serve itself blocks in Accept.
type Listener struct {
	ln     net.Listener
	broker *rpcswitch.Broker
	logger *slog.Logger
}

// Listen opens a TCP listener on addr and wraps it for Serve.
func Listen(addr string, broker *rpcswitch.Broker, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{ln: ln, broker: broker, logger: logger}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections. It does not affect connections
// already handed to the broker.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Each connection gets its own SocketConn and read-loop goroutine.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go l.serveConn(ctx, nc)
	}
}

func (l *Listener) serveConn(ctx context.Context, nc net.Conn) {
	sock := NewSocketConn(nc, l.logger)
	conn := l.broker.Accept(sock.RemoteAddr(), sock)

	err := sock.ReadLoop(func(line json.RawMessage) {
		l.broker.Handle(ctx, conn, line)
	})
	if err != nil {
		l.logger.Debug("connection read loop ended", "from", sock.RemoteAddr(), "error", err)
	}
	l.broker.Disconnect(conn)
}
