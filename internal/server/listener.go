// Package server accepts TCP connections and hands each one to its own
// session handler goroutine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/MrWong99/asrstreamd/internal/pool"
	"github.com/MrWong99/asrstreamd/internal/session"
)

// Config carries everything the listener needs to accept and dispatch
// connections.
type Config struct {
	IP            string
	Port          int
	SocketTimeout time.Duration
	Pool          *pool.Pool
}

// Listener owns the TCP socket and the set of in-flight session handlers.
type Listener struct {
	cfg Config
	ln  *net.TCPListener

	wg sync.WaitGroup
}

// Listen binds the configured address. It uses net.ListenConfig so the
// kernel applies SO_REUSEADDR, letting the server restart promptly after a
// crash without waiting out TIME_WAIT on the old socket.
func Listen(cfg Config) (*Listener, error) {
	lc := net.ListenConfig{}
	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)
	raw, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	tcpLn, ok := raw.(*net.TCPListener)
	if !ok {
		raw.Close()
		return nil, fmt.Errorf("server: expected *net.TCPListener, got %T", raw)
	}
	return &Listener{cfg: cfg, ln: tcpLn}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, dispatching each to a new session handler goroutine. When ctx is
// cancelled it returns nil once every dispatched handler has finished; any
// other accept error is returned at once, without waiting for handlers.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.AcceptTCP()
		if err != nil {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				return nil
			default:
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.dispatch(ctx, conn)
		}()
	}
}

func (l *Listener) dispatch(ctx context.Context, conn *net.TCPConn) {
	slog.Info("server: connection accepted", "remote", conn.RemoteAddr())
	h := session.New(conn, session.Config{
		Pool:          l.cfg.Pool,
		SocketTimeout: l.cfg.SocketTimeout,
	})
	h.Serve(ctx)
	slog.Info("server: connection closed", "remote", conn.RemoteAddr())
}

// Close stops accepting new connections immediately, without waiting for
// in-flight handlers to finish. Serve's own ctx-driven shutdown path is the
// preferred route; Close exists for callers that need to unblock a pending
// Accept directly.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
