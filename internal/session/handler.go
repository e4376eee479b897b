// Package session drives one client connection through its full
// lifecycle: magic-string handshake, user-id or status-query packet,
// engine allocation, the %b/%s/%f relay loop, and guaranteed cleanup.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/asrstreamd/internal/pool"
	"github.com/MrWong99/asrstreamd/internal/wire"
	"github.com/MrWong99/asrstreamd/internal/worker"
)

// tracer is the package-wide tracer for session spans. Using the global
// TracerProvider means tests that never call observe.InitProvider still
// get a working no-op tracer.
var tracer = otel.Tracer("github.com/MrWong99/asrstreamd/internal/session")

// Config carries the per-connection knobs a Handler needs from the server.
type Config struct {
	Pool          *pool.Pool
	SocketTimeout time.Duration
}

// Handler processes exactly one net.Conn from handshake to close.
type Handler struct {
	conn          net.Conn
	pool          *pool.Pool
	socketTimeout time.Duration
	userID        string
}

// New creates a Handler for conn using cfg. conn's read/write deadlines are
// managed internally by Serve; the caller only needs to close conn if Serve
// itself never got the chance to (e.g. listener shutdown).
func New(conn net.Conn, cfg Config) *Handler {
	return &Handler{conn: conn, pool: cfg.Pool, socketTimeout: cfg.SocketTimeout}
}

// touchDeadline pushes conn's read/write deadline socketTimeout into the
// future, mirroring the original server's per-recv socket timeout: a client
// that goes silent mid-session is disconnected rather than pinning an
// engine forever.
func (h *Handler) touchDeadline() {
	if h.socketTimeout <= 0 {
		return
	}
	h.conn.SetDeadline(time.Now().Add(h.socketTimeout))
}

// Serve runs the full connection lifecycle. It never panics out to the
// caller — a recovered panic is logged and treated as a protocol error —
// and it always closes conn before returning.
func (h *Handler) Serve(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "session.Serve", trace.WithAttributes(
		attribute.String("remote", h.conn.RemoteAddr().String()),
	))
	defer span.End()

	defer h.conn.Close()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session: handler panicked", "remote", h.conn.RemoteAddr(), "panic", r)
			span.RecordError(fmt.Errorf("panic: %v", r))
		}
	}()

	h.touchDeadline()
	if err := wire.ReadMagicString(h.conn); err != nil {
		slog.Warn("session: magic string rejected", "remote", h.conn.RemoteAddr(), "error", err)
		return
	}

	h.touchDeadline()
	frame, err := wire.ReadFrame(h.conn)
	if err != nil {
		slog.Warn("session: failed to read identification packet", "remote", h.conn.RemoteAddr(), "error", err)
		return
	}

	switch frame.Code {
	case wire.CodeStatusQuery:
		h.serveStatus()
		return
	case wire.CodeUserID:
		h.userID = string(frame.Payload)
	default:
		slog.Warn("session: unexpected identification packet", "remote", h.conn.RemoteAddr(), "code", frame.Code)
		return
	}

	h.serveRelay(ctx)
}

// serveStatus answers a %c status query: one %C line per pool engine, then
// a terminal %F, then the connection closes — no engine is ever allocated
// for this path.
func (h *Handler) serveStatus() {
	for i, st := range h.pool.Statuses() {
		state := "sleeping"
		if st.Busy {
			state = "running"
		}
		line := fmt.Sprintf("engine %d: %s", i, state)
		if err := wire.WriteFrame(h.conn, wire.CodeStatusLine, []byte(line)); err != nil {
			slog.Warn("session: failed writing status line", "remote", h.conn.RemoteAddr(), "error", err)
			return
		}
	}
	if err := wire.WriteFrame(h.conn, wire.CodeDone, nil); err != nil {
		slog.Warn("session: failed writing status terminator", "remote", h.conn.RemoteAddr(), "error", err)
	}
}

// serveRelay allocates an engine, sends the welcome frame, waits for %b,
// and then relays frames between the connection and the engine until %f or
// the connection drops. The engine is always released back to the pool on
// the way out, regardless of which exit path is taken.
func (h *Handler) serveRelay(ctx context.Context) {
	engine, err := h.pool.Allocate(ctx)
	if err != nil {
		slog.Warn("session: no engine available", "remote", h.conn.RemoteAddr(), "user", h.userID, "error", err)
		wire.WriteFrame(h.conn, wire.CodeResult, []byte(`{"reason": "SERVER_TOO_BUSY"}`))
		wire.WriteFrame(h.conn, wire.CodeDone, nil)
		return
	}
	defer h.pool.Release(engine)

	welcome := fmt.Sprintf("welcome message for user[%s]", h.userID)
	if err := wire.WriteFrame(h.conn, wire.CodeWelcome, []byte(welcome)); err != nil {
		slog.Warn("session: failed writing welcome frame", "remote", h.conn.RemoteAddr(), "error", err)
		return
	}

	h.touchDeadline()
	frame, err := wire.ReadFrame(h.conn)
	if err != nil {
		slog.Warn("session: failed waiting for begin packet", "remote", h.conn.RemoteAddr(), "user", h.userID, "error", err)
		return
	}
	if frame.Code != wire.CodeBegin {
		slog.Warn("session: expected begin packet", "remote", h.conn.RemoteAddr(), "user", h.userID, "code", frame.Code)
		return
	}

	resultsDone := make(chan struct{})
	go h.relayResults(engine, resultsDone)

	engine.In <- worker.Input{Code: wire.CodeBegin, Data: []byte(h.userID)}

	for {
		h.touchDeadline()
		frame, err := wire.ReadFrame(h.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("session: read error mid-relay", "remote", h.conn.RemoteAddr(), "user", h.userID, "error", err)
			}
			engine.In <- worker.Input{Code: wire.CodeFinish}
			break
		}
		engine.In <- worker.Input{Code: frame.Code, Data: frame.Payload}
		if frame.Code == wire.CodeFinish {
			break
		}
	}

	<-resultsDone
}

// relayResults copies Result values from engine.Out to the connection as
// wire Frames until the engine emits %F or its Out channel closes. It
// signals done either way so serveRelay's cleanup can proceed.
func (h *Handler) relayResults(engine *worker.Engine, done chan<- struct{}) {
	defer close(done)
	for r := range engine.Out {
		if err := wire.WriteFrame(h.conn, r.Code, r.Data); err != nil {
			slog.Warn("session: failed writing result frame", "remote", h.conn.RemoteAddr(), "user", h.userID, "error", err)
			return
		}
		if r.Code == wire.CodeDone {
			return
		}
	}
}
