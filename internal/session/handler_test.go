package session_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/asrstreamd/internal/pool"
	"github.com/MrWong99/asrstreamd/internal/session"
	"github.com/MrWong99/asrstreamd/internal/wire"
	"github.com/MrWong99/asrstreamd/internal/worker"
	"github.com/MrWong99/asrstreamd/pkg/classifier/mock"
	"github.com/MrWong99/asrstreamd/pkg/transcriber"
	transcribermock "github.com/MrWong99/asrstreamd/pkg/transcriber/mock"
)

func newTestPool(t *testing.T, tr *transcribermock.Transcriber) (*pool.Pool, context.CancelFunc) {
	t.Helper()
	e := worker.New(worker.Config{
		Name:           "test-engine-0",
		Transcriber:    tr,
		Classifier:     mock.New(1000),
		SampleRate:     16000,
		MaxUtteranceMs: 200,
		Language:       "en",
		QueueDepth:     4,
	})
	p := pool.New([]*worker.Engine{e})
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	return p, cancel
}

func writeFrame(t *testing.T, conn net.Conn, code string, payload []byte) {
	t.Helper()
	if err := wire.WriteFrame(conn, code, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) wire.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := wire.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return f
}

func TestServe_StatusQuery_RepliesAndCloses(t *testing.T) {
	p, cancel := newTestPool(t, transcribermock.New())
	defer cancel()

	client, server := net.Pipe()
	h := session.New(server, session.Config{Pool: p})
	done := make(chan struct{})
	go func() { h.Serve(context.Background()); close(done) }()

	client.Write([]byte(wire.MagicString))
	writeFrame(t, client, wire.CodeStatusQuery, nil)

	f := readFrame(t, client)
	if f.Code != wire.CodeStatusLine {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeStatusLine)
	}
	f = readFrame(t, client)
	if f.Code != wire.CodeDone {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeDone)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after status query")
	}
}

func TestServe_BadMagicString_ClosesWithoutReply(t *testing.T) {
	p, cancel := newTestPool(t, transcribermock.New())
	defer cancel()

	client, server := net.Pipe()
	h := session.New(server, session.Config{Pool: p})
	done := make(chan struct{})
	go func() { h.Serve(context.Background()); close(done) }()

	client.Write([]byte("NOT_THE_RIGHT_MAGIC!!!"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after bad magic string")
	}

	client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatal("expected connection to be closed with no reply")
	}
}

func TestServe_FullRelay_EmitsResultThenDone(t *testing.T) {
	tr := transcribermock.New([]transcriber.Segment{{Text: "hi", StartSec: 0, EndSec: 1}})
	p, cancel := newTestPool(t, tr)
	defer cancel()

	client, server := net.Pipe()
	h := session.New(server, session.Config{Pool: p})
	done := make(chan struct{})
	go func() { h.Serve(context.Background()); close(done) }()

	client.Write([]byte(wire.MagicString))
	writeFrame(t, client, wire.CodeUserID, []byte("alice"))

	f := readFrame(t, client)
	if f.Code != wire.CodeWelcome {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeWelcome)
	}

	speech := make([]byte, 320)
	for i := 0; i < len(speech); i += 2 {
		speech[i] = 0xff
		speech[i+1] = 0x7f
	}

	writeFrame(t, client, wire.CodeBegin, nil)
	writeFrame(t, client, wire.CodeSpeech, speech)
	writeFrame(t, client, wire.CodeFinish, nil)

	f = readFrame(t, client)
	if f.Code != wire.CodeResult {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeResult)
	}
	f = readFrame(t, client)
	if f.Code != wire.CodeDone {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeDone)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after relay completed")
	}

	if got := p.Statuses()[0].Busy; got {
		t.Error("expected engine to be released after session ended")
	}
}

func TestServe_NoEngineAvailable_EmitsTooBusyThenDone(t *testing.T) {
	p, cancelPool := newTestPool(t, transcribermock.New())
	defer cancelPool()

	// Occupy the only engine so Allocate has nothing to hand out.
	busy, err := p.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer p.Release(busy)

	client, server := net.Pipe()
	h := session.New(server, session.Config{Pool: p})

	// Cancel almost immediately so Allocate's retry loop gives up fast
	// instead of waiting out the full 60s budget.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() { h.Serve(ctx); close(done) }()

	client.Write([]byte(wire.MagicString))
	writeFrame(t, client, wire.CodeUserID, []byte("bob"))

	f := readFrame(t, client)
	if f.Code != wire.CodeResult {
		t.Fatalf("Code = %q, want %q (SERVER_TOO_BUSY reason)", f.Code, wire.CodeResult)
	}
	if !strings.Contains(string(f.Payload), "SERVER_TOO_BUSY") {
		t.Errorf("payload = %q, want it to mention SERVER_TOO_BUSY", f.Payload)
	}

	f = readFrame(t, client)
	if f.Code != wire.CodeDone {
		t.Fatalf("Code = %q, want %q", f.Code, wire.CodeDone)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after reporting SERVER_TOO_BUSY")
	}
}
