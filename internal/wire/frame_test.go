package wire_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MrWong99/asrstreamd/internal/wire"
)

func TestReadMagicString_Valid(t *testing.T) {
	r := strings.NewReader(wire.MagicString)
	if err := wire.ReadMagicString(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadMagicString_Mismatch(t *testing.T) {
	r := strings.NewReader("NOT_THE_RIGHT_STRINGGG")
	err := wire.ReadMagicString(r)
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v (%T)", err, err)
	}
}

func TestReadMagicString_Truncated(t *testing.T) {
	r := strings.NewReader("short")
	err := wire.ReadMagicString(r)
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v (%T)", err, err)
	}
}

func TestWriteFrame_ReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")
	if err := wire.WriteFrame(&buf, wire.CodeResult, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	f, err := wire.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Code != wire.CodeResult {
		t.Errorf("Code = %q, want %q", f.Code, wire.CodeResult)
	}
	if string(f.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", f.Payload, payload)
	}
}

func TestReadFrame_ZeroLengthPayload_IsNil(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, wire.CodeDone, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	f, err := wire.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Payload != nil {
		t.Errorf("Payload = %v, want nil", f.Payload)
	}
}

func TestReadFrame_EOF_AtFrameBoundary(t *testing.T) {
	_, err := wire.ReadFrame(strings.NewReader(""))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrame_TruncatedHeader_IsProtocolError(t *testing.T) {
	_, err := wire.ReadFrame(strings.NewReader("%u00"))
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v (%T)", err, err)
	}
}

func TestReadFrame_BadHexLength_IsProtocolError(t *testing.T) {
	_, err := wire.ReadFrame(strings.NewReader("%uZZZZ"))
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v (%T)", err, err)
	}
}

func TestReadFrame_TruncatedPayload_IsProtocolError(t *testing.T) {
	_, err := wire.ReadFrame(strings.NewReader("%u0010ab"))
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %v (%T)", err, err)
	}
}

func TestWriteFrame_RejectsBadCodeLength(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, "%too-long", nil); err == nil {
		t.Fatal("expected error for non-2-byte code")
	}
}

func TestReadFrame_HexLengthIsCaseInsensitive(t *testing.T) {
	r := strings.NewReader("%u000Aabcdefghij")
	f, err := wire.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(f.Payload) != "abcdefghij" {
		t.Errorf("Payload = %q, want %q", f.Payload, "abcdefghij")
	}
}
