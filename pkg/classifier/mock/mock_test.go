package mock_test

import (
	"testing"

	"github.com/MrWong99/asrstreamd/pkg/classifier/mock"
)

func TestIsSpeech_AboveThreshold(t *testing.T) {
	c := mock.New(1000)
	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0xff
		loud[i+1] = 0x7f // max positive int16, little-endian
	}
	speech, err := c.IsSpeech(loud, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !speech {
		t.Error("expected loud frame to classify as speech")
	}
}

func TestIsSpeech_BelowThreshold(t *testing.T) {
	c := mock.New(1000)
	silence := make([]byte, 320)
	speech, err := c.IsSpeech(silence, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speech {
		t.Error("expected silent frame not to classify as speech")
	}
}

func TestReset_IncrementsCount(t *testing.T) {
	c := mock.New(1000)
	c.Reset()
	c.Reset()
	if got := c.Resets(); got != 2 {
		t.Errorf("Resets() = %d, want 2", got)
	}
}

func TestClose_MarksClosed(t *testing.T) {
	c := mock.New(1000)
	if c.Closed() {
		t.Fatal("expected Closed() == false before Close")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Closed() {
		t.Error("expected Closed() == true after Close")
	}
}
