package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/asrstreamd/internal/logging"
)

func TestNew_EmptyPath_LogsToStderrWithoutError(t *testing.T) {
	logger, closer, err := logging.New("", logging.LevelInfo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_FilePath_CreatesAndWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, closer, err := logging.New(path, logging.LevelDebug)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain the written record")
	}
}

func TestRecorder_Disabled_DiscardsWrites(t *testing.T) {
	r := logging.NewRecorder(t.TempDir(), false)
	w, err := r.Create("alice", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	n, err := w.Write([]byte{1, 2, 3})
	if err != nil || n != 3 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
}

func TestRecorder_Enabled_WritesPCMFileUnderDayDirectory(t *testing.T) {
	base := t.TempDir()
	r := logging.NewRecorder(base, true)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	w, err := r.Create("alice", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dayDir := filepath.Join(base, "20260730")
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one recorded file, got %d", len(entries))
	}
}

func TestRecorder_Enabled_SanitizesUserIDPathSeparators(t *testing.T) {
	base := t.TempDir()
	r := logging.NewRecorder(base, true)
	now := time.Now()

	w, err := r.Create("../../etc/passwd", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	dayDir := filepath.Join(base, now.Format("20060102"))
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file confined to the day directory, got %d", len(entries))
	}
}
