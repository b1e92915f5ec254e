package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger := NewLogger(path)
	defer logger.Close()

	logger.Write("first message")
	logger.Write("second message")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}
	if !strings.HasSuffix(lines[0], ": first message") {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ": second message") {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestLoggerFileExposesWriteHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger := NewLogger(path)
	defer logger.Close()

	f := logger.File()
	if f == nil {
		t.Fatal("expected a write handle for an openable log file")
	}
	if _, err := f.WriteString("direct line\n"); err != nil {
		t.Fatalf("write through handle: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "direct line") {
		t.Fatalf("handle writes should land in the log file, got %q", string(data))
	}
}

func TestLoggerNilFileHandle(t *testing.T) {
	var logger *Logger
	if logger.File() != nil {
		t.Fatal("nil logger should expose no handle")
	}
}
