package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionLogRecordsHexAndASCIIColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.log")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Received([]byte("hi\x01\x02"))
	log.Sent([]byte("ok"))
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "<< 0000") {
		t.Fatalf("missing received header: %q", out)
	}
	if !strings.Contains(out, "68 69 01 02") {
		t.Fatalf("missing hex bytes for \"hi\\x01\\x02\": %q", out)
	}
	if !strings.Contains(out, "hi..") {
		t.Fatalf("expected unprintable bytes rendered as dots: %q", out)
	}
	if !strings.Contains(out, ">> 0000") {
		t.Fatalf("missing sent header: %q", out)
	}
	if !strings.Contains(out, "6f 6b") {
		t.Fatalf("missing hex bytes for \"ok\": %q", out)
	}
}

func TestSessionLogWrapsAt16BytesPerLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.log")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := make([]byte, 20)
	for i := range data {
		data[i] = 'a'
	}
	log.Received(data)
	log.Close()

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a line per 16-byte chunk, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "0000") || !strings.Contains(lines[1], "0010") {
		t.Fatalf("expected offsets 0000 and 0010, got: %q", out)
	}
}

func TestSessionLogNilReceiverIsNoOp(t *testing.T) {
	var log *SessionLog
	log.Received([]byte("x"))
	log.Sent([]byte("y"))
	if err := log.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}

func TestNewWritesToStderrLogger(t *testing.T) {
	logger := New("otelnet: ")
	if logger == nil {
		t.Fatal("New returned nil logger")
	}
	if logger.Prefix() != "otelnet: " {
		t.Fatalf("Prefix: got %q", logger.Prefix())
	}
}
