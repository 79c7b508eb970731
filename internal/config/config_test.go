package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRecognizesKeysAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otelnet.conf")
	body := "# comment line\n" +
		"KERMIT=/usr/local/bin/kermit\n" +
		"send_zmodem = /usr/bin/sz\n" +
		"RECEIVE_ZMODEM=/usr/bin/rz\n" +
		"LOG=true\n" +
		"LOG_FILE=/tmp/session.log\n" +
		"\n" +
		"UNKNOWN_KEY=ignored\n"
	if err := writeFile(path, body); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kermit != "/usr/local/bin/kermit" {
		t.Fatalf("KERMIT: got %q", f.Kermit)
	}
	if f.SendZMODEM != "/usr/bin/sz" {
		t.Fatalf("SEND_ZMODEM: got %q", f.SendZMODEM)
	}
	if f.ReceiveZMODEM != "/usr/bin/rz" {
		t.Fatalf("RECEIVE_ZMODEM: got %q", f.ReceiveZMODEM)
	}
	if !f.Log {
		t.Fatalf("LOG: expected true")
	}
	if f.LogFile != "/tmp/session.log" {
		t.Fatalf("LOG_FILE: got %q", f.LogFile)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != (File{}) {
		t.Fatalf("expected zero value, got %+v", f)
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	writeFile(path, "this line has no equals sign\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestLoadRejectsNonBooleanLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	writeFile(path, "LOG=maybe\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for non-boolean LOG")
	}
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
