// Package logging provides the session transcript writer and the
// wrapped stdlib logger the rest of the program reports boundary
// errors through (§7).
package logging

import (
	"fmt"
	"log"
	"os"
)

// New builds a standard logger writing to stderr with the same flags
// the teacher's debug monitor uses.
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// SessionLog records a hex+ASCII transcript of everything read from and
// written to the TCP connection when the LOG config key is enabled.
type SessionLog struct {
	f *os.File
}

// Open creates or truncates path for a new transcript.
func Open(path string) (*SessionLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("logging: open session log: %w", err)
	}
	return &SessionLog{f: f}, nil
}

// Close flushes and closes the transcript file.
func (s *SessionLog) Close() error {
	if s == nil {
		return nil
	}
	return s.f.Close()
}

// Received appends a "<<" hex+ASCII block for bytes read from the peer.
func (s *SessionLog) Received(data []byte) { s.record("<<", data) }

// Sent appends a ">>" hex+ASCII block for bytes written to the peer.
func (s *SessionLog) Sent(data []byte) { s.record(">>", data) }

func (s *SessionLog) record(dir string, data []byte) {
	if s == nil || len(data) == 0 {
		return
	}
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		fmt.Fprintf(s.f, "%s %04x  %-47s  %s\n", dir, offset, hexColumn(chunk), asciiColumn(chunk))
	}
}

func hexColumn(chunk []byte) string {
	out := make([]byte, 0, 16*3)
	for i, b := range chunk {
		if i == 8 {
			out = append(out, ' ')
		}
		out = append(out, fmt.Sprintf("%02x ", b)...)
	}
	return string(out)
}

func asciiColumn(chunk []byte) string {
	out := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		if b >= 0x20 && b < 0x7F {
			out = append(out, b)
		} else {
			out = append(out, '.')
		}
	}
	return string(out)
}
