package kermit

import (
	"io"
	"os"
)

// CloseReason tells the close callback why a file is being closed, so
// it can apply the receive-side partial-file deletion policy (§4.4, §9
// open question).
type CloseReason int

const (
	CloseEOF CloseReason = iota
	CloseBreak
	CloseDataPacket // engine ended mid-transfer on an ordinary Data packet
)

// FileHandle wraps an open transfer file with the single-byte-at-a-time
// read contract the Kermit engine imposes: ReadByte must reset the
// engine's own notion of "start of buffer" before each underlying
// filesystem read, and report -1 (not 0) at EOF.
type FileHandle struct {
	f    *os.File
	buf  [4096]byte
	n    int
	pos  int
	size int64
}

// OpenRead opens path for the engine's read callback.
func OpenRead(path string) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileHandle{f: f, size: info.Size()}, nil
}

// OpenWrite creates path for the engine's write callback, truncating
// any existing file of the same name.
func OpenWrite(path string) (*FileHandle, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileHandle{f: f}, nil
}

// ReadByte refills the internal block buffer on exhaustion, resetting
// the read pointer to its start before the underlying read as the
// engine's contract requires, then returns the first byte of the fresh
// block while advancing past it. Returns -1 at EOF, matching the
// engine's EOF-is-negative-one convention rather than Go's (0, io.EOF).
func (h *FileHandle) ReadByte() int {
	if h.pos >= h.n {
		h.pos = 0
		n, err := h.f.Read(h.buf[:])
		if n == 0 || (err != nil && err != io.EOF) {
			h.n = 0
			return -1
		}
		h.n = n
	}
	b := h.buf[h.pos]
	h.pos++
	return int(b)
}

// Size reports the file's total length, for the engine's file-info
// callback.
func (h *FileHandle) Size() int64 { return h.size }

// writeOK is the distinguished success sentinel the engine's write
// callback must return instead of a byte count, so a short-but-complete
// write is never mistaken for an error.
const writeOK = 0

// WriteBlock writes buf in full and returns writeOK on success, a
// negative value on failure.
func (h *FileHandle) WriteBlock(buf []byte) int {
	if _, err := h.f.Write(buf); err != nil {
		return -1
	}
	return writeOK
}

// Close closes the handle, applying the receive-side partial-file
// deletion policy: only a Data-packet close (partial file) with
// keepPartial disabled deletes the file, and only on the receive side.
// EOF and Break closes, and every close on the send side, never delete.
func (h *FileHandle) Close(path string, reason CloseReason, isSending, keepPartial bool) error {
	err := h.f.Close()
	if !isSending && reason == CloseDataPacket && !keepPartial {
		os.Remove(path)
	}
	return err
}
