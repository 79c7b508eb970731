package kermitengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/transfer"
)

func TestPacketRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		typ  byte
		data []byte
	}{
		{typeSendInit, []byte("~@? 94#3")},
		{typeFileHdr, []byte("report.txt")},
		{typeData, []byte("the quick brown fox jumps over the lazy dog")},
		{typeEOF, nil},
	} {
		raw := buildPacket(5, tc.typ, tc.data)
		// The adapter strips the leading SOH before the engine ever sees
		// the bytes; simulate that here.
		pkt, ok := parsePacket(raw[1:])
		if !ok {
			t.Fatalf("type %q: packet failed to parse", tc.typ)
		}
		if pkt.seq != 5 || pkt.typ != tc.typ || string(pkt.data) != string(tc.data) {
			t.Fatalf("type %q: round trip mismatch: %+v", tc.typ, pkt)
		}
	}
}

func TestParsePacketRejectsBadChecksum(t *testing.T) {
	raw := buildPacket(1, typeData, []byte("hello"))
	corrupted := append([]byte(nil), raw[1:]...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, ok := parsePacket(corrupted); ok {
		t.Fatalf("expected checksum mismatch to be rejected")
	}
}

func TestNextSeqWrapsAt64(t *testing.T) {
	if nextSeq(63) != 0 {
		t.Fatalf("expected seq to wrap at 64, got %d", nextSeq(63))
	}
}

// pipeSocket is one end of an in-memory duplex channel pair
// satisfying kermit.Socket, used to run a real sender against a real
// receiver without a network connection.
type pipeSocket struct {
	in  chan []byte
	out chan []byte
}

func newPipePair() (*pipeSocket, *pipeSocket) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	return &pipeSocket{in: a, out: b}, &pipeSocket{in: b, out: a}
}

func (p *pipeSocket) ReadTimeout(ms int) ([]byte, error) {
	select {
	case b := <-p.in:
		return b, nil
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil, nil
	}
}

func (p *pipeSocket) Write(buf []byte) error {
	cp := append([]byte(nil), buf...)
	p.out <- cp
	return nil
}

func (p *pipeSocket) Ready() (bool, error) { return len(p.in) > 0, nil }

type alwaysBinary struct{}

func (alwaysBinary) BinaryModeActive() bool   { return true }
func (alwaysBinary) HasPendingBytes() bool    { return false }
func (alwaysBinary) TakePendingBytes() []byte { return nil }

func TestSendReceiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.txt")
	content := "line one\nline two\nthe rest of a short test file\n"
	if err := os.WriteFile(srcPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	dstPath := filepath.Join(dir, "dest.txt")

	senderSock, receiverSock := newPipePair()
	senderAdapter := kermit.NewAdapter(senderSock, alwaysBinary{})
	receiverAdapter := kermit.NewAdapter(receiverSock, alwaysBinary{})

	cfg := transfer.DefaultConfig()
	cfg.PacketTimeout = 2 * time.Second

	sendErrCh := make(chan error, 1)
	go func() {
		sendErrCh <- New().Transfer(transfer.Send, senderAdapter, srcPath, cfg)
	}()

	recvErr := New().Transfer(transfer.Receive, receiverAdapter, dstPath, cfg)
	if recvErr != nil {
		t.Fatalf("receive side failed: %v", recvErr)
	}
	if err := <-sendErrCh; err != nil {
		t.Fatalf("send side failed: %v", err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	if string(got) != content {
		t.Fatalf("received content mismatch: got %q, want %q", got, content)
	}
}

func TestReceiveRejectsWrongFirstPacketType(t *testing.T) {
	senderSock, receiverSock := newPipePair()
	receiverAdapter := kermit.NewAdapter(receiverSock, alwaysBinary{})

	cfg := transfer.DefaultConfig()
	cfg.PacketTimeout = 200 * time.Millisecond
	cfg.MaxTimeouts = 1

	// Write something that isn't a Send-Init as the very first packet.
	bogus := buildPacket(0, typeData, []byte("not a send-init"))
	senderSock.Write(bogus)

	err := New().Transfer(transfer.Receive, receiverAdapter, filepath.Join(t.TempDir(), "out.txt"), cfg)
	if err == nil {
		t.Fatalf("expected an error for an unexpected first packet type")
	}
}
