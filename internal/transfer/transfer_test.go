package transfer

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/drake/otelnet/internal/detect"
	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/telnet"
)

// fakeSocket is a simple byte-queue stand-in for the TCP connection,
// shared by both the coordinator and its kermit adapter tests.
type fakeSocket struct {
	mu      sync.Mutex
	inbox   [][]byte
	written [][]byte
	closed  bool
}

func (f *fakeSocket) push(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, b)
}

func (f *fakeSocket) ReadTimeout(timeoutMillis int) ([]byte, error) {
	f.mu.Lock()
	if len(f.inbox) > 0 {
		b := f.inbox[0]
		f.inbox = f.inbox[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	time.Sleep(time.Duration(timeoutMillis) * time.Millisecond)
	return nil, nil
}

func (f *fakeSocket) Write(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeSocket) Ready() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inbox) > 0, nil
}

func newCoordinator(sock kermit.Socket) (*Coordinator, *telnet.Engine, *detect.State) {
	e := telnet.New()
	det := detect.New()
	cfg := DefaultConfig()
	cfg.DrainWindow = 50 * time.Millisecond
	cfg.KillGrace = 50 * time.Millisecond
	cfg.GlobalTimeout = time.Second
	cfg.HelperPath = func(p Protocol, dir Direction) (string, []string) {
		return "helper", []string{"-x"}
	}
	return New(e, sock, det, cfg), e, det
}

func TestDrainUntilBinarySettlesOnConfirmation(t *testing.T) {
	sock := &fakeSocket{}
	c, e, _ := newCoordinator(sock)

	// Peer confirms both directions of BINARY immediately.
	sock.push([]byte{telnet.IAC, telnet.DO, telnet.OptBinary, telnet.IAC, telnet.WILL, telnet.OptBinary})

	if err := c.drainUntilBinary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.BinaryMode() {
		t.Fatalf("expected binary mode settled")
	}
}

func TestDrainUntilBinaryPreservesPendingBytes(t *testing.T) {
	sock := &fakeSocket{}
	c, e, _ := newCoordinator(sock)

	// Confirmation arrives along with a stray data byte that is not part
	// of the negotiation sequence; it must survive into the pending
	// buffer rather than being dropped.
	msg := []byte{telnet.IAC, telnet.DO, telnet.OptBinary, telnet.IAC, telnet.WILL, telnet.OptBinary, 'X'}
	sock.push(msg)

	if err := c.drainUntilBinary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.HasPendingBytes() {
		t.Fatalf("expected pending bytes preserved")
	}
	if got := e.TakePendingBytes(); !bytes.Equal(got, []byte{'X'}) {
		t.Fatalf("expected pending 'X', got %v", got)
	}
}

// TestRequestBinaryModeRequiresPeerConfirmationBeforeDraining guards
// against RequestBinaryMode's own offer optimistically satisfying
// BinaryMode before the peer has replied at all: if it did,
// drainUntilBinary would return immediately without ever reading the
// socket, and any stray bytes arriving during the real negotiation
// round trip would be lost instead of captured into the pending buffer.
func TestRequestBinaryModeRequiresPeerConfirmationBeforeDraining(t *testing.T) {
	sock := &fakeSocket{}
	c, e, _ := newCoordinator(sock)

	for _, ev := range e.RequestBinaryMode() {
		if ev.Kind == telnet.EventSend {
			sock.Write(ev.Data)
		}
	}
	if e.BinaryMode() {
		t.Fatalf("expected BinaryMode false immediately after sending our own offer")
	}

	start := time.Now()
	if err := c.drainUntilBinary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < c.config.DrainWindow {
		t.Fatalf("expected drain to actually wait out the window, not return instantly")
	}
	if e.BinaryMode() {
		t.Fatalf("expected BinaryMode still false: the peer never confirmed")
	}
}

// TestRequestBinaryModeSettlesOnPeerConfirmation exercises the real
// production sequence (RequestBinaryMode then drainUntilBinary) rather
// than calling drainUntilBinary on a freshly constructed engine, and
// checks that a stray byte riding along with the peer's confirmation
// still reaches the pending handoff buffer.
func TestRequestBinaryModeSettlesOnPeerConfirmation(t *testing.T) {
	sock := &fakeSocket{}
	c, e, _ := newCoordinator(sock)

	for _, ev := range e.RequestBinaryMode() {
		if ev.Kind == telnet.EventSend {
			sock.Write(ev.Data)
		}
	}
	sock.push([]byte{telnet.IAC, telnet.DO, telnet.OptBinary, telnet.IAC, telnet.WILL, telnet.OptBinary, 'X'})

	if err := c.drainUntilBinary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.BinaryMode() {
		t.Fatalf("expected BinaryMode settled once the peer confirmed")
	}
	if got := e.TakePendingBytes(); !bytes.Equal(got, []byte{'X'}) {
		t.Fatalf("expected pending 'X', got %v", got)
	}
}

func TestDrainUntilBinaryTimesOut(t *testing.T) {
	sock := &fakeSocket{}
	c, _, _ := newCoordinator(sock)

	start := time.Now()
	if err := c.drainUntilBinary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < c.config.DrainWindow {
		t.Fatalf("expected to block roughly the drain window")
	}
}

// fakeChild is an in-memory Child satisfying the relay loop's contract
// without spawning a real process.
type fakeChild struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter

	waitCh   chan error
	signaled []syscall.Signal
	mu       sync.Mutex
}

func newFakeChild() *fakeChild {
	or, ow := io.Pipe()
	ir, iw := io.Pipe()
	return &fakeChild{stdoutR: or, stdoutW: ow, stdinR: ir, stdinW: iw, waitCh: make(chan error, 1)}
}

func (c *fakeChild) Stdin() io.WriteCloser { return c.stdinW }
func (c *fakeChild) Stdout() io.Reader     { return c.stdoutR }
func (c *fakeChild) Pid() int              { return 1234 }

func (c *fakeChild) Signal(sig syscall.Signal) error {
	c.mu.Lock()
	c.signaled = append(c.signaled, sig)
	c.mu.Unlock()
	if sig == syscall.SIGKILL {
		select {
		case c.waitCh <- errors.New("killed"):
		default:
		}
	}
	return nil
}

func (c *fakeChild) Wait() error { return <-c.waitCh }

type fakeLauncher struct{ child *fakeChild }

func (l fakeLauncher) Start(path string, args []string) (Child, error) { return l.child, nil }

func TestRelaySuccessfulExit(t *testing.T) {
	sock := &fakeSocket{}
	c, _, _ := newCoordinator(sock)
	child := newFakeChild()

	go func() {
		buf := make([]byte, 16)
		n, _ := child.stdinR.Read(buf)
		if n > 0 {
			child.waitCh <- nil
		}
	}()

	go func() {
		sock.push([]byte("hello"))
	}()

	result := c.relay(child)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRelayChildOutputEscapedToSocket(t *testing.T) {
	sock := &fakeSocket{}
	c, _, _ := newCoordinator(sock)
	child := newFakeChild()

	go func() {
		child.stdoutW.Write([]byte{0x01, 0xFF, 0x02})
		time.Sleep(10 * time.Millisecond)
		child.waitCh <- nil
	}()

	result := c.relay(child)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
	sock.mu.Lock()
	defer sock.mu.Unlock()
	var all []byte
	for _, w := range sock.written {
		all = append(all, w...)
	}
	if !bytes.Contains(all, []byte{0x01, 0xFF, 0xFF, 0x02}) {
		t.Fatalf("expected IAC-escaped child output written to socket, got %v", all)
	}
}

func TestKillChildEscalatesToSigkillAfterGrace(t *testing.T) {
	sock := &fakeSocket{}
	c, _, _ := newCoordinator(sock)
	c.config.KillGrace = 10 * time.Millisecond
	child := newFakeChild()

	c.killChild(child)

	child.mu.Lock()
	defer child.mu.Unlock()
	if len(child.signaled) != 2 || child.signaled[0] != syscall.SIGTERM || child.signaled[1] != syscall.SIGKILL {
		t.Fatalf("expected SIGTERM then SIGKILL, got %v", child.signaled)
	}
}

func TestArmSelectsChildHelperPathForXModem(t *testing.T) {
	sock := &fakeSocket{}
	c, _, _ := newCoordinator(sock)
	sock.push([]byte{telnet.IAC, telnet.DO, telnet.OptBinary, telnet.IAC, telnet.WILL, telnet.OptBinary})

	child := newFakeChild()
	go func() {
		child.waitCh <- nil
	}()

	result := c.Arm(detect.Signal{Protocol: detect.XMODEM, ReceiveInit: true}, "incoming.bin", nil, fakeLauncher{child: child})
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
}
