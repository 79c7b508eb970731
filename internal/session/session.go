// Package session implements the cooperative event loop that
// multiplexes keyboard input, the TCP socket, and window-change
// notifications (§4.2 of the design this client follows). It is
// grounded on the teacher's pattern of a single goroutine that owns
// all session state and is fed by channels from otherwise-dumb reader
// goroutines: the same shape as feeding network/UI events into one
// consuming loop, except here the reader goroutines only ever push
// raw bytes, never touch session state, so the loop goroutine remains
// the sole mutator throughout a connection's lifetime.
package session

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/drake/otelnet/internal/detect"
	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/logging"
	"github.com/drake/otelnet/internal/telnet"
	"github.com/drake/otelnet/internal/transfer"
	"github.com/drake/otelnet/internal/transport"
)

// escapeByte is the console-mode trigger: Ctrl-] (0x1D), the
// conventional Telnet client escape character. Not set by the
// negotiated options in any way; a fixed client-side constant.
const escapeByte = 0x1D

// Socket is the transport the loop drives: a kermit.Socket plus the
// ability to close it on disconnect.
type Socket interface {
	kermit.Socket
	Close() error
}

// WindowSizer reports the current terminal dimensions, queried once a
// tick and again on SIGWINCH.
type WindowSizer interface {
	Size() (width, height uint16, err error)
}

// statsReporter is satisfied by *transport.Conn without the Socket
// interface needing to carry it: a console "stats" command or fake
// test socket neither gains nor needs the method, but production code
// picks it up via a type assertion when the real connection is in use.
type statsReporter interface {
	Stats() transport.Stats
}

// connStats reports the underlying connection's byte counters when the
// configured Socket exposes them.
func (l *Loop) connStats() (transport.Stats, bool) {
	sr, ok := l.Socket.(statsReporter)
	if !ok {
		return transport.Stats{}, false
	}
	return sr.Stats(), true
}

// Loop is the session's single owning goroutine: every field below is
// touched only from Run and the methods it calls directly.
type Loop struct {
	Telnet *telnet.Engine
	Socket Socket
	Detect *detect.State
	Coord  *transfer.Coordinator
	Window WindowSizer
	Out    io.Writer
	Log    *logging.SessionLog // nil disables transcript logging

	KermitEngine   transfer.KermitEngine
	HelperLauncher transfer.HelperLauncher

	cancel atomic.Bool

	console     console
	consoleMode bool

	// lineBuf mirrors what local echo has put on screen for the
	// in-progress input line while in line mode (§4.2 step 3), so
	// server output arriving mid-line can erase it, write through, and
	// redraw it rather than interleaving with the user's keystrokes.
	lineBuf []byte
}

// Cancel requests a clean exit, taken at the loop's next iteration.
// cmd/otelnet does not call it: SIGINT/SIGTERM end Run through its
// context instead.
func (l *Loop) Cancel() { l.cancel.Store(true) }

func (l *Loop) cancelled() bool { return l.cancel.Load() }

// Run drives the loop until cancellation, TCP disconnect, or a
// console "quit" command. A returned error is a fatal transport
// failure; ordinary cancellation returns nil.
func (l *Loop) Run(ctx context.Context, stdin io.Reader, sigwin <-chan struct{}) error {
	l.console.out = l.Out

	stdinCh := make(chan []byte, 16)
	go pumpStdin(ctx, stdin, stdinCh)

	if width, height, err := l.Window.Size(); err == nil {
		l.applyResize(width, height)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.cancelled() {
			l.printStats()
			return nil
		}

		select {
		case <-ctx.Done():
			l.printStats()
			return nil

		case <-sigwin:
			if w, h, err := l.Window.Size(); err == nil {
				l.applyResize(w, h)
			}

		case data, ok := <-stdinCh:
			if !ok {
				l.printStats()
				return nil
			}
			if err := l.handleStdin(data); err != nil {
				l.printStats()
				return err
			}

		case <-ticker.C:
			if err := l.pollSocket(); err != nil {
				l.printStats()
				return err
			}
		}
	}
}

// printStats writes the session-end connection summary, when the
// configured Socket exposes counters to report.
func (l *Loop) printStats() {
	st, ok := l.connStats()
	if !ok {
		return
	}
	fmt.Fprintf(l.Out, "\r\n[%d bytes read, %d bytes written]\r\n", st.BytesRead, st.BytesWritten)
}

// writeSocket writes data to the peer and, when transcript logging is
// enabled, records it as an outbound block (§7: the transcript covers
// both directions of traffic, not just what arrives from the peer).
func (l *Loop) writeSocket(data []byte) error {
	if err := l.Socket.Write(data); err != nil {
		return err
	}
	if l.Log != nil {
		l.Log.Sent(data)
	}
	return nil
}

// applyResize implements the NAWS-on-size-change step of the loop.
func (l *Loop) applyResize(width, height uint16) {
	for _, ev := range l.Telnet.SetWindowSize(width, height) {
		if ev.Kind == telnet.EventSend {
			l.writeSocket(ev.Data)
		}
	}
}

// handleStdin implements the keyboard-ready branch: console-mode
// entry on the escape byte, otherwise IAC-escaping and forwarding to
// the peer with local echo when the remote side isn't already
// echoing.
func (l *Loop) handleStdin(data []byte) error {
	for _, b := range data {
		if !l.consoleMode && b == escapeByte {
			l.consoleMode = true
			l.lineBuf = l.lineBuf[:0]
			l.console.enter()
			continue
		}
		if l.consoleMode {
			if done, cmd := l.console.feed(b); done {
				if cmd == "" {
					l.consoleMode = false
					continue
				}
				l.consoleMode = false
				if quit := l.runConsoleCommand(cmd); quit {
					l.cancel.Store(true)
					return nil
				}
			}
			continue
		}
		l.forwardByte(b)
	}
	return nil
}

// forwardByte sends one keyboard byte to the peer, escaping a literal
// IAC and performing local echo when the remote end isn't echoing.
func (l *Loop) forwardByte(b byte) {
	out := []byte{b}
	if b == telnet.IAC {
		out = append(out, telnet.IAC)
	}
	if err := l.writeSocket(out); err != nil {
		return
	}
	if l.Telnet.Linemode() {
		l.localEcho(b)
	}
}

// localEcho implements the line-mode echo rule: printable bytes and
// CR render literally (CR becomes CRLF on screen), backspace erases
// the last character (two columns for an East Asian wide or fullwidth
// one). It also keeps lineBuf in step with what is on screen, so
// pollSocket can clear and redraw it around server output.
func (l *Loop) localEcho(b byte) {
	switch {
	case b == '\r':
		l.Out.Write([]byte("\r\n"))
		l.lineBuf = l.lineBuf[:0]
	case b == 0x7F || b == 0x08:
		if len(l.lineBuf) == 0 {
			return
		}
		r, size := utf8.DecodeLastRune(l.lineBuf)
		l.lineBuf = l.lineBuf[:len(l.lineBuf)-size]
		for i := 0; i < runeWidth(r); i++ {
			l.Out.Write([]byte("\b \b"))
		}
	default:
		l.Out.Write([]byte{b})
		l.lineBuf = append(l.lineBuf, b)
	}
}

// clearInputLine erases the on-screen representation of lineBuf,
// column by column, so server output can be written onto a clean line.
func (l *Loop) clearInputLine() {
	for i := 0; i < len(l.lineBuf); {
		r, size := utf8.DecodeRune(l.lineBuf[i:])
		for j := 0; j < runeWidth(r); j++ {
			l.Out.Write([]byte("\b \b"))
		}
		i += size
	}
}

// redrawInputLine re-echoes lineBuf after server output has been
// written, restoring what the user had typed so far.
func (l *Loop) redrawInputLine() {
	l.Out.Write(l.lineBuf)
}

// pollSocket reads whatever is available from the TCP connection and
// processes it: Telnet decode, detector feed, screen write.
func (l *Loop) pollSocket() error {
	raw, err := l.Socket.ReadTimeout(50)
	if err != nil {
		return fmt.Errorf("session: tcp read: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if l.Log != nil {
		l.Log.Received(raw)
	}

	events := l.Telnet.Feed(raw)
	var decoded []byte
	for _, ev := range events {
		switch ev.Kind {
		case telnet.EventSend:
			if err := l.writeSocket(ev.Data); err != nil {
				return fmt.Errorf("session: tcp write: %w", err)
			}
		case telnet.EventData:
			decoded = append(decoded, ev.Data...)
		}
	}
	if len(decoded) == 0 {
		return nil
	}

	if !l.Telnet.Linemode() {
		l.lineBuf = l.lineBuf[:0]
	}
	redraw := l.Telnet.Linemode() && len(l.lineBuf) > 0
	if redraw {
		l.clearInputLine()
	}

	if l.Detect != nil {
		if sig := l.Detect.Feed(decoded); sig != nil {
			l.handleDetectorFire(*sig)
			if redraw {
				l.redrawInputLine()
			}
			return nil
		}
	}

	l.writeToScreen(decoded)
	if redraw {
		l.redrawInputLine()
	}
	return nil
}

// writeToScreen applies the line-mode LF/CR rule: LF becomes CRLF and
// a bare CR (not already followed by LF) becomes CRLF too; character
// mode passes bytes through unchanged.
func (l *Loop) writeToScreen(data []byte) {
	if !l.Telnet.Linemode() {
		l.Out.Write(data)
		return
	}
	out := make([]byte, 0, len(data)+len(data)/8)
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == '\n':
			out = append(out, '\r', '\n')
		case b == '\r' && (i+1 >= len(data) || data[i+1] != '\n'):
			out = append(out, '\r', '\n')
		case b == '\r':
			// Already-paired CRLF; the '\n' branch supplies both bytes.
		default:
			out = append(out, b)
		}
	}
	l.Out.Write(out)
}

// handleDetectorFire arms the transfer a detector just recognized,
// running the coordinator synchronously: the loop's socket polling is
// naturally suspended for the duration since Arm itself owns the
// socket until the transfer finishes.
func (l *Loop) handleDetectorFire(sig detect.Signal) {
	path := fmt.Sprintf("incoming.%s", sig.Protocol.String())
	result := l.Coord.Arm(sig, path, l.KermitEngine, l.HelperLauncher)
	l.Detect.Reset()
	if result.Err != nil {
		fmt.Fprintf(l.Out, "\r\n[transfer failed: %v]\r\n", result.Err)
	}
}

func pumpStdin(ctx context.Context, r io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case out <- cp:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}
