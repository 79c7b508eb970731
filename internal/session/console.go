package session

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/drake/otelnet/internal/detect"
)

// console accumulates a single line of console-mode input with local
// echo, independent of the Telnet engine's line-mode state: console
// mode is always locally edited since it never leaves the client.
type console struct {
	out io.Writer
	buf []byte
}

func (c *console) enter() {
	c.buf = c.buf[:0]
	io.WriteString(c.out, "\r\n> ")
}

// feed appends one byte to the line buffer, echoing it, and reports
// (true, line) once Enter completes the line. Backspace erases the
// last character (two columns for a wide one); Ctrl-C aborts back to
// an empty command.
func (c *console) feed(b byte) (done bool, line string) {
	switch b {
	case '\r', '\n':
		io.WriteString(c.out, "\r\n")
		return true, strings.TrimSpace(string(c.buf))
	case 0x7F, 0x08:
		if len(c.buf) == 0 {
			return false, ""
		}
		r, size := utf8.DecodeLastRune(c.buf)
		c.buf = c.buf[:len(c.buf)-size]
		for i := 0; i < runeWidth(r); i++ {
			io.WriteString(c.out, "\b \b")
		}
		return false, ""
	case 0x03:
		c.buf = c.buf[:0]
		io.WriteString(c.out, "^C\r\n")
		return true, ""
	default:
		c.buf = append(c.buf, b)
		c.out.Write([]byte{b})
		return false, ""
	}
}

// runConsoleCommand dispatches one completed console line. Returns
// true only for "quit", telling Run to end the session. Commands
// outside the core set (quit/skermit/rkermit/sz/rz/sx/rx/sy/ry/stats)
// are reported as unknown rather than silently ignored.
func (l *Loop) runConsoleCommand(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit":
		return true

	case "skermit":
		if len(args) != 1 {
			fmt.Fprintf(l.Out, "usage: skermit <file>\r\n")
			return false
		}
		l.runTransfer(kermitSignal(true), args[0])

	case "rkermit":
		l.runTransfer(kermitSignal(false), "")

	case "sz":
		if len(args) != 1 {
			fmt.Fprintf(l.Out, "usage: sz <file>\r\n")
			return false
		}
		l.runTransfer(helperSignal(detect.ZMODEM, true), args[0])

	case "rz":
		l.runTransfer(helperSignal(detect.ZMODEM, false), "")

	case "sx":
		if len(args) != 1 {
			fmt.Fprintf(l.Out, "usage: sx <file>\r\n")
			return false
		}
		l.runTransfer(helperSignal(detect.XMODEM, true), args[0])

	case "rx":
		l.runTransfer(helperSignal(detect.XMODEM, false), "")

	case "sy":
		if len(args) != 1 {
			fmt.Fprintf(l.Out, "usage: sy <file>\r\n")
			return false
		}
		l.runTransfer(helperSignal(detect.YMODEM, true), args[0])

	case "ry":
		l.runTransfer(helperSignal(detect.YMODEM, false), "")

	case "stats":
		l.printConsoleStats()

	default:
		fmt.Fprintf(l.Out, "unknown command: %s\r\n", cmd)
	}
	return false
}

// runeWidth reports how many terminal columns r occupies, so the
// console-mode backspace erases the right number of columns for
// East Asian wide and fullwidth characters instead of always one.
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// printConsoleStats answers the console "stats" command with the
// connection's byte counters, when the configured Socket exposes them.
func (l *Loop) printConsoleStats() {
	st, ok := l.connStats()
	if !ok {
		fmt.Fprintf(l.Out, "stats unavailable\r\n")
		return
	}
	fmt.Fprintf(l.Out, "bytes read: %d, bytes written: %d, last read: %s\r\n",
		st.BytesRead, st.BytesWritten, st.LastReadTime.Format("15:04:05"))
}

func kermitSignal(send bool) detect.Signal {
	return detect.Signal{Protocol: detect.Kermit, SendInit: send, ReceiveInit: !send}
}

func helperSignal(p detect.Protocol, send bool) detect.Signal {
	return detect.Signal{Protocol: p, SendInit: send, ReceiveInit: !send}
}

// runTransfer arms a transfer the user requested explicitly from the
// console, rather than one a detector recognized in the data stream;
// localPath is empty for a receive, where the Kermit engine or helper
// supplies the name from the wire instead.
func (l *Loop) runTransfer(sig detect.Signal, localPath string) {
	if l.Detect != nil {
		l.Detect.DisableAll()
		defer l.Detect.EnableAll()
	}
	result := l.Coord.Arm(sig, localPath, l.KermitEngine, l.HelperLauncher)
	if result.Err != nil {
		fmt.Fprintf(l.Out, "[transfer failed: %v]\r\n", result.Err)
	} else {
		fmt.Fprintf(l.Out, "[transfer complete: %d bytes in, %d bytes out]\r\n", result.BytesIn, result.BytesOut)
	}
}
