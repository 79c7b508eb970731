// Package terminal owns the raw-mode discipline §4.6 requires: a
// snapshot taken before the session loop starts, restored on every exit
// path including crash-safe restoration on fatal errors.
package terminal

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Raw holds the terminal's original attributes so they can be restored.
type Raw struct {
	fd    int
	state *term.State
}

// MakeRaw snapshots the current terminal attributes and applies the
// mode §4.6 specifies: input breaks, CR/LF translation, parity
// stripping, flow control, output post-processing, echo,
// canonicalisation, extended processing, and signal generation all
// disabled; 8-bit character size and IGNPAR enabled; VMIN=0, VTIME=0.
func MakeRaw(f *os.File) (*Raw, error) {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("terminal: make raw: %w", err)
	}
	if err := setNonBlockingRead(fd); err != nil {
		term.Restore(fd, state)
		return nil, fmt.Errorf("terminal: configure VMIN/VTIME: %w", err)
	}
	return &Raw{fd: fd, state: state}, nil
}

// setNonBlockingRead tunes VMIN/VTIME on top of x/term's raw mode:
// term.MakeRaw already leaves VMIN=1, VTIME=0 (block for at least one
// byte), but the session loop needs a non-blocking stdin so a single
// read never stalls the one-second readiness wait (§4.2 step 2). It
// also sets IGNPAR, which term.MakeRaw leaves alone.
func setNonBlockingRead(fd int) error {
	t, err := unix.IoctlGetTermios(fd, tcgets())
	if err != nil {
		return err
	}
	t.Iflag |= unix.IGNPAR
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, tcsets(), t)
}

// SetInteractiveTiming switches VTIME to 1 (a 100ms slice) for the
// duration of ordinary interactive I/O, as permitted by §4.6's
// "VTIME=0, or VTIME=1 during interactive operation".
func (r *Raw) SetInteractiveTiming() error {
	t, err := unix.IoctlGetTermios(r.fd, tcgets())
	if err != nil {
		return err
	}
	t.Cc[unix.VTIME] = 1
	return unix.IoctlSetTermios(r.fd, tcsets(), t)
}

// Restore reapplies the snapshotted attributes. Safe to call more than
// once; safe to call from a deferred crash-recovery path.
func (r *Raw) Restore() error {
	if r == nil {
		return nil
	}
	return term.Restore(r.fd, r.state)
}

// StdoutWindow reports the controlling terminal's size, satisfying the
// session loop's WindowSizer for the NAWS-on-resize step (§4.2 step 1).
type StdoutWindow struct {
	fd int
}

// NewStdoutWindow builds a StdoutWindow over f's descriptor.
func NewStdoutWindow(f *os.File) StdoutWindow {
	return StdoutWindow{fd: int(f.Fd())}
}

// Size returns the current column/row count.
func (w StdoutWindow) Size() (width, height uint16, err error) {
	cols, rows, err := term.GetSize(w.fd)
	if err != nil {
		return 0, 0, fmt.Errorf("terminal: get size: %w", err)
	}
	return uint16(cols), uint16(rows), nil
}
