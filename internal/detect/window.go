// Package detect implements the protocol auto-detector: pattern matchers
// that watch the decoded (post-Telnet) server-to-client byte stream for
// protocol-initiation signatures and hand control to the transfer
// coordinator without operator action (§4.5).
package detect

import (
	"bytes"
	"time"
)

// Outcome reports what a detector saw in the bytes just fed to it.
type Outcome struct {
	ReceiveInit bool // the peer is sending; we must receive
	SendInit    bool // the peer is receiving; we must send
}

func (o Outcome) fired() bool { return o.ReceiveInit || o.SendInit }

// slidingWindow is a small bounded byte buffer used for literal and
// case-insensitive substring matching against recent decoded output.
type slidingWindow struct {
	buf []byte
	cap int
}

func newSlidingWindow(capacity int) *slidingWindow {
	return &slidingWindow{cap: capacity}
}

func (w *slidingWindow) append(data []byte) {
	w.buf = append(w.buf, data...)
	if len(w.buf) > w.cap {
		w.buf = w.buf[len(w.buf)-w.cap:]
	}
}

func (w *slidingWindow) reset() { w.buf = w.buf[:0] }

func (w *slidingWindow) containsFold(needle string) bool {
	return bytes.Contains(bytes.ToUpper(w.buf), []byte(needle))
}

func (w *slidingWindow) contains(needle []byte) bool {
	return bytes.Contains(w.buf, needle)
}

// sparseTrigger recognizes a byte from triggerBytes repeated at least
// triggerCount times within window, with no intervening printable
// non-trigger byte (§4.5).
type sparseTrigger struct {
	triggerBytes map[byte]bool
	count        int
	firstSeen    time.Time
	window       time.Duration
	threshold    int
	now          func() time.Time
}

func newSparseTrigger(bytesSet map[byte]bool, window time.Duration, threshold int) *sparseTrigger {
	return &sparseTrigger{
		triggerBytes: bytesSet,
		window:       window,
		threshold:    threshold,
		now:          time.Now,
	}
}

func (s *sparseTrigger) reset() {
	s.count = 0
	s.firstSeen = time.Time{}
}

// feed processes one decoded byte and reports whether the threshold has
// just been reached.
func (s *sparseTrigger) feed(b byte) bool {
	if s.triggerBytes[b] {
		now := s.now()
		if s.count == 0 || now.Sub(s.firstSeen) > s.window {
			s.firstSeen = now
			s.count = 0
		}
		s.count++
		if s.count >= s.threshold {
			s.reset()
			return true
		}
		return false
	}
	if isPrintable(b) {
		s.reset()
	}
	return false
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b < 0x7F
}
