package detect

import (
	"testing"
	"time"
)

// §8 concrete scenario: ZRQINIT arriving embedded in a larger text window
// fires the ZMODEM detector with ReceiveInit set.
func TestZModemAutoArm(t *testing.T) {
	d := New()
	chunk := append([]byte("Preparing transfer...\r\n"), 0x2A, 0x2A, 0x18, 0x42, 0x30, 0x30)
	chunk = append(chunk, []byte("\r\nready\r\n")...)

	sig := d.Feed(chunk)
	if sig == nil || sig.Protocol != ZMODEM || !sig.ReceiveInit || sig.SendInit {
		t.Fatalf("expected ZMODEM receive-init signal, got %v", sig)
	}
}

func TestZModemRzBanner(t *testing.T) {
	d := New()
	if sig := d.Feed([]byte("please run rz\r\n")); sig == nil || sig.Protocol != ZMODEM || !sig.ReceiveInit {
		t.Fatalf("expected ZMODEM receive-init from rz banner, got %v", sig)
	}
}

func TestXModemTextBanners(t *testing.T) {
	d := New()
	if sig := d.Feed([]byte("Ready for XMODEM receive now")); sig == nil || sig.Protocol != XMODEM || !sig.ReceiveInit {
		t.Fatalf("expected XMODEM receive-init, got %v", sig)
	}
	d = New()
	if sig := d.Feed([]byte("start XMODEM send please")); sig == nil || sig.Protocol != XMODEM || !sig.SendInit {
		t.Fatalf("expected XMODEM send-init, got %v", sig)
	}
}

func TestYModemTextBanners(t *testing.T) {
	d := New()
	if sig := d.Feed([]byte("YMODEM RECEIVE in progress")); sig == nil || sig.Protocol != YMODEM || !sig.ReceiveInit {
		t.Fatalf("expected YMODEM receive-init (case-insensitive), got %v", sig)
	}
}

// XMODEM's sparse NAK/C trigger: three trigger bytes within the window
// with no intervening printable byte fires send-init.
func TestXModemSparseTrigger(t *testing.T) {
	d := New()
	var sig *Signal
	for _, b := range []byte{0x15, 0x15, 0x15} {
		if s := d.Feed([]byte{b}); s != nil {
			sig = s
		}
	}
	if sig == nil || sig.Protocol != XMODEM || !sig.SendInit {
		t.Fatalf("expected XMODEM send-init from NAK run, got %v", sig)
	}
}

// A printable non-trigger byte in between resets the sparse counter.
func TestXModemSparseTriggerResetByPrintable(t *testing.T) {
	d := New()
	var sig *Signal
	seq := []byte{0x15, 0x15, 'a', 0x15, 0x15}
	for _, b := range seq {
		if s := d.Feed([]byte{b}); s != nil {
			sig = s
		}
	}
	if sig != nil {
		t.Fatalf("expected no fire, intervening printable byte should reset counter, got %v", sig)
	}
}

// YMODEM's trigger is C only: NAK bytes alone never fire it.
func TestYModemIgnoresNAK(t *testing.T) {
	y := NewYModem()
	for i := 0; i < 5; i++ {
		if out := y.Feed([]byte{0x15}); out.fired() {
			t.Fatalf("YMODEM must not fire on NAK alone")
		}
	}
	out := y.Feed([]byte{0x43, 0x43, 0x43})
	if !out.SendInit {
		t.Fatalf("expected YMODEM send-init from C run")
	}
}

// Invariant 8: feeding the same frame prefix twice after a fire/disable/
// enable cycle triggers exactly once per cycle.
func TestDetectorIdempotenceAcrossCycle(t *testing.T) {
	d := New()
	header := []byte{0x2A, 0x2A, 0x18, 0x42, 0x30, 0x30}

	sig := d.Feed(header)
	if sig == nil || sig.Protocol != ZMODEM {
		t.Fatalf("expected first feed to fire, got %v", sig)
	}

	// Coordinator disables the detector for the transfer's duration.
	d.Disable(ZMODEM)
	if sig := d.Feed(header); sig != nil {
		t.Fatalf("expected disabled detector to never fire, got %v", sig)
	}

	d.Enable(ZMODEM)
	d.Reset()
	sig = d.Feed(header)
	if sig == nil || sig.Protocol != ZMODEM {
		t.Fatalf("expected detector to fire again after enable/reset cycle, got %v", sig)
	}
}

// A trigger whose window has already elapsed restarts the count from the
// byte that arrives after expiry rather than accumulating across it.
func TestSparseTriggerWindowExpiry(t *testing.T) {
	tr := newSparseTrigger(map[byte]bool{0x43: true}, time.Millisecond, 3)
	cur := time.Unix(0, 0)
	tr.now = func() time.Time { return cur }

	if tr.feed(0x43) {
		t.Fatalf("unexpected fire on first byte")
	}
	cur = cur.Add(time.Hour) // well past the window
	if tr.feed(0x43) {
		t.Fatalf("unexpected fire: window should have reset the count to 1")
	}
	if tr.feed(0x43) {
		t.Fatalf("unexpected fire: count should only be 2 within the fresh window")
	}
	if !tr.feed(0x43) {
		t.Fatalf("expected fire on the third byte within the fresh window")
	}
}
