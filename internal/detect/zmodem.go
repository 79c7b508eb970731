package detect

// ZMODEM frame-header prefixes (§4.5), grounded on the hex-header
// detection constants used by the pack's own ZMODEM implementations
// (e.g. the "**\x18B00"-style ZRQINIT prefix).
var (
	zrqinit = []byte{0x2A, 0x2A, 0x18, 0x42, 0x30, 0x30}
	zrinit  = []byte{0x2A, 0x2A, 0x18, 0x42, 0x30, 0x31}
	zfile   = []byte{0x2A, 0x2A, 0x18, 0x42, 0x30, 0x38}
)

// ZModem recognizes ZMODEM session-initiation signatures.
type ZModem struct {
	window  *slidingWindow
	enabled bool
}

// NewZModem creates an enabled ZMODEM detector.
func NewZModem() *ZModem {
	return &ZModem{window: newSlidingWindow(64), enabled: true}
}

func (z *ZModem) Enable()       { z.enabled = true }
func (z *ZModem) Disable()      { z.enabled = false; z.window.reset() }
func (z *ZModem) Enabled() bool { return z.enabled }
func (z *ZModem) Reset()        { z.window.reset() }

// Feed scans decoded bytes for ZRQINIT/ZRINIT/ZFILE headers or a legacy
// "rz" sender announcement. Any of these means the peer wants to send us
// a file.
func (z *ZModem) Feed(data []byte) Outcome {
	if !z.enabled {
		return Outcome{}
	}
	z.window.append(data)

	if z.window.contains(zrqinit) || z.window.contains(zrinit) || z.window.contains(zfile) ||
		z.window.contains([]byte("rz\r")) {
		z.window.reset()
		return Outcome{ReceiveInit: true}
	}
	return Outcome{}
}
