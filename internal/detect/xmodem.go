package detect

import "time"

// XModem recognizes XMODEM session-initiation signatures: the literal
// banner text a shell prints before running sx/rx, and the sparse
// NAK/C polling a receiver emits once it is waiting (§4.5).
type XModem struct {
	text    *slidingWindow
	trigger *sparseTrigger
	enabled bool
}

// NewXModem creates an enabled XMODEM detector.
func NewXModem() *XModem {
	return &XModem{
		text:    newSlidingWindow(64),
		trigger: newSparseTrigger(map[byte]bool{0x15: true, 0x43: true}, 3*time.Second, 3),
		enabled: true,
	}
}

func (x *XModem) Enable()       { x.enabled = true }
func (x *XModem) Disable()      { x.enabled = false; x.Reset() }
func (x *XModem) Enabled() bool { return x.enabled }

func (x *XModem) Reset() {
	x.text.reset()
	x.trigger.reset()
}

// Feed scans decoded bytes for the "XMODEM receive"/"XMODEM send" banner
// or a run of bare NAK/C polling bytes.
func (x *XModem) Feed(data []byte) Outcome {
	if !x.enabled {
		return Outcome{}
	}
	x.text.append(data)

	if x.text.containsFold("XMODEM RECEIVE") {
		x.text.reset()
		return Outcome{ReceiveInit: true}
	}
	if x.text.containsFold("XMODEM SEND") {
		x.text.reset()
		return Outcome{SendInit: true}
	}

	for _, b := range data {
		if x.trigger.feed(b) {
			return Outcome{SendInit: true}
		}
	}
	return Outcome{}
}
