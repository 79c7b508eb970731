package detect

import "time"

// YModem recognizes YMODEM session-initiation signatures. Shaped exactly
// like XModem except the sparse poll trigger is C (0x43) alone — a YMODEM
// receiver never falls back to NAK polling (§4.5).
type YModem struct {
	text    *slidingWindow
	trigger *sparseTrigger
	enabled bool
}

// NewYModem creates an enabled YMODEM detector.
func NewYModem() *YModem {
	return &YModem{
		text:    newSlidingWindow(64),
		trigger: newSparseTrigger(map[byte]bool{0x43: true}, 3*time.Second, 3),
		enabled: true,
	}
}

func (y *YModem) Enable()       { y.enabled = true }
func (y *YModem) Disable()      { y.enabled = false; y.Reset() }
func (y *YModem) Enabled() bool { return y.enabled }

func (y *YModem) Reset() {
	y.text.reset()
	y.trigger.reset()
}

// Feed scans decoded bytes for the "YMODEM receive"/"YMODEM send" banner
// or a run of bare C polling bytes.
func (y *YModem) Feed(data []byte) Outcome {
	if !y.enabled {
		return Outcome{}
	}
	y.text.append(data)

	if y.text.containsFold("YMODEM RECEIVE") {
		y.text.reset()
		return Outcome{ReceiveInit: true}
	}
	if y.text.containsFold("YMODEM SEND") {
		y.text.reset()
		return Outcome{SendInit: true}
	}

	for _, b := range data {
		if y.trigger.feed(b) {
			return Outcome{SendInit: true}
		}
	}
	return Outcome{}
}
