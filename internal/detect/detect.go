package detect

// Protocol names one of the recognized file-transfer protocols.
type Protocol int

const (
	ZMODEM Protocol = iota
	XMODEM
	YMODEM
	Kermit
)

func (p Protocol) String() string {
	switch p {
	case ZMODEM:
		return "zmodem"
	case XMODEM:
		return "xmodem"
	case YMODEM:
		return "ymodem"
	case Kermit:
		return "kermit"
	default:
		return "unknown"
	}
}

// Signal reports that a detector fired: which protocol, and which
// direction the coordinator must arm.
type Signal struct {
	Protocol    Protocol
	ReceiveInit bool
	SendInit    bool
}

// State runs every protocol detector over the same decoded byte stream
// and reports the first one to fire. Kermit autodownload is not handled
// here: Kermit's own packet framing (§4.4) is self-announcing at the
// transfer layer, not sniffed out of ordinary terminal output.
type State struct {
	zmodem *ZModem
	xmodem *XModem
	ymodem *YModem
}

// New creates a detector with all protocols enabled.
func New() *State {
	return &State{
		zmodem: NewZModem(),
		xmodem: NewXModem(),
		ymodem: NewYModem(),
	}
}

// Feed runs decoded bytes through every enabled detector in a fixed
// order (ZMODEM, XMODEM, YMODEM) and returns the first signal, if any.
// Order matters only in the pathological case where two detectors would
// fire on the exact same byte; ZMODEM's six-byte headers are the most
// specific so it is checked first.
func (s *State) Feed(data []byte) *Signal {
	if out := s.zmodem.Feed(data); out.fired() {
		return &Signal{Protocol: ZMODEM, ReceiveInit: out.ReceiveInit, SendInit: out.SendInit}
	}
	if out := s.xmodem.Feed(data); out.fired() {
		return &Signal{Protocol: XMODEM, ReceiveInit: out.ReceiveInit, SendInit: out.SendInit}
	}
	if out := s.ymodem.Feed(data); out.fired() {
		return &Signal{Protocol: YMODEM, ReceiveInit: out.ReceiveInit, SendInit: out.SendInit}
	}
	return nil
}

// Disable turns off one protocol's detector, per the coordinator's
// "disabled for the duration" rule while a transfer of that protocol is
// in flight.
func (s *State) Disable(p Protocol) {
	switch p {
	case ZMODEM:
		s.zmodem.Disable()
	case XMODEM:
		s.xmodem.Disable()
	case YMODEM:
		s.ymodem.Disable()
	}
}

// Enable re-arms one protocol's detector and clears its state.
func (s *State) Enable(p Protocol) {
	switch p {
	case ZMODEM:
		s.zmodem.Enable()
	case XMODEM:
		s.xmodem.Enable()
	case YMODEM:
		s.ymodem.Enable()
	}
}

// Reset clears every detector's accumulated state without changing
// enablement, used after any transfer completes or aborts.
func (s *State) Reset() {
	s.zmodem.Reset()
	s.xmodem.Reset()
	s.ymodem.Reset()
}

// DisableAll turns off every detector, per the coordinator's step
// "disable all auto-detectors" on entering a transfer (§4.3).
func (s *State) DisableAll() {
	s.zmodem.Disable()
	s.xmodem.Disable()
	s.ymodem.Disable()
}

// EnableAll re-arms every detector with cleared state on transfer exit.
func (s *State) EnableAll() {
	s.zmodem.Enable()
	s.xmodem.Enable()
	s.ymodem.Enable()
}
