package telnet

// parseState is the discriminated state of the byte-at-a-time parser
// (§4.1). It is a sum type in spirit: the SB/SB_IAC states carry their
// accumulator in Engine.sbBuf rather than smuggling progress through
// booleans.
type parseState int

const (
	stateData parseState = iota
	stateIAC
	stateWill
	stateWont
	stateDo
	stateDont
	stateSB
	stateSBIAC
	stateSeenCR
)

// EventKind distinguishes decoded application bytes from bytes the engine
// itself must write back to the peer (negotiation replies, subnegotiation
// responses, AYT answers).
type EventKind int

const (
	// EventData carries application bytes decoded out of the IAC stream,
	// ready for display or for the detectors.
	EventData EventKind = iota
	// EventSend carries bytes the engine has produced that the caller must
	// write to the transport, already IAC-escaped where required.
	EventSend
)

// Event is one unit of Feed's output.
type Event struct {
	Kind EventKind
	Data []byte
}

// optionFlags is the per-option negotiated state. Note this is distinct
// from the locallySupported/remotelyAcceptable predicates: those never
// change, this does.
//
// localEnabled/remoteEnabled are true only once the peer has actually
// confirmed the option; localPending/remotePending track an offer this
// engine has sent (WillOption/DoOption) that is still awaiting that
// confirmation. Keeping the two pairs distinct is what lets BinaryMode
// (and every other derived flag) stay false for the real duration of a
// drain window instead of latching true the instant we send our own
// offer.
//
// localRefused/remoteRefused record that an unsupported DO (or an
// unacceptable WILL) has already been answered with WONT (or DONT), so a
// repeat of the same request draws no second reply.
type optionFlags struct {
	localEnabled  bool
	remoteEnabled bool
	localPending  bool
	remotePending bool
	localRefused  bool
	remoteRefused bool
}

// Engine is the Telnet protocol state machine owned by a single session.
// It is not safe for concurrent use; the session loop and, during a
// transfer, the Kermit adapter's escape/unescape helpers are the only
// callers, and the spec guarantees they never run concurrently.
type Engine struct {
	state    parseState
	sbBuf    []byte
	sbOverflowed bool

	options [256]optionFlags

	// Derived convenience flags, recomputed after every negotiation settles.
	BinaryLocal    bool
	BinaryRemote   bool
	EchoRemote     bool
	SGALocal       bool
	SGARemote      bool
	LinemodeActive bool
	LinemodeEdit   bool

	linemodeBits byte

	termTypes []string
	termIdx   int

	width, height uint16
	speed         string

	// environGet resolves an ENVIRON variable name to its value the way
	// the process environment would (overridable in tests).
	environGet func(name string) (string, bool)

	// pending is the narrow handoff slot described in §3/§9: bytes decoded
	// during the binary-mode drain window that the Kermit adapter must
	// consume on its first packet read.
	pending []byte
}

// New creates an Engine with the default terminal-type cycle and speed.
func New() *Engine {
	e := &Engine{
		state:      stateData,
		termTypes:  []string{"XTERM", "VT100", "ANSI"},
		width:      80,
		height:     24,
		speed:      "38400,38400",
		environGet: defaultEnvironGet,
	}
	return e
}

// Linemode reports whether the client should be performing local echo and
// editing: true unless the peer and we have settled into character mode
// (remote echo + remote SGA) or into LINEMODE with editing delegated to
// the peer (LINEMODE active, edit bit clear).
func (e *Engine) Linemode() bool {
	if e.EchoRemote && e.SGARemote {
		return false
	}
	if e.LinemodeActive && !e.LinemodeEdit {
		return false
	}
	return true
}

// BinaryMode reports whether both directions have negotiated BINARY,
// the condition the transfer coordinator and Kermit adapter rely on.
func (e *Engine) BinaryMode() bool {
	return e.BinaryLocal && e.BinaryRemote
}

// HasPendingBytes and TakePendingBytes implement the read-only capability
// the coordinator hands to the Kermit adapter (§9): the adapter may drain
// the pending buffer but never reach into the rest of the engine's state.
func (e *Engine) HasPendingBytes() bool { return len(e.pending) > 0 }

func (e *Engine) TakePendingBytes() []byte {
	b := e.pending
	e.pending = nil
	return b
}

// RecordPending appends bytes seen during the binary-mode drain window
// that are not part of an expected negotiation sequence, so the first
// Kermit packet read does not lose them. Called by the transfer
// coordinator, never by the engine itself.
func (e *Engine) RecordPending(b []byte) {
	e.pending = append(e.pending, b...)
}

// ClearPending resets the handoff slot; called on every transfer entry
// and exit so it never becomes a general queue (§9).
func (e *Engine) ClearPending() { e.pending = nil }

// Feed advances the parser over input one byte at a time and returns the
// ordered sequence of resulting events: decoded application data and
// engine-generated replies, interleaved in the order they were produced so
// that a negotiation reply is never reordered relative to the data that
// provoked it (§5 ordering guarantee).
func (e *Engine) Feed(input []byte) []Event {
	var events []Event
	var dataRun []byte

	flushData := func() {
		if len(dataRun) > 0 {
			events = append(events, Event{Kind: EventData, Data: dataRun})
			dataRun = nil
		}
	}

	for _, b := range input {
		switch e.state {
		case stateData:
			switch {
			case b == IAC:
				e.state = stateIAC
			case b == '\r' && !e.BinaryMode():
				e.state = stateSeenCR
			default:
				dataRun = append(dataRun, b)
			}

		case stateIAC:
			switch b {
			case IAC:
				dataRun = append(dataRun, 0xFF)
				e.state = stateData
			case WILL:
				e.state = stateWill
			case WONT:
				e.state = stateWont
			case DO:
				e.state = stateDo
			case DONT:
				e.state = stateDont
			case SB:
				e.state = stateSB
				e.sbBuf = e.sbBuf[:0]
				e.sbOverflowed = false
			case GA, NOP:
				e.state = stateData
			case AYT:
				flushData()
				events = append(events, Event{Kind: EventSend, Data: []byte("\r\n[Yes]\r\n")})
				e.state = stateData
			case IP, AO, BRK, EC, EL, DM, EOR:
				// Recorded but not acted upon.
				e.state = stateData
			default:
				e.state = stateData
			}

		case stateWill, stateWont, stateDo, stateDont:
			flushData()
			cmd := negotiationCommand(e.state)
			events = append(events, e.processNegotiation(cmd, b)...)
			e.state = stateData

		case stateSB:
			if b == IAC {
				e.state = stateSBIAC
			} else {
				e.appendSB(b)
			}

		case stateSBIAC:
			switch b {
			case SE:
				flushData()
				events = append(events, e.dispatchSubnegotiation()...)
				e.state = stateData
			case IAC:
				e.appendSB(0xFF)
				e.state = stateSB
			default:
				// Tolerant: not a valid terminator, keep accumulating.
				e.appendSB(b)
				e.state = stateSB
			}

		case stateSeenCR:
			switch b {
			case 0x00:
				dataRun = append(dataRun, '\r')
				e.state = stateData
			case '\n':
				dataRun = append(dataRun, '\r', '\n')
				e.state = stateData
			case IAC:
				dataRun = append(dataRun, '\r')
				e.state = stateIAC
			default:
				dataRun = append(dataRun, '\r', b)
				e.state = stateData
			}
		}
	}

	flushData()
	return events
}

// appendSB appends a byte to the subnegotiation accumulator, discarding it
// (and marking the subnegotiation as overflowed) once capacity is
// exceeded rather than growing without bound.
func (e *Engine) appendSB(b byte) {
	if len(e.sbBuf) >= sbBufferCap {
		e.sbOverflowed = true
		return
	}
	e.sbBuf = append(e.sbBuf, b)
}

func negotiationCommand(s parseState) byte {
	switch s {
	case stateWill:
		return WILL
	case stateWont:
		return WONT
	case stateDo:
		return DO
	default:
		return DONT
	}
}

// EscapeIAC doubles every literal 0xFF so the result may be written
// verbatim as Telnet data or subnegotiation payload (§4.1 output contract).
func EscapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}
