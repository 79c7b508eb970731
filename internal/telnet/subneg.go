package telnet

import (
	"encoding/binary"
	"os"
)

// SetWindowSize updates the last-known terminal size and, if NAWS has been
// locally accepted, emits the subnegotiation immediately (§4.2 step 1).
func (e *Engine) SetWindowSize(width, height uint16) []Event {
	if width == e.width && height == e.height {
		return nil
	}
	e.width, e.height = width, height
	if !e.options[OptNAWS].localEnabled {
		return nil
	}
	return []Event{e.nawsEvent()}
}

// nawsEvent builds the NAWS subnegotiation payload: two 16-bit big-endian
// values, IAC-doubled like any other subnegotiation payload (§8 invariant
// 5).
func (e *Engine) nawsEvent() Event {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint16(raw[0:2], e.width)
	binary.BigEndian.PutUint16(raw[2:4], e.height)
	return e.subnegotiationEvent(OptNAWS, raw)
}

// subnegotiationEvent wraps payload as IAC SB <opt> <escaped payload> IAC SE.
func (e *Engine) subnegotiationEvent(opt byte, payload []byte) Event {
	escaped := EscapeIAC(payload)
	buf := make([]byte, 0, 3+len(escaped)+2)
	buf = append(buf, IAC, SB, opt)
	buf = append(buf, escaped...)
	buf = append(buf, IAC, SE)
	return Event{Kind: EventSend, Data: buf}
}

// SetTerminalTypes overrides the default cyclic offer list (XTERM, VT100,
// ANSI).
func (e *Engine) SetTerminalTypes(names []string) {
	if len(names) == 0 {
		return
	}
	e.termTypes = names
	e.termIdx = 0
}

// SetSpeed overrides the default "38400,38400" TSPEED string.
func (e *Engine) SetSpeed(speed string) { e.speed = speed }

// dispatchSubnegotiation handles a completed SB...IAC SE payload. Per the
// literal parsing contract the accumulator's first byte is the option
// code and the rest is payload.
func (e *Engine) dispatchSubnegotiation() []Event {
	overflowed := e.sbOverflowed
	buf := e.sbBuf
	e.sbBuf = nil
	e.sbOverflowed = false

	if overflowed || len(buf) == 0 {
		return nil
	}

	opt := buf[0]
	payload := unescapeIAC(buf[1:])

	switch opt {
	case OptTTYPE:
		return e.handleTTYPE(payload)
	case OptTSPEED:
		return e.handleTSPEED(payload)
	case OptEnviron:
		return e.handleEnviron(payload)
	case OptLinemode:
		return e.handleLinemode(payload)
	default:
		return nil
	}
}

// unescapeIAC collapses doubled 0xFF bytes within a subnegotiation payload
// that already passed through the SB/SB_IAC accumulator (which itself only
// ever stores a single literal 0xFF per doubled pair — see appendSB call
// sites), so this is effectively a no-op safety net for any payload bytes
// appended verbatim by the tolerant SB_IAC default branch.
func unescapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	sawFF := false
	for _, b := range data {
		if sawFF {
			sawFF = false
			if b == IAC {
				continue
			}
		} else if b == IAC {
			sawFF = true
		}
		out = append(out, b)
	}
	return out
}

func (e *Engine) handleTTYPE(payload []byte) []Event {
	if len(payload) == 0 || payload[0] != subSend {
		return nil
	}
	name := e.termTypes[e.termIdx]
	e.termIdx = (e.termIdx + 1) % len(e.termTypes)
	out := append([]byte{subIS}, []byte(name)...)
	return []Event{e.subnegotiationEvent(OptTTYPE, out)}
}

func (e *Engine) handleTSPEED(payload []byte) []Event {
	if len(payload) == 0 || payload[0] != subSend {
		return nil
	}
	out := append([]byte{subIS}, []byte(e.speed)...)
	return []Event{e.subnegotiationEvent(OptTSPEED, out)}
}

// sensitiveEnvVars is never sent even if set in the process environment.
var sensitiveEnvVars = map[string]bool{
	"PASSWORD": true,
	"TOKEN":    true,
	"SECRET":   true,
}

const maxEnvValueLen = 256

func defaultEnvironGet(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	if len(v) > maxEnvValueLen {
		v = v[:maxEnvValueLen]
	}
	return v, true
}

func (e *Engine) handleEnviron(payload []byte) []Event {
	if len(payload) == 0 || payload[0] != subSend {
		return nil
	}
	out := []byte{subIS}
	for _, name := range []string{"USER", "DISPLAY"} {
		if sensitiveEnvVars[name] {
			continue
		}
		val, ok := e.environGet(name)
		if !ok {
			continue
		}
		out = append(out, envVar)
		out = append(out, []byte(name)...)
		out = append(out, envValue)
		out = append(out, []byte(val)...)
	}
	return []Event{e.subnegotiationEvent(OptEnviron, out)}
}

func (e *Engine) handleLinemode(payload []byte) []Event {
	if len(payload) < 2 || payload[0] != lmModeOpt {
		// FORWARDMASK and SLC (§4.1) are accepted and ignored.
		return nil
	}
	bits := payload[1]
	e.linemodeBits = bits &^ lmAck
	e.recomputeDerived()
	if bits&lmAck != 0 {
		return []Event{e.subnegotiationEvent(OptLinemode, []byte{lmModeOpt, bits})}
	}
	return nil
}
