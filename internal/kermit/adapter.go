package kermit

import (
	"errors"
	"fmt"

	"github.com/drake/otelnet/internal/telnet"
)

// ErrPeerLeftBinaryMode is returned by ReadPacket when an IAC command
// other than a BINARY-option negotiation arrives mid-packet, signalling
// the peer dropped out of binary mode during the transfer (§4.4).
var ErrPeerLeftBinaryMode = errors.New("kermit: peer sent non-binary IAC command mid-packet")

// sohByte is the optional leading frame byte Kermit packets carry.
const sohByte = 0x01

// Adapter implements the read_packet/write_packet/input_available and
// binary-escape contract the Kermit engine expects, layered over a
// Telnet transport already in BINARY mode both ways.
type Adapter struct {
	sock  Socket
	xport TransportCapability

	unescape UnescapeState
}

// NewAdapter builds an adapter over the given socket, consulting xport
// for the pending-buffer handoff (§9 capability note — no full session
// aliasing).
func NewAdapter(sock Socket, xport TransportCapability) *Adapter {
	return &Adapter{sock: sock, xport: xport}
}

// ReadPacket returns one packet's worth of decoded bytes, an empty slice
// on timeout, or an error on fatal failure.
func (a *Adapter) ReadPacket(timeoutMillis int) ([]byte, error) {
	if a.xport.HasPendingBytes() {
		buf := a.xport.TakePendingBytes()
		if !validKermitFraming(buf) {
			// A bad LEN/SEQ/TYPE forces the whole pending buffer to be
			// dropped so the engine retransmits rather than desyncing.
			return nil, nil
		}
		return stripFraming(buf), nil
	}

	raw, err := a.sock.ReadTimeout(timeoutMillis)
	if err != nil {
		return nil, fmt.Errorf("kermit: read: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil // timeout
	}

	decoded, err := a.decodeBinary(raw)
	if err != nil {
		return nil, err
	}
	return stripFraming(decoded), nil
}

// decodeBinary unescapes FF FF -> FF and handles IAC commands embedded
// in what should be a pure binary stream: BINARY-option negotiation
// replies are skipped silently (the peer may still be settling the
// option when the first packet arrives), anything else means the peer
// left binary mode and the read fails.
func (a *Adapter) decodeBinary(raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b != telnet.IAC {
			out = append(out, b)
			continue
		}
		if i+1 >= len(raw) {
			// IAC at the very end of this read; kept as a literal 0xFF.
			// No state carries over, so a doubling byte at the start of
			// the next read is not paired with it.
			out = append(out, b)
			continue
		}
		cmd := raw[i+1]
		if cmd == telnet.IAC {
			out = append(out, telnet.IAC)
			i++
			continue
		}
		if isBinaryOptionCommand(cmd) && i+2 < len(raw) && raw[i+2] == telnet.OptBinary {
			i += 2 // skip IAC <cmd> BINARY entirely
			continue
		}
		return nil, ErrPeerLeftBinaryMode
	}
	return out, nil
}

func isBinaryOptionCommand(cmd byte) bool {
	return cmd == telnet.WILL || cmd == telnet.WONT || cmd == telnet.DO || cmd == telnet.DONT
}

// validKermitFraming checks the LEN/SEQ/TYPE bytes (after an optional
// leading SOH) fall in Kermit's printable range.
func validKermitFraming(buf []byte) bool {
	if len(buf) > 0 && buf[0] == sohByte {
		buf = buf[1:]
	}
	if len(buf) < 3 {
		return false
	}
	for _, b := range buf[:3] {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

// stripFraming removes a leading SOH and a single trailing CR or LF.
func stripFraming(buf []byte) []byte {
	if len(buf) > 0 && buf[0] == sohByte {
		buf = buf[1:]
	}
	if len(buf) > 0 {
		last := buf[len(buf)-1]
		if last == '\r' || last == '\n' {
			buf = buf[:len(buf)-1]
		}
	}
	return buf
}

// WritePacket binary-escapes buf and writes it whole. The boolean
// return is the engine's success/failure signal, never a byte count.
func (a *Adapter) WritePacket(buf []byte) bool {
	escaped := Escape(buf)
	if err := a.sock.Write(escaped); err != nil {
		return false
	}
	return true
}

// InputAvailable nonblocking-polls the socket for sliding-window
// support in the underlying Kermit engine.
func (a *Adapter) InputAvailable() bool {
	ready, err := a.sock.Ready()
	if err != nil {
		return false
	}
	return ready
}
