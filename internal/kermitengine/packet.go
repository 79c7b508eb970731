// Package kermitengine is a from-scratch implementation of the packet
// exchange the embedded Kermit transfer drives: send-init/file-header/
// data/eof/break on the sending side, the matching ack/nak sequence on
// the receiving side. It satisfies transfer.KermitEngine, talking to
// the wire exclusively through a *kermit.Adapter — everything here is
// the "documented callback contract" side of the boundary, never the
// Telnet transport itself.
package kermitengine

import "github.com/drake/otelnet/internal/kermit"

// Packet type bytes, the standard single-character Kermit packet
// types.
const (
	typeSendInit  byte = 'S'
	typeFileHdr   byte = 'F'
	typeData      byte = 'D'
	typeEOF       byte = 'Z'
	typeBreak     byte = 'B'
	typeAck       byte = 'Y'
	typeNak       byte = 'N'
	typeError     byte = 'E'
)

// maxDataLen bounds a single Data packet's payload; well under the
// classic 94-byte default packet length ceiling once framing is added.
const maxDataLen = 80

func tochar(b byte) byte { return (b & 0x3F) + 32 }
func unchar(c byte) byte { return (c - 32) & 0x3F }

// checkType1 is the sum-mod-64 block check used on control packets
// (Send-Init and Ack, generalized here to every non-Data type).
func checkType1(data []byte) []byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return []byte{tochar(sum)}
}

// checkType3 is the CRC-16/CCITT block check used on Data packets,
// split into three printable characters the classic way: the high
// nibble, then two 6-bit groups.
func checkType3(data []byte) []byte {
	crc := kermit.CRC16(data)
	return []byte{
		tochar(byte(crc>>12) & 0x0F),
		tochar(byte(crc>>6) & 0x3F),
		tochar(byte(crc) & 0x3F),
	}
}

// buildPacket assembles a full wire packet: SOH LEN SEQ TYPE DATA
// CHECK, with Type 3 CRC-16 on Data packets and Type 1 on everything
// else (§wire sub-protocols).
func buildPacket(seq int, typ byte, data []byte) []byte {
	body := make([]byte, 0, 2+len(data))
	body = append(body, tochar(byte(seq&0x3F)), typ)
	body = append(body, data...)

	var check []byte
	if typ == typeData {
		check = checkType3(body)
	} else {
		check = checkType1(body)
	}

	// The LEN field spans the classic 32-126 printable range directly
	// (no 6-bit masking like SEQ and the checksum characters): a packet
	// body can run past 63 bytes, and masking it would silently wrap.
	lenField := byte(len(body)+len(check)) + 32
	out := make([]byte, 0, 2+len(body)+len(check))
	out = append(out, sohByte, lenField)
	out = append(out, body...)
	out = append(out, check...)
	return out
}

const sohByte = 0x01

// parsedPacket is a decoded packet ready for the engine's dispatch
// loop.
type parsedPacket struct {
	seq  int
	typ  byte
	data []byte
}

// parsePacket reverses buildPacket's framing. The caller has already
// stripped the leading SOH (the adapter does this), so raw begins at
// LEN.
func parsePacket(raw []byte) (parsedPacket, bool) {
	if len(raw) < 2 {
		return parsedPacket{}, false
	}
	length := int(raw[0]) - 32
	if length < 0 {
		return parsedPacket{}, false
	}
	body := raw[1:]
	if len(body) < length {
		return parsedPacket{}, false
	}
	body = body[:length]
	if len(body) < 2 {
		return parsedPacket{}, false
	}

	seq := int(unchar(body[0]))
	typ := body[1]
	rest := body[2:]

	var checkLen int
	if typ == typeData {
		checkLen = 3
	} else {
		checkLen = 1
	}
	if len(rest) < checkLen {
		return parsedPacket{}, false
	}
	data := rest[:len(rest)-checkLen]
	check := rest[len(rest)-checkLen:]

	want := body[:len(body)-checkLen]
	var expect []byte
	if typ == typeData {
		expect = checkType3(want)
	} else {
		expect = checkType1(want)
	}
	for i := range expect {
		if check[i] != expect[i] {
			return parsedPacket{}, false
		}
	}

	return parsedPacket{seq: seq, typ: typ, data: data}, true
}

func nextSeq(seq int) int { return (seq + 1) & 0x3F }
