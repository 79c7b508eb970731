// Package telnet implements an RFC 854/855 protocol engine: a byte-at-a-time
// parser for the IAC command stream, option negotiation with loop
// prevention, subnegotiation framing, and IAC-escaped output.
//
// This is a Go-native reworking of the event-driven telnet parser in
// github.com/drake/rune's network package, generalized from MUD-client
// option defaults to an interactive Telnet client with file-transfer
// support (BINARY/ECHO/SGA/TTYPE/NAWS/TSPEED/ENVIRON/LINEMODE).
package telnet

// Command bytes (RFC 854).
const (
	SE   byte = 240 // subnegotiation end
	NOP  byte = 241
	DM   byte = 242 // data mark
	BRK  byte = 243 // break
	IP   byte = 244 // interrupt process
	AO   byte = 245 // abort output
	AYT  byte = 246 // are you there
	EC   byte = 247 // erase character
	EL   byte = 248 // erase line
	GA   byte = 249 // go ahead
	SB   byte = 250 // subnegotiation begin
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255
	EOR  byte = 239 // end of record
)

// Option codes.
const (
	OptBinary   byte = 0
	OptEcho     byte = 1
	OptSGA      byte = 3
	OptTTYPE    byte = 24
	OptNAWS     byte = 31
	OptTSPEED   byte = 32
	OptLinemode byte = 34
	OptEnviron  byte = 36
)

// Subnegotiation command bytes shared by TTYPE/TSPEED/ENVIRON (RFC 1091,
// RFC 1079, RFC 1572).
const (
	subIS   byte = 0
	subSend byte = 1
)

// ENVIRON subnegotiation type bytes (RFC 1572).
const (
	envVar     byte = 0
	envValue   byte = 1
	envESC     byte = 2
	envUserVar byte = 3
)

// LINEMODE subnegotiation suboptions (RFC 1184).
const (
	lmModeOpt        byte = 1
	lmForwardMaskOpt byte = 2
	lmSLCOpt         byte = 3
)

// LINEMODE MODE mask bits.
const (
	lmEdit    byte = 0x01
	lmTrapsig byte = 0x02
	lmAck     byte = 0x04
)

// locallySupported lists options this engine offers to perform itself
// (WILL/DO accepted on our side). remotelyAcceptable lists options we are
// willing to ask the peer to enable (DO/WILL accepted on their side).
// These are fixed predicates, never state — see design note on avoiding
// the "supported" vs "currently enabled" conflation.
var locallySupported = map[byte]bool{
	OptBinary:   true,
	OptSGA:      true,
	OptTTYPE:    true,
	OptNAWS:     true,
	OptTSPEED:   true,
	OptEnviron:  true,
	OptLinemode: true,
}

var remotelyAcceptable = map[byte]bool{
	OptBinary:   true,
	OptSGA:      true,
	OptEcho:     true,
	OptLinemode: true,
}

// sbBufferCap bounds the subnegotiation accumulator (§3 invariant: overflow
// discards the subnegotiation rather than growing unbounded).
const sbBufferCap = 4096
