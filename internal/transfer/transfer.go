// Package transfer implements the coordinator that arms, drives, and
// disarms file transfers over an already-connected Telnet session: the
// embedded-Kermit path and the external-helper path for XMODEM, YMODEM,
// and ZMODEM (§4.3).
package transfer

import (
	"time"

	"github.com/drake/otelnet/internal/detect"
)

// Direction is which way a transfer moves data.
type Direction int

const (
	Receive Direction = iota
	Send
)

// Protocol identifies which transfer back end the coordinator drives.
type Protocol int

const (
	ProtoKermit Protocol = iota
	ProtoXModem
	ProtoYModem
	ProtoZModem
)

func fromDetected(p detect.Protocol) Protocol {
	switch p {
	case detect.XMODEM:
		return ProtoXModem
	case detect.YMODEM:
		return ProtoYModem
	default:
		return ProtoZModem
	}
}

// Config carries the timeout/retry policy of §4.3.3.
type Config struct {
	GlobalTimeout   time.Duration // default 300s
	DataIdleTimeout time.Duration // default 30s
	PacketTimeout   time.Duration // default 15s, passed to the Kermit engine
	MaxNAKs         int           // default 10
	MaxTimeouts     int           // default 5
	KeepPartial     bool
	DrainWindow     time.Duration // bounded interval for step 1's BINARY confirmation wait
	KillGrace       time.Duration // SIGTERM-to-SIGKILL grace period

	// HelperPath resolves a protocol to its external helper binary and
	// base arguments (e.g. "rx"/"sx" for XMODEM, "rb"/"sb" for YMODEM,
	// "rz"/"sz" for ZMODEM).
	HelperPath func(p Protocol, dir Direction) (path string, args []string)
}

// DefaultConfig returns the §4.3.3 default policy.
func DefaultConfig() Config {
	return Config{
		GlobalTimeout:   300 * time.Second,
		DataIdleTimeout: 30 * time.Second,
		PacketTimeout:   15 * time.Second,
		MaxNAKs:         10,
		MaxTimeouts:     5,
		DrainWindow:     2 * time.Second,
		KillGrace:       3 * time.Second,
	}
}

// Outcome classifies how a transfer ended (§4.3.2 step 4).
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSuccessWithWarning
	OutcomeFailure
)

// Result is what a coordinator run reports back to the session loop.
type Result struct {
	Outcome  Outcome
	BytesIn  int64
	BytesOut int64
	Err      error
}
