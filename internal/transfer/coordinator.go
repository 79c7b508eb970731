package transfer

import (
	"github.com/drake/otelnet/internal/detect"
	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/telnet"
)

// Coordinator owns the arm/disarm sequence shared by both transfer back
// ends. It is created once per session and reused across transfers; it
// holds no per-transfer state between calls.
type Coordinator struct {
	Telnet *telnet.Engine
	Socket kermit.Socket
	Detect *detect.State // nil is legal: detectors simply aren't paused

	config Config
}

// New creates a coordinator bound to the session's Telnet engine and
// socket, applying cfg's timeout/retry policy.
func New(e *telnet.Engine, sock kermit.Socket, det *detect.State, cfg Config) *Coordinator {
	return &Coordinator{Telnet: e, Socket: sock, Detect: det, config: cfg}
}

// Arm selects a back end for the given detector signal and runs the
// appropriate path to completion, returning once the transfer has
// finished, failed, or been cancelled.
func (c *Coordinator) Arm(sig detect.Signal, localPath string, engine KermitEngine, helper HelperLauncher) Result {
	dir := Receive
	if sig.SendInit {
		dir = Send
	}

	if sig.Protocol == detect.Kermit {
		return c.RunKermit(dir, localPath, engine)
	}
	return c.RunChildHelper(fromDetected(sig.Protocol), dir, localPath, helper)
}
