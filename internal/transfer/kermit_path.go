package transfer

import (
	"time"

	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/telnet"
)

// KermitEngine is the callback-driven state machine the coordinator
// hands a packet adapter to. Its internals — packet retransmission,
// windowing, checksum selection — are a black box the coordinator never
// inspects; only this boundary is in scope (§4.4).
type KermitEngine interface {
	Transfer(dir Direction, adapter *kermit.Adapter, localPath string, cfg Config) error
}

// engineCapability narrows *telnet.Engine down to the read-only view the
// Kermit adapter is allowed (§9): it must not be able to reach into the
// rest of the session's Telnet state.
type engineCapability struct {
	e *telnet.Engine
}

func (c engineCapability) BinaryModeActive() bool   { return c.e.BinaryMode() }
func (c engineCapability) HasPendingBytes() bool    { return c.e.HasPendingBytes() }
func (c engineCapability) TakePendingBytes() []byte { return c.e.TakePendingBytes() }

// RunKermit implements §4.3.1: negotiate BINARY both ways, drain any
// bytes that arrive before the confirmation settles into the engine's
// pending buffer, disable the detectors, run the embedded engine, then
// restore everything.
func (c *Coordinator) RunKermit(dir Direction, localPath string, engine KermitEngine) Result {
	snap := c.Telnet.SaveState()
	c.Telnet.ClearPending()

	for _, ev := range c.Telnet.RequestBinaryMode() {
		if ev.Kind == telnet.EventSend {
			if err := c.Socket.Write(ev.Data); err != nil {
				return Result{Outcome: OutcomeFailure, Err: err}
			}
		}
	}

	if err := c.drainUntilBinary(); err != nil {
		c.Telnet.RestoreState(snap)
		return Result{Outcome: OutcomeFailure, Err: err}
	}

	if c.Detect != nil {
		c.Detect.DisableAll()
	}
	defer func() {
		if c.Detect != nil {
			c.Detect.EnableAll()
		}
		c.Telnet.ClearPending()
		c.Telnet.RestoreState(snap)
	}()

	adapter := kermit.NewAdapter(c.Socket, engineCapability{e: c.Telnet})
	if err := engine.Transfer(dir, adapter, localPath, c.config); err != nil {
		return Result{Outcome: OutcomeFailure, Err: err}
	}
	return Result{Outcome: OutcomeSuccess}
}

// drainUntilBinary waits, bounded by the configured drain window, for
// both directions of BINARY to settle. Any decoded bytes seen along the
// way that are not part of the negotiation reply stream are preserved
// into the engine's pending buffer rather than discarded, so the first
// Kermit packet is not lost.
func (c *Coordinator) drainUntilBinary() error {
	deadline := time.Now().Add(c.config.DrainWindow)
	for !c.Telnet.BinaryMode() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		raw, err := c.Socket.ReadTimeout(int(remaining / time.Millisecond))
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			continue
		}
		for _, ev := range c.Telnet.Feed(raw) {
			switch ev.Kind {
			case telnet.EventSend:
				if err := c.Socket.Write(ev.Data); err != nil {
					return err
				}
			case telnet.EventData:
				c.Telnet.RecordPending(ev.Data)
			}
		}
	}
	return nil
}
