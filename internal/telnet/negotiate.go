package telnet

// processNegotiation implements the RFC 855 sub-protocol of §4.1 for a
// single incoming WILL/WONT/DO/DONT. It is also the only place option
// state flips, whether the move was unsolicited or a confirmation of an
// offer this engine made itself (see WillOption/DoOption below) — which is
// what keeps loop prevention (§8 invariant 4) a single code path.
func (e *Engine) processNegotiation(cmd, opt byte) []Event {
	st := &e.options[opt]
	var events []Event

	switch cmd {
	case WILL:
		if st.remoteEnabled {
			break
		}
		if st.remotePending {
			// Confirms the DO we already sent ourselves (DoOption); the
			// offer is settled, no reply is owed.
			st.remotePending = false
			st.remoteEnabled = true
			break
		}
		if remotelyAcceptable[opt] {
			st.remoteEnabled = true
			events = append(events, e.send(DO, opt))
		} else if !st.remoteRefused {
			st.remoteRefused = true
			events = append(events, e.send(DONT, opt))
		}

	case WONT:
		if st.remotePending {
			// The peer declined the DO we sent; nothing was ever enabled.
			st.remotePending = false
			break
		}
		if st.remoteEnabled {
			st.remoteEnabled = false
			events = append(events, e.send(DONT, opt))
		}

	case DO:
		if st.localEnabled {
			break
		}
		if st.localPending {
			// Confirms the WILL we already sent ourselves (WillOption);
			// the offer is settled, no reply is owed.
			st.localPending = false
			st.localEnabled = true
			events = append(events, e.onLocallyAccepted(opt)...)
			break
		}
		if locallySupported[opt] {
			st.localEnabled = true
			events = append(events, e.send(WILL, opt))
			events = append(events, e.onLocallyAccepted(opt)...)
		} else if !st.localRefused {
			st.localRefused = true
			events = append(events, e.send(WONT, opt))
		}

	case DONT:
		if st.localPending {
			// The peer declined the WILL we sent; nothing was ever enabled.
			st.localPending = false
			break
		}
		if st.localEnabled {
			st.localEnabled = false
			events = append(events, e.send(WONT, opt))
		}
	}

	e.recomputeDerived()
	return events
}

// onLocallyAccepted runs the follow-up action for an option we just
// agreed to perform ourselves (§4.1 "Follow-up actions on locally
// accepted DO").
func (e *Engine) onLocallyAccepted(opt byte) []Event {
	switch opt {
	case OptNAWS:
		return []Event{e.nawsEvent()}
	case OptLinemode:
		e.LinemodeActive = true
	}
	return nil
}

// send builds a single IAC <cmd> <opt> negotiation event.
func (e *Engine) send(cmd, opt byte) Event {
	return Event{Kind: EventSend, Data: []byte{IAC, cmd, opt}}
}

// recomputeDerived refreshes the convenience flags from the option table.
// Called after every settled negotiation (§4.1 "Derived mode").
func (e *Engine) recomputeDerived() {
	e.BinaryLocal = e.options[OptBinary].localEnabled
	e.BinaryRemote = e.options[OptBinary].remoteEnabled
	e.EchoRemote = e.options[OptEcho].remoteEnabled
	e.SGALocal = e.options[OptSGA].localEnabled
	e.SGARemote = e.options[OptSGA].remoteEnabled
	// LinemodeActive only ever latches true (via onLocallyAccepted) and is
	// cleared by restore_state reversing a drift; LinemodeEdit tracks the
	// MODE bits reported in the LINEMODE subnegotiation.
	e.LinemodeEdit = e.linemodeBits&lmEdit != 0
}

// --- Initiator API: offers this engine makes on its own behalf ---

// WillOption proposes that we ourselves begin performing opt. The local
// flags stay unconfirmed (localPending, not localEnabled) until the
// peer's own DO arrives and processNegotiation settles it — so
// BinaryMode and every other derived flag correctly read false for the
// real duration of the round trip, not just until this call returns.
// Returns nil if the option is already enabled or an offer is already
// outstanding (no redundant negotiation — RFC 855 loop prevention).
func (e *Engine) WillOption(opt byte) *Event {
	st := &e.options[opt]
	if st.localEnabled || st.localPending {
		return nil
	}
	st.localPending = true
	ev := e.send(WILL, opt)
	return &ev
}

// WontOption withdraws an option we were performing, or cancels a WILL
// offer still awaiting confirmation.
func (e *Engine) WontOption(opt byte) *Event {
	st := &e.options[opt]
	st.localPending = false
	if !st.localEnabled {
		return nil
	}
	st.localEnabled = false
	ev := e.send(WONT, opt)
	e.recomputeDerived()
	return &ev
}

// DoOption asks the peer to begin performing opt. Like WillOption, this
// only marks the offer outstanding (remotePending); remoteEnabled, and
// so BinaryMode, stays false until the peer's WILL actually confirms it.
func (e *Engine) DoOption(opt byte) *Event {
	st := &e.options[opt]
	if st.remoteEnabled || st.remotePending {
		return nil
	}
	st.remotePending = true
	ev := e.send(DO, opt)
	return &ev
}

// DontOption asks the peer to stop performing opt, or cancels a DO
// offer still awaiting confirmation.
func (e *Engine) DontOption(opt byte) *Event {
	st := &e.options[opt]
	st.remotePending = false
	if !st.remoteEnabled {
		return nil
	}
	st.remoteEnabled = false
	ev := e.send(DONT, opt)
	e.recomputeDerived()
	return &ev
}

// OpeningOffers returns the negotiation events to send immediately after
// TCP connect (§4.1 "Opening offers").
func (e *Engine) OpeningOffers() []Event {
	var events []Event
	for _, ev := range []*Event{
		e.WillOption(OptBinary),
		e.WillOption(OptSGA),
		e.DoOption(OptSGA),
		e.DoOption(OptEcho),
		e.WillOption(OptTTYPE),
		e.WillOption(OptNAWS),
		e.WillOption(OptTSPEED),
		e.WillOption(OptEnviron),
		e.WillOption(OptLinemode),
	} {
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// --- Save/restore across a transfer (§4.1) ---

// Snapshot captures the seven flags that matter for transfer arm/disarm.
type Snapshot struct {
	BinaryLocal, BinaryRemote bool
	EchoLocal, EchoRemote     bool
	SGALocal, SGARemote       bool
	LinemodeActive            bool
}

// SaveState snapshots the option flags the coordinator must restore after
// a transfer.
func (e *Engine) SaveState() Snapshot {
	return Snapshot{
		BinaryLocal:    e.options[OptBinary].localEnabled,
		BinaryRemote:   e.options[OptBinary].remoteEnabled,
		EchoLocal:      e.options[OptEcho].localEnabled,
		EchoRemote:     e.options[OptEcho].remoteEnabled,
		SGALocal:       e.options[OptSGA].localEnabled,
		SGARemote:      e.options[OptSGA].remoteEnabled,
		LinemodeActive: e.LinemodeActive,
	}
}

// RequestBinaryMode emits WILL BINARY and DO BINARY only for the
// directions not already latched, per §4.1.
func (e *Engine) RequestBinaryMode() []Event {
	var events []Event
	if ev := e.WillOption(OptBinary); ev != nil {
		events = append(events, *ev)
	}
	if ev := e.DoOption(OptBinary); ev != nil {
		events = append(events, *ev)
	}
	return events
}

// RestoreState compares each of the seven flags in snapshot against the
// current state and emits the single negotiation that reverses any drift,
// never emitting a transition that isn't needed.
func (e *Engine) RestoreState(snap Snapshot) []Event {
	var events []Event
	restoreLocal := func(opt byte, want bool) {
		if want == e.options[opt].localEnabled {
			return
		}
		if want {
			if ev := e.WillOption(opt); ev != nil {
				events = append(events, *ev)
			}
		} else {
			if ev := e.WontOption(opt); ev != nil {
				events = append(events, *ev)
			}
		}
	}
	restoreRemote := func(opt byte, want bool) {
		if want == e.options[opt].remoteEnabled {
			return
		}
		if want {
			if ev := e.DoOption(opt); ev != nil {
				events = append(events, *ev)
			}
		} else {
			if ev := e.DontOption(opt); ev != nil {
				events = append(events, *ev)
			}
		}
	}

	restoreLocal(OptBinary, snap.BinaryLocal)
	restoreRemote(OptBinary, snap.BinaryRemote)
	restoreLocal(OptEcho, snap.EchoLocal)
	restoreRemote(OptEcho, snap.EchoRemote)
	restoreLocal(OptSGA, snap.SGALocal)
	restoreRemote(OptSGA, snap.SGARemote)
	e.LinemodeActive = snap.LinemodeActive
	return events
}
