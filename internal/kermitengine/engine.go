package kermitengine

import (
	"fmt"
	"path/filepath"

	"github.com/drake/otelnet/internal/kermit"
	"github.com/drake/otelnet/internal/transfer"
)

// Engine drives a single-file Kermit exchange with no sliding window:
// one packet outstanding at a time, acked before the next is sent.
// That is a deliberate simplification of the full protocol (no
// streaming, no third-party long-packet extensions) rather than an
// attempt to reproduce every C-Kermit feature.
type Engine struct{}

// New builds an Engine. It holds no state between calls.
func New() *Engine { return &Engine{} }

// Transfer implements transfer.KermitEngine.
func (e *Engine) Transfer(dir transfer.Direction, adapter *kermit.Adapter, localPath string, cfg transfer.Config) error {
	if dir == transfer.Send {
		return e.send(adapter, localPath, cfg)
	}
	return e.receive(adapter, localPath, cfg)
}

func (e *Engine) send(a *kermit.Adapter, path string, cfg transfer.Config) error {
	fh, err := kermit.OpenRead(path)
	if err != nil {
		return fmt.Errorf("kermitengine: open %s: %w", path, err)
	}

	seq := 0
	if err := e.exchange(a, seq, typeSendInit, []byte("~@? 94#3"), cfg); err != nil {
		fh.Close(path, kermit.CloseDataPacket, true, cfg.KeepPartial)
		return err
	}

	seq = nextSeq(seq)
	if err := e.exchange(a, seq, typeFileHdr, []byte(filepath.Base(path)), cfg); err != nil {
		fh.Close(path, kermit.CloseDataPacket, true, cfg.KeepPartial)
		return err
	}

	for {
		buf := make([]byte, maxDataLen)
		n := readBlock(fh, buf)
		if n == 0 {
			break
		}
		seq = nextSeq(seq)
		if err := e.exchange(a, seq, typeData, buf[:n], cfg); err != nil {
			fh.Close(path, kermit.CloseDataPacket, true, cfg.KeepPartial)
			return err
		}
	}

	seq = nextSeq(seq)
	if err := e.exchange(a, seq, typeEOF, nil, cfg); err != nil {
		fh.Close(path, kermit.CloseDataPacket, true, cfg.KeepPartial)
		return err
	}
	fh.Close(path, kermit.CloseEOF, true, cfg.KeepPartial)

	seq = nextSeq(seq)
	return e.exchange(a, seq, typeBreak, nil, cfg)
}

// readBlock fills buf from fh one byte at a time, per the engine's
// read-callback contract, stopping at EOF or a full block.
func readBlock(fh *kermit.FileHandle, buf []byte) int {
	n := 0
	for n < len(buf) {
		b := fh.ReadByte()
		if b < 0 {
			break
		}
		buf[n] = byte(b)
		n++
	}
	return n
}

// exchange sends one packet and waits for its Ack, retrying on Nak or
// timeout up to the configured ceilings.
func (e *Engine) exchange(a *kermit.Adapter, seq int, typ byte, data []byte, cfg transfer.Config) error {
	timeouts, naks := 0, 0
	pkt := buildPacket(seq, typ, data)

	for {
		if !a.WritePacket(pkt) {
			return fmt.Errorf("kermitengine: write packet seq %d: transport failure", seq)
		}

		raw, err := a.ReadPacket(int(cfg.PacketTimeout.Milliseconds()))
		if err != nil {
			return fmt.Errorf("kermitengine: read ack for seq %d: %w", seq, err)
		}
		if raw == nil {
			timeouts++
			if timeouts > cfg.MaxTimeouts {
				return fmt.Errorf("kermitengine: packet timeout ceiling exceeded at seq %d", seq)
			}
			continue
		}

		reply, ok := parsePacket(raw)
		if !ok || reply.seq != seq {
			naks++
			if naks > cfg.MaxNAKs {
				return fmt.Errorf("kermitengine: nak ceiling exceeded at seq %d", seq)
			}
			continue
		}
		if reply.typ == typeAck {
			return nil
		}
		naks++
		if naks > cfg.MaxNAKs {
			return fmt.Errorf("kermitengine: nak ceiling exceeded at seq %d", seq)
		}
	}
}

func (e *Engine) receive(a *kermit.Adapter, path string, cfg transfer.Config) error {
	sendInit, err := e.readExpected(a, typeSendInit, cfg)
	if err != nil {
		return err
	}
	if err := e.ack(a, sendInit.seq, []byte("~@? 94#3")); err != nil {
		return err
	}

	fileHdr, err := e.readExpected(a, typeFileHdr, cfg)
	if err != nil {
		return err
	}
	destPath := path
	if destPath == "" {
		destPath = string(fileHdr.data)
	}
	fh, err := kermit.OpenWrite(destPath)
	if err != nil {
		e.sendError(a, nextSeq(fileHdr.seq), cfg)
		return fmt.Errorf("kermitengine: create %s: %w", destPath, err)
	}
	if err := e.ack(a, fileHdr.seq, nil); err != nil {
		fh.Close(destPath, kermit.CloseDataPacket, false, cfg.KeepPartial)
		return err
	}

	for {
		pkt, err := e.readAnyWithRetry(a, cfg)
		if err != nil {
			fh.Close(destPath, kermit.CloseDataPacket, false, cfg.KeepPartial)
			return err
		}
		switch pkt.typ {
		case typeData:
			if fh.WriteBlock(pkt.data) < 0 {
				e.sendError(a, pkt.seq, cfg)
				fh.Close(destPath, kermit.CloseDataPacket, false, cfg.KeepPartial)
				return fmt.Errorf("kermitengine: write to %s failed", destPath)
			}
			if err := e.ack(a, pkt.seq, nil); err != nil {
				fh.Close(destPath, kermit.CloseDataPacket, false, cfg.KeepPartial)
				return err
			}
		case typeEOF:
			if err := e.ack(a, pkt.seq, nil); err != nil {
				fh.Close(destPath, kermit.CloseDataPacket, false, cfg.KeepPartial)
				return err
			}
			fh.Close(destPath, kermit.CloseEOF, false, cfg.KeepPartial)
		case typeBreak:
			return e.ack(a, pkt.seq, nil)
		default:
			e.nak(a, pkt.seq)
		}
	}
}

func (e *Engine) readExpected(a *kermit.Adapter, want byte, cfg transfer.Config) (parsedPacket, error) {
	pkt, err := e.readAnyWithRetry(a, cfg)
	if err != nil {
		return parsedPacket{}, err
	}
	if pkt.typ != want {
		return parsedPacket{}, fmt.Errorf("kermitengine: expected packet type %q, got %q", want, pkt.typ)
	}
	return pkt, nil
}

func (e *Engine) readAnyWithRetry(a *kermit.Adapter, cfg transfer.Config) (parsedPacket, error) {
	timeouts, stray := 0, 0
	for {
		raw, err := a.ReadPacket(int(cfg.PacketTimeout.Milliseconds()))
		if err != nil {
			return parsedPacket{}, fmt.Errorf("kermitengine: read: %w", err)
		}
		if raw == nil {
			timeouts++
			if timeouts > cfg.MaxTimeouts {
				return parsedPacket{}, fmt.Errorf("kermitengine: packet timeout ceiling exceeded")
			}
			continue
		}
		pkt, ok := parsePacket(raw)
		if !ok {
			// Malformed packet: the sender's own timeout drives the
			// retransmit, but bound the wait so noise can't loop forever.
			stray++
			if stray > cfg.MaxNAKs {
				return parsedPacket{}, fmt.Errorf("kermitengine: malformed-packet ceiling exceeded")
			}
			continue
		}
		return pkt, nil
	}
}

func (e *Engine) ack(a *kermit.Adapter, seq int, data []byte) error {
	if !a.WritePacket(buildPacket(seq, typeAck, data)) {
		return fmt.Errorf("kermitengine: write ack for seq %d: transport failure", seq)
	}
	return nil
}

func (e *Engine) nak(a *kermit.Adapter, seq int) {
	a.WritePacket(buildPacket(seq, typeNak, nil))
}

// sendError emits a best-effort Error packet, ignoring any transport
// failure: the transfer is already aborting.
func (e *Engine) sendError(a *kermit.Adapter, seq int, cfg transfer.Config) {
	a.WritePacket(buildPacket(seq, typeError, []byte("transfer aborted")))
}
