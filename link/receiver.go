// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link is the ASTM E1394 link-layer state machine: sender and
// receiver roles modeled as pure `(state, input) -> (state, output,
// action)` transition functions, driven by a thin I/O loop that performs
// the actual transport reads and writes (spec §4.5, §9 design note on
// replacing coroutine-driven I/O with explicit state + a driving loop).
package link

import "github.com/solidcoredata/astmio/astm"

// ReceiverState is one of the two states a receiving connection occupies
// (spec §4.5 "Receiver states").
type ReceiverState int

const (
	ReceiverIdle ReceiverState = iota
	ReceiverTransfer
)

// ReceiverInputKind classifies one byte or frame arriving at the receiver.
type ReceiverInputKind int

const (
	ReceiverInputENQ ReceiverInputKind = iota
	ReceiverInputEOT
	ReceiverInputFrame
	ReceiverInputACK
	ReceiverInputNAK
)

// ReceiverInput is one transition input. FrameData carries the raw wire
// bytes of a frame (STX through the trailing LF) when Kind is
// ReceiverInputFrame.
type ReceiverInput struct {
	Kind      ReceiverInputKind
	FrameData []byte
}

// ReceiverActionKind tells the driving loop what, if anything, to do
// beyond writing ReceiverResult.Write.
type ReceiverActionKind int

const (
	ReceiverActionNone ReceiverActionKind = iota
	// ReceiverActionDeliver means Message holds every raw frame of one
	// fully reassembled chunked message, ready to decode and dispatch.
	ReceiverActionDeliver
)

// ReceiverResult is the output of one ReceiverStep call.
type ReceiverResult struct {
	State   ReceiverState
	Buffer  [][]byte
	Write   []byte
	Action  ReceiverActionKind
	Message [][]byte
}

// ReceiverStep is the pure receiver transition function (spec §4.5
// "Receiver transitions"). buffer holds the raw frame bytes accumulated so
// far in the current transfer; it is never mutated in place, only
// threaded through via the returned ReceiverResult.
func ReceiverStep(state ReceiverState, buffer [][]byte, in ReceiverInput) ReceiverResult {
	switch state {
	case ReceiverIdle:
		if in.Kind == ReceiverInputENQ {
			return ReceiverResult{State: ReceiverTransfer, Write: []byte{astm.ACK}}
		}
		// Anything else while idle is ignored; NAK is defensive but not
		// required and we choose the quieter of the two permitted behaviors.
		return ReceiverResult{State: ReceiverIdle}

	case ReceiverTransfer:
		switch in.Kind {
		case ReceiverInputENQ:
			// Spurious ENQ mid-transfer: some analyzers resynchronize this
			// way. Keep the buffer, stay in Transfer.
			return ReceiverResult{State: ReceiverTransfer, Buffer: buffer, Write: []byte{astm.NAK}}

		case ReceiverInputEOT:
			return ReceiverResult{State: ReceiverIdle}

		case ReceiverInputFrame:
			f, err := astm.DecodeFrame(in.FrameData, true)
			if err != nil {
				// Structurally or checksum invalid: NAK, do not append,
				// remain in Transfer so the sender can retransmit.
				return ReceiverResult{State: ReceiverTransfer, Buffer: buffer, Write: []byte{astm.NAK}}
			}
			next := make([][]byte, len(buffer), len(buffer)+1)
			copy(next, buffer)
			next = append(next, in.FrameData)

			if !f.IsLast {
				return ReceiverResult{State: ReceiverTransfer, Buffer: next, Write: []byte{astm.ACK}}
			}
			// Chunk buffer complete: hand it to the driving loop for
			// decode + dispatch, then return to Idle (spec §4.5: "no
			// persistent per-message state survives a completed Transfer").
			return ReceiverResult{State: ReceiverIdle, Write: []byte{astm.ACK}, Action: ReceiverActionDeliver, Message: next}

		default:
			// Out-of-role ACK/NAK: discarded; nothing is logged.
			return ReceiverResult{State: ReceiverTransfer, Buffer: buffer}
		}
	}
	return ReceiverResult{State: state, Buffer: buffer}
}
