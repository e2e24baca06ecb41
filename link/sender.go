// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import "github.com/solidcoredata/astmio/astm"

// SenderState is one of the four states a sending connection occupies
// (spec §4.5 "Sender states").
type SenderState int

const (
	SenderIdle SenderState = iota
	SenderEstablishing
	SenderSending
	SenderClosing
)

// SenderInputKind classifies one transition input for the sender role.
type SenderInputKind int

const (
	SenderInputSendRequest SenderInputKind = iota
	SenderInputACK
	SenderInputNAK
	SenderInputTimeout
)

// SenderActionKind tells the driving loop what happened beyond the bytes
// in SenderResult.Write.
type SenderActionKind int

const (
	SenderActionNone SenderActionKind = iota
	SenderActionAbortNotAccepted
	SenderActionAbortTimeout
	SenderActionComplete
)

// SenderMachine is the sender's pure, immutable state: which frame is
// next, and how many ENQ/NAK retries remain (spec §4.5 "Sender
// transitions", §9 "pure functions over (state, input) -> (state, output,
// actions)").
type SenderMachine struct {
	State         SenderState
	Frames        [][]byte
	FrameIndex    int
	EnqAttempts   int
	NakStreak     int
	MaxEnqRetries int
	MaxNakRetries int
}

// NewSenderMachine prepares a sender for one logical send of frames (the
// already-framed bytes of one or more chunked messages, in transmission
// order). Retry counts default to 6 (spec §4.5 "retry ENQ up to a
// configured count (default 6)").
func NewSenderMachine(frames [][]byte, maxEnqRetries, maxNakRetries int) SenderMachine {
	if maxEnqRetries <= 0 {
		maxEnqRetries = 6
	}
	if maxNakRetries <= 0 {
		maxNakRetries = 6
	}
	return SenderMachine{State: SenderIdle, Frames: frames, MaxEnqRetries: maxEnqRetries, MaxNakRetries: maxNakRetries}
}

// SenderResult is the output of one SenderStep call.
type SenderResult struct {
	Machine SenderMachine
	Write   []byte
	Action  SenderActionKind
}

// SenderStep is the pure sender transition function (spec §4.5 "Sender
// transitions").
func SenderStep(m SenderMachine, in SenderInputKind) SenderResult {
	switch m.State {
	case SenderIdle:
		if in == SenderInputSendRequest {
			m.State = SenderEstablishing
			m.EnqAttempts = 1
			return SenderResult{Machine: m, Write: []byte{astm.ENQ}}
		}
		return SenderResult{Machine: m}

	case SenderEstablishing:
		switch in {
		case SenderInputACK:
			m.State = SenderSending
			m.FrameIndex = 0
			m.NakStreak = 0
			if len(m.Frames) == 0 {
				m.State = SenderClosing
				return SenderResult{Machine: m}
			}
			return SenderResult{Machine: m, Write: m.Frames[0]}
		case SenderInputNAK:
			if m.EnqAttempts >= m.MaxEnqRetries {
				m.State = SenderIdle
				return SenderResult{Machine: m, Write: []byte{astm.EOT}, Action: SenderActionAbortNotAccepted}
			}
			m.EnqAttempts++
			return SenderResult{Machine: m, Write: []byte{astm.ENQ}}
		case SenderInputTimeout:
			m.State = SenderIdle
			return SenderResult{Machine: m, Write: []byte{astm.EOT}, Action: SenderActionAbortTimeout}
		}
		return SenderResult{Machine: m}

	case SenderSending:
		switch in {
		case SenderInputACK:
			m.NakStreak = 0
			m.FrameIndex++
			if m.FrameIndex >= len(m.Frames) {
				m.State = SenderClosing
				return SenderResult{Machine: m}
			}
			return SenderResult{Machine: m, Write: m.Frames[m.FrameIndex]}
		case SenderInputNAK:
			m.NakStreak++
			if m.NakStreak >= m.MaxNakRetries {
				m.State = SenderIdle
				return SenderResult{Machine: m, Write: []byte{astm.EOT}, Action: SenderActionAbortNotAccepted}
			}
			// Retransmit the same frame, unchanged sequence (spec §8
			// property 9: "next byte written is the first byte of the
			// same frame").
			return SenderResult{Machine: m, Write: m.Frames[m.FrameIndex]}
		case SenderInputTimeout:
			m.State = SenderIdle
			return SenderResult{Machine: m, Write: []byte{astm.EOT}, Action: SenderActionAbortTimeout}
		}
		return SenderResult{Machine: m}

	case SenderClosing:
		m.State = SenderIdle
		return SenderResult{Machine: m, Write: []byte{astm.EOT}, Action: SenderActionComplete}
	}
	return SenderResult{Machine: m}
}
