// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"context"
	"time"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/transport"
)

// ReceiverOptions configures ReceiveLoop (spec §4.6 "per-read deadline,
// default configurable, typ. 10-30s").
type ReceiverOptions struct {
	ReadTimeout time.Duration
}

// ReceiveLoop drives one receiver-role connection for as long as the
// transport stays open, resynchronizing to Idle after every completed or
// aborted transfer so the connection can carry several ENQ/transfer cycles
// (spec §4.5 Receiver states, §4.6 server connection handler). deliver is
// invoked once per fully reassembled message with the message's raw wire
// bytes (every constituent frame, in order); decoding and dispatch are the
// caller's responsibility so link stays free of the record-factory and
// event-dispatch dependencies.
func ReceiveLoop(ctx context.Context, stream transport.ByteStream, opts ReceiverOptions, deliver func(message []byte) error) error {
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}

	state := ReceiverIdle
	var buffer [][]byte

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := stream.ReadByte(time.Now().Add(readTimeout))
		if err != nil {
			return err
		}

		var in ReceiverInput
		switch b {
		case astm.ENQ:
			in = ReceiverInput{Kind: ReceiverInputENQ}
		case astm.EOT:
			in = ReceiverInput{Kind: ReceiverInputEOT}
		case astm.ACK:
			in = ReceiverInput{Kind: ReceiverInputACK}
		case astm.NAK:
			in = ReceiverInput{Kind: ReceiverInputNAK}
		case astm.STX:
			frameData, ferr := readFrameBytes(stream, b, readTimeout)
			if ferr != nil {
				return ferr
			}
			in = ReceiverInput{Kind: ReceiverInputFrame, FrameData: frameData}
		default:
			continue // unrecognized leading byte; wait for resynchronization
		}

		result := ReceiverStep(state, buffer, in)
		state = result.State
		buffer = result.Buffer

		if len(result.Write) > 0 {
			if werr := stream.Write(result.Write, time.Now().Add(readTimeout)); werr != nil {
				return werr
			}
		}

		if result.Action == ReceiverActionDeliver {
			var whole []byte
			for _, f := range result.Message {
				whole = append(whole, f...)
			}
			// An error from deliver is the caller's to report; it never
			// stops the link loop.
			_ = deliver(whole)
		}
	}
}

// readFrameBytes consumes one frame's remaining bytes (stx already read)
// through its trailing LF.
func readFrameBytes(stream transport.ByteStream, stx byte, readTimeout time.Duration) ([]byte, error) {
	frame := []byte{stx}
	for {
		b, err := stream.ReadByte(time.Now().Add(readTimeout))
		if err != nil {
			return nil, err
		}
		frame = append(frame, b)
		if b == astm.LF && len(frame) >= astm.MinChunkSize {
			return frame, nil
		}
	}
}

// SenderOptions configures SendLoop (spec §4.5 timeouts, §4.7 "connect
// deadline default 3s" is handled by transport.DialTCP separately).
type SenderOptions struct {
	AckTimeout    time.Duration
	MaxEnqRetries int
	MaxNakRetries int
}

// SendLoop drives one sender-role session to completion: ENQ, the
// establishing ACK, frame-by-frame ACK/NAK handling, and a final EOT
// (spec §4.5 "Sender transitions", §4.7 "send_records"). It returns nil
// only when every frame was ACKed and the session closed with EOT.
func SendLoop(ctx context.Context, stream transport.ByteStream, frames [][]byte, opts SenderOptions) error {
	timeout := opts.AckTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	m := NewSenderMachine(frames, opts.MaxEnqRetries, opts.MaxNakRetries)
	result := SenderStep(m, SenderInputSendRequest)
	m = result.Machine
	if err := writeIfAny(stream, result.Write, timeout); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			// Cancellation: stop writes, best-effort EOT, bounded cleanup
			// window (spec §4.5 "Cancellation").
			_ = stream.Write([]byte{astm.EOT}, time.Now().Add(time.Second))
			return ctx.Err()
		default:
		}

		if m.State == SenderClosing {
			// Closing needs no peer input to emit its final EOT; stepping
			// here avoids blocking a full AckTimeout waiting for a byte
			// that will never arrive.
			result = SenderStep(m, SenderInputACK)
			m = result.Machine
			if err := writeIfAny(stream, result.Write, timeout); err != nil {
				return err
			}
			if result.Action == SenderActionComplete {
				return nil
			}
			continue
		}

		priorState := m.State
		b, rerr := stream.ReadByte(time.Now().Add(timeout))

		var in SenderInputKind
		if rerr != nil {
			if _, ok := rerr.(*errs.TimeoutError); ok {
				in = SenderInputTimeout
			} else {
				return rerr
			}
		} else {
			switch b {
			case astm.ACK:
				in = SenderInputACK
			case astm.NAK:
				in = SenderInputNAK
			default:
				continue
			}
		}

		result = SenderStep(m, in)
		m = result.Machine
		if err := writeIfAny(stream, result.Write, timeout); err != nil {
			return err
		}

		switch result.Action {
		case SenderActionAbortNotAccepted:
			attempts := m.NakStreak
			if priorState == SenderEstablishing {
				attempts = m.EnqAttempts
			}
			return errs.NewNotAccepted(attempts, "peer sent repeated NAK or establishment timed out")
		case SenderActionAbortTimeout:
			return errs.NewTimeoutError("send")
		case SenderActionComplete:
			return nil
		}
	}
}

func writeIfAny(stream transport.ByteStream, p []byte, timeout time.Duration) error {
	if len(p) == 0 {
		return nil
	}
	return stream.Write(p, time.Now().Add(timeout))
}
