// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"fmt"

	"github.com/solidcoredata/astmio/errs"
)

// Frame is one STX...CRLF unit on the wire (spec §3 "Frame", §4.1).
//
// Body is exactly the bytes the caller handed to EncodeFrame (or that Split
// produced): for the final frame of a message this conventionally already
// ends in CR, the separator of the message's last record. The terminator
// byte (ETX for the final frame, ETB otherwise) is a single byte appended
// after Body; it is never itself a CR.
type Frame struct {
	Seq           uint8
	Body          []byte
	IsLast        bool
	ChecksumValid bool
}

// EncodeFrame renders one frame for the given sequence number and body
// (spec §4.1 "Encode"). body is emitted verbatim; callers building the
// final frame of a message pass a body already ending in CR.
func EncodeFrame(seq uint8, body []byte, isLast bool) []byte {
	out := make([]byte, 0, len(body)+8)
	out = append(out, STX)
	out = append(out, '0'+(seq%8))
	out = append(out, body...)
	if isLast {
		out = append(out, ETX)
	} else {
		out = append(out, ETB)
	}
	// Checksum covers sequence digit through terminator, inclusive.
	sum := ChecksumHex(out[1:])
	out = append(out, sum[0], sum[1], CR, LF)
	return out
}

// DecodeFrame parses one frame. In strict mode, any structural or checksum
// violation returns an error (*errs.ProtocolError or *errs.ChecksumError);
// in lenient mode the decoder seeks the first STX, tolerates a non-digit
// sequence byte (mod 8), and reports a checksum mismatch via
// Frame.ChecksumValid rather than failing (spec §4.1 "Decode").
func DecodeFrame(data []byte, strict bool) (Frame, error) {
	if len(data) < 5 {
		return Frame{}, errs.NewProtocolError(fmt.Sprintf("frame too short: %d bytes", len(data)))
	}

	start := 0
	if data[0] != STX {
		if strict {
			return Frame{}, errs.NewProtocolError("frame missing leading STX")
		}
		idx := indexByte(data, STX)
		if idx < 0 {
			return Frame{}, errs.NewProtocolError("no STX found in lenient decode")
		}
		start = idx
	}

	if len(data) > start && len(data)-start > MaxMessageBytes {
		return Frame{}, errs.NewProtocolError("frame exceeds maximum message size")
	}

	rest := data[start+1:]
	if len(rest) < 4 {
		return Frame{}, errs.NewProtocolError("frame too short after STX")
	}

	seqByte := rest[0]
	var seq uint8
	if seqByte >= '0' && seqByte <= '7' {
		seq = seqByte - '0'
	} else {
		if strict {
			return Frame{}, errs.NewProtocolError(fmt.Sprintf("invalid sequence digit %q", seqByte))
		}
		seq = seqByte % 8
	}

	// tail must be: body-bytes + terminator(1 byte) + 2 hex digits + CR LF.
	tail := rest[1:]
	if len(tail) < 4 || tail[len(tail)-2] != CR || tail[len(tail)-1] != LF {
		return Frame{}, errs.NewProtocolError("frame missing trailing CRLF")
	}
	hex := tail[len(tail)-4 : len(tail)-2]
	beforeHex := tail[:len(tail)-4]

	if len(beforeHex) < 1 {
		return Frame{}, errs.NewProtocolError("frame missing ETX/ETB terminator")
	}
	term := beforeHex[len(beforeHex)-1]
	var isLast bool
	switch term {
	case ETX:
		isLast = true
	case ETB:
		isLast = false
	default:
		return Frame{}, errs.NewProtocolError("frame missing ETX/ETB terminator")
	}
	body := beforeHex[:len(beforeHex)-1]

	// Checksum covers sequence digit through terminator, inclusive.
	checked := append([]byte{seqByte}, beforeHex...)
	computed := ChecksumHex(checked)
	checksumValid := computed[0] == hex[0] && computed[1] == hex[1]

	if !checksumValid && strict {
		return Frame{}, errs.NewChecksumError(string(hex), string(computed[:]), data)
	}

	return Frame{Seq: seq, Body: body, IsLast: isLast, ChecksumValid: checksumValid}, nil
}

func indexByte(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}
