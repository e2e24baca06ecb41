// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"fmt"

	"github.com/solidcoredata/astmio/errs"
)

// IsChunked reports whether frame is a non-final (ETB-terminated) frame of
// a chunked message (spec §4.3 "is_chunked").
func IsChunked(frame Frame) bool {
	return !frame.IsLast
}

// Split partitions a logical message body into groups of at most
// chunkSize-FrameOverhead bytes each, one per frame (spec §4.3 "Split").
// chunkSize must be at least MinChunkSize. Sequence numbers run startSeq,
// startSeq+1, ..., mod 8. The result always has at least one frame, even
// for an empty body.
func Split(body []byte, chunkSize int, startSeq uint8) ([][]byte, error) {
	if chunkSize < MinChunkSize {
		return nil, &errs.ValidationError{
			Field:  "chunk_size",
			Reason: fmt.Sprintf("chunk_size %d is below the minimum of %d", chunkSize, MinChunkSize),
		}
	}
	if len(body) > MaxMessageBytes {
		return nil, errs.NewProtocolError(fmt.Sprintf("message body of %d bytes exceeds maximum of %d", len(body), MaxMessageBytes))
	}

	groupSize := chunkSize - FrameOverhead
	if groupSize <= 0 {
		return nil, errs.NewProtocolError(fmt.Sprintf("chunk_size %d leaves no room for a body byte", chunkSize))
	}
	var groups [][]byte
	if len(body) == 0 {
		groups = [][]byte{{}}
	} else {
		for off := 0; off < len(body); off += groupSize {
			end := off + groupSize
			if end > len(body) {
				end = len(body)
			}
			groups = append(groups, body[off:end])
		}
	}

	frames := make([][]byte, len(groups))
	for i, g := range groups {
		seq := uint8((int(startSeq) + i) % 8)
		isLast := i == len(groups)-1
		frames[i] = EncodeFrame(seq, g, isLast)
	}
	return frames, nil
}

// Join reassembles the body of a chunked message from its decoded frames
// (spec §4.3 "Join"). Frames must be contiguous mod 8, starting at the
// first frame's declared sequence, and the last frame must be the only one
// with IsLast set.
func Join(frames []Frame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errs.NewProtocolError("no frames to join")
	}

	var out []byte
	expected := frames[0].Seq
	for i, f := range frames {
		if f.Seq != expected {
			return nil, errs.NewProtocolError(fmt.Sprintf("non-contiguous frame sequence: expected %d, got %d at index %d", expected, f.Seq, i))
		}
		expected = (expected + 1) % 8

		isFinal := i == len(frames)-1
		if f.IsLast != isFinal {
			return nil, errs.NewProtocolError("only the final frame may be ETX-terminated")
		}
		out = append(out, f.Body...)
	}
	return out, nil
}
