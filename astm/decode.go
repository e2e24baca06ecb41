// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"bytes"
	"fmt"

	"github.com/solidcoredata/astmio/errs"
)

// MessageType classifies the shape of data handed to DecodeWithMetadata.
type MessageType string

const (
	MessageComplete   MessageType = "complete_message"
	MessageFrameOnly  MessageType = "frame_only"
	MessageRecordOnly MessageType = "record_only"
	MessageChunked    MessageType = "chunked_message"
)

// DecodeResult is the metadata-carrying counterpart of Decode (spec §6
// "decode_with_metadata").
type DecodeResult struct {
	Data           [][]FieldValue
	MessageType    MessageType
	SequenceNumber *uint8
	Checksum       string
	ChecksumValid  bool
	Warnings       []string
}

// Encode renders a list of decoded records into one or more framed messages
// (spec §6 "encode"). chunkSize <= 0 means "no chunking": the whole body is
// emitted as a single frame regardless of size (still subject to
// MaxMessageBytes).
func Encode(records [][]FieldValue, chunkSize int, startSeq uint8) ([][]byte, error) {
	if len(records) == 0 {
		return nil, errs.NewValidationError("records", 0, "no records to encode")
	}

	var body []byte
	for _, fields := range records {
		if len(fields) == 0 {
			continue
		}
		recordType := recordTypeOf([]byte(fields[0].Text))
		body = append(body, EncodeRecord(fields, recordType)...)
		body = append(body, CR)
	}

	if len(body) > MaxMessageBytes {
		return nil, errs.NewProtocolError(fmt.Sprintf("message body of %d bytes exceeds maximum of %d", len(body), MaxMessageBytes))
	}

	effectiveChunk := chunkSize
	if effectiveChunk <= 0 {
		effectiveChunk = len(body) + FrameOverhead
		if effectiveChunk < MinChunkSize {
			effectiveChunk = MinChunkSize
		}
	}
	return Split(body, effectiveChunk, startSeq)
}

// Decode parses a stream of one or more framed messages back into their
// decoded records, discarding metadata (spec §6 "decode").
func Decode(data []byte, strict bool) ([][]FieldValue, error) {
	result, err := DecodeWithMetadata(data, strict)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// DecodeWithMetadata decodes data and reports framing metadata alongside
// the records (spec §6 "decode_with_metadata"). In non-strict mode, any
// failure falls back to a best-effort recovery decode: checksum_valid is
// false and Warnings is non-empty, but the call never returns an error
// (spec §7 "Propagation policy", §9 open question on lenient recovery).
func DecodeWithMetadata(data []byte, strict bool) (DecodeResult, error) {
	if len(data) == 0 {
		if strict {
			return DecodeResult{}, errs.NewValidationError("data", 0, "empty data")
		}
		return recoveryDecode(data), nil
	}

	if data[0] == STX {
		return decodeFramed(data, strict)
	}
	if data[0] >= '0' && data[0] <= '9' {
		return decodeFrameOnly(data, strict)
	}
	return decodeRecordOnly(data, strict)
}

func decodeFramed(data []byte, strict bool) (DecodeResult, error) {
	frames, err := splitFrames(data, strict)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}

	body, err := Join(frames)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}

	records, err := recordsFromBody(body)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}

	msgType := MessageComplete
	if len(frames) > 1 {
		msgType = MessageChunked
	}

	seq := frames[0].Seq
	allValid := true
	for _, f := range frames {
		allValid = allValid && f.ChecksumValid
	}

	return DecodeResult{
		Data:           records,
		MessageType:    msgType,
		SequenceNumber: &seq,
		ChecksumValid:  allValid,
	}, nil
}

// splitFrames walks data splitting it into consecutive STX-delimited
// frames (a chunked message is the concatenation of several on the wire).
func splitFrames(data []byte, strict bool) ([]Frame, error) {
	var frames []Frame
	rest := data
	for len(rest) > 0 {
		idx := indexByte(rest[1:], STX)
		var chunk []byte
		if idx < 0 {
			chunk = rest
			rest = nil
		} else {
			chunk = rest[:idx+1]
			rest = rest[idx+1:]
		}
		f, err := DecodeFrame(chunk, strict)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil, errs.NewProtocolError("no frames found")
	}
	return frames, nil
}

func recordsFromBody(body []byte) ([][]FieldValue, error) {
	parts := bytes.Split(body, []byte{RecordSep})
	var records [][]FieldValue
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		rec, err := DecodeRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeFrameOnly(data []byte, strict bool) (DecodeResult, error) {
	synthetic := append([]byte{STX}, data...)
	f, err := DecodeFrame(synthetic, strict)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}
	records, err := recordsFromBody(f.Body)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}
	seq := f.Seq
	return DecodeResult{
		Data:           records,
		MessageType:    MessageFrameOnly,
		SequenceNumber: &seq,
		ChecksumValid:  f.ChecksumValid,
	}, nil
}

func decodeRecordOnly(data []byte, strict bool) (DecodeResult, error) {
	rec, err := DecodeRecord(data)
	if err != nil {
		if strict {
			return DecodeResult{}, err
		}
		return recoveryDecode(data), nil
	}
	return DecodeResult{
		Data:          [][]FieldValue{rec},
		MessageType:   MessageRecordOnly,
		ChecksumValid: true,
	}, nil
}

// recoveryDecode is the best-effort, non-strict fallback: it strips leading
// STX bytes, splits on the record separator, trims framing bytes from each
// piece, and decodes every piece that contains a field separator. It never
// panics, always marks checksum_valid false, and always reports at least
// one warning (spec §7, §9 open question).
func recoveryDecode(data []byte) DecodeResult {
	warnings := []string{"recovery decode attempted due to parsing failure"}

	cleaned := bytes.TrimLeft(data, string(STX))
	var records [][]FieldValue
	for _, p := range bytes.Split(cleaned, []byte{RecordSep}) {
		p = bytes.Trim(p, string([]byte{ETX, ETB, CR, LF}))
		if len(p) == 0 || bytes.IndexByte(p, FieldSep) < 0 {
			continue
		}
		if rec, err := DecodeRecord(p); err == nil {
			records = append(records, rec)
		}
	}

	return DecodeResult{
		Data:          records,
		MessageType:   MessageRecordOnly,
		ChecksumValid: false,
		Warnings:      warnings,
	}
}
