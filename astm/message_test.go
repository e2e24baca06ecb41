// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body300() []byte {
	b := make([]byte, 300)
	for i := range b {
		b[i] = byte('a' + (i % 26))
	}
	return b
}

func TestSplitJoinChunkedMessageS3(t *testing.T) {
	body := body300()
	frames, err := Split(body, 100, 1)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	var decoded []Frame
	for i, raw := range frames {
		f, err := DecodeFrame(raw, true)
		require.NoError(t, err)
		assert.Equal(t, uint8((1+i)%8), f.Seq)
		if i < 3 {
			assert.False(t, f.IsLast)
		} else {
			assert.True(t, f.IsLast)
		}
		decoded = append(decoded, f)
	}

	joined, err := Join(decoded)
	require.NoError(t, err)
	assert.Equal(t, body, joined)
}

func TestSplitJoinRoundTripVariousChunkSizes(t *testing.T) {
	body := body300()
	for _, chunkSize := range []int{7, 8, 13, 64, 500} {
		frames, err := Split(body, chunkSize, 0)
		require.NoError(t, err)

		var decoded []Frame
		for _, raw := range frames {
			f, err := DecodeFrame(raw, true)
			require.NoError(t, err)
			decoded = append(decoded, f)
		}
		joined, err := Join(decoded)
		require.NoError(t, err)
		assert.Equal(t, body, joined)
	}
}

func TestSplitRejectsChunkSizeBelowMinimum(t *testing.T) {
	_, err := Split([]byte("abc"), 6, 0)
	require.Error(t, err)
}

func TestSplitSequenceWraps(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 10)
	frames, err := Split(body, 8, 6)
	require.NoError(t, err)
	require.True(t, len(frames) >= 2)

	var decoded []Frame
	for _, raw := range frames {
		f, err := DecodeFrame(raw, true)
		require.NoError(t, err)
		decoded = append(decoded, f)
	}
	assert.Equal(t, uint8(6), decoded[0].Seq)
	assert.Equal(t, uint8((6+1)%8), decoded[1].Seq)

	joined, err := Join(decoded)
	require.NoError(t, err)
	assert.Equal(t, body, joined)
}

func TestJoinRejectsNonContiguousSequence(t *testing.T) {
	f1 := Frame{Seq: 1, Body: []byte("a"), IsLast: false}
	f2 := Frame{Seq: 3, Body: []byte("b"), IsLast: true}
	_, err := Join([]Frame{f1, f2})
	require.Error(t, err)
}

func TestIsChunked(t *testing.T) {
	assert.True(t, IsChunked(Frame{IsLast: false}))
	assert.False(t, IsChunked(Frame{IsLast: true}))
}

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	records := [][]FieldValue{
		{Text("H"), Text("\\^&")},
		{Text("L"), Null(), Text("N")},
	}
	frames, err := Encode(records, 0, 1)
	require.NoError(t, err)

	var all []byte
	for _, f := range frames {
		all = append(all, f...)
	}

	got, err := Decode(all, true)
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestDecodeNonStrictRecoveryNeverFails(t *testing.T) {
	// Too short to be a structurally valid frame even in lenient mode.
	garbage := []byte{STX, '1'}

	_, err := DecodeWithMetadata(garbage, true)
	require.Error(t, err)

	result, err := DecodeWithMetadata(garbage, false)
	require.NoError(t, err)
	assert.False(t, result.ChecksumValid)
	assert.NotEmpty(t, result.Warnings)
}
