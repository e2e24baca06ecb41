// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		body   []byte
		isLast bool
		seq    uint8
	}{
		{"header record", []byte("H|\\^&||PSWD|Maglumi User|||||Lis||P|E1394-97|20250701\r"), true, 1},
		{"chunk middle", []byte("partial body without terminator"), false, 4},
		{"empty body", nil, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeFrame(tc.seq, tc.body, tc.isLast)
			got, err := DecodeFrame(encoded, true)
			require.NoError(t, err)
			assert.Equal(t, tc.seq, got.Seq)
			assert.Equal(t, tc.isLast, got.IsLast)
			assert.True(t, got.ChecksumValid)
			assert.Equal(t, tc.body, got.Body)
		})
	}
}

func TestChecksumProperty(t *testing.T) {
	body := []byte("O|1|25059232")
	frame := EncodeFrame(2, body, true)
	// frame layout: STX seq body term hex hex CR LF
	hexDigits := frame[len(frame)-4 : len(frame)-2]
	covered := frame[1 : len(frame)-4]
	want := ChecksumHex(covered)
	assert.Equal(t, want[:], hexDigits)
}

func TestDecodeFrameBadChecksumStrict(t *testing.T) {
	frame := EncodeFrame(1, []byte("H|test\r"), true)
	// Flip a bit well inside the checksum-covered region (body bytes).
	corrupt := append([]byte{}, frame...)
	corrupt[3] ^= 0x01

	_, err := DecodeFrame(corrupt, true)
	require.Error(t, err)

	got, err := DecodeFrame(corrupt, false)
	require.NoError(t, err)
	assert.False(t, got.ChecksumValid)
}

func TestDecodeFrameStructuralErrors(t *testing.T) {
	_, err := DecodeFrame([]byte("ab"), true)
	require.Error(t, err)

	_, err = DecodeFrame([]byte{STX, 'X', 'a', ETX, 'F', 'F', CR, LF}, true)
	require.Error(t, err)
}

func TestDecodeFrameLenientSeeksSTX(t *testing.T) {
	body := []byte("H|test\r")
	frame := EncodeFrame(3, body, true)
	withPrefix := append([]byte{'x', 'x', 'x'}, frame...)

	_, err := DecodeFrame(withPrefix, true)
	require.Error(t, err)

	got, err := DecodeFrame(withPrefix, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), got.Seq)
	assert.Equal(t, body, got.Body)
}

func TestChunkSizeSevenSingleBytePerFrame(t *testing.T) {
	body := []byte("abcdefg\r")
	frames, err := Split(body, MinChunkSize, 1)
	require.NoError(t, err)
	assert.Equal(t, len(body), len(frames))

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
