// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solidcoredata/astmio/astm"
)

func TestReceiverIdleENQEntersTransfer(t *testing.T) {
	r := ReceiverStep(ReceiverIdle, nil, ReceiverInput{Kind: ReceiverInputENQ})
	assert.Equal(t, ReceiverTransfer, r.State)
	assert.Equal(t, []byte{astm.ACK}, r.Write)
}

func TestReceiverIdleIgnoresOtherInput(t *testing.T) {
	r := ReceiverStep(ReceiverIdle, nil, ReceiverInput{Kind: ReceiverInputACK})
	assert.Equal(t, ReceiverIdle, r.State)
	assert.Empty(t, r.Write)
}

func TestReceiverTransferSpuriousENQNAKsAndKeepsBuffer(t *testing.T) {
	buf := [][]byte{[]byte("frame-one")}
	r := ReceiverStep(ReceiverTransfer, buf, ReceiverInput{Kind: ReceiverInputENQ})
	assert.Equal(t, ReceiverTransfer, r.State)
	assert.Equal(t, []byte{astm.NAK}, r.Write)
	assert.Equal(t, buf, r.Buffer)
}

func TestReceiverTransferEOTReturnsToIdleAndDropsBuffer(t *testing.T) {
	buf := [][]byte{[]byte("partial")}
	r := ReceiverStep(ReceiverTransfer, buf, ReceiverInput{Kind: ReceiverInputEOT})
	assert.Equal(t, ReceiverIdle, r.State)
	assert.Empty(t, r.Buffer)
}

func frameBytes(t *testing.T, seq uint8, body []byte, isLast bool) []byte {
	t.Helper()
	return astm.EncodeFrame(seq, body, isLast)
}

func TestReceiverTransferInvalidFrameNAKsWithoutAppending(t *testing.T) {
	bad := frameBytes(t, 1, []byte("hello"), true)
	bad[len(bad)-1] ^= 0x01 // corrupt the trailing LF so the frame is structurally invalid

	r := ReceiverStep(ReceiverTransfer, nil, ReceiverInput{Kind: ReceiverInputFrame, FrameData: bad})
	assert.Equal(t, ReceiverTransfer, r.State)
	assert.Equal(t, []byte{astm.NAK}, r.Write)
	assert.Empty(t, r.Buffer)
}

func TestReceiverTransferETBFrameBuffersAndACKs(t *testing.T) {
	f := frameBytes(t, 1, []byte("chunk one"), false)
	r := ReceiverStep(ReceiverTransfer, nil, ReceiverInput{Kind: ReceiverInputFrame, FrameData: f})
	assert.Equal(t, ReceiverTransfer, r.State)
	assert.Equal(t, []byte{astm.ACK}, r.Write)
	assert.Equal(t, ReceiverActionNone, r.Action)
	require := assert.New(t)
	require.Len(r.Buffer, 1)
}

func TestReceiverTransferFinalFrameDeliversAndReturnsToIdle(t *testing.T) {
	first := frameBytes(t, 1, []byte("chunk one "), false)
	last := frameBytes(t, 2, []byte("chunk two"), true)

	r1 := ReceiverStep(ReceiverTransfer, nil, ReceiverInput{Kind: ReceiverInputFrame, FrameData: first})
	r2 := ReceiverStep(r1.State, r1.Buffer, ReceiverInput{Kind: ReceiverInputFrame, FrameData: last})

	assert.Equal(t, ReceiverIdle, r2.State)
	assert.Equal(t, ReceiverActionDeliver, r2.Action)
	assert.Equal(t, []byte{astm.ACK}, r2.Write)
	assert.Len(t, r2.Message, 2)
}
