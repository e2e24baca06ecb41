// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidcoredata/astmio/astm"
)

func TestSenderHappyPathSingleFrame(t *testing.T) {
	frame := astm.EncodeFrame(1, []byte("H|\\^&"), true)
	m := NewSenderMachine([][]byte{frame}, 0, 0)

	r := SenderStep(m, SenderInputSendRequest)
	assert.Equal(t, SenderEstablishing, r.Machine.State)
	assert.Equal(t, []byte{astm.ENQ}, r.Write)

	r = SenderStep(r.Machine, SenderInputACK)
	assert.Equal(t, SenderSending, r.Machine.State)
	assert.Equal(t, frame, r.Write)

	r = SenderStep(r.Machine, SenderInputACK)
	assert.Equal(t, SenderClosing, r.Machine.State)

	r = SenderStep(r.Machine, SenderInputACK)
	assert.Equal(t, SenderIdle, r.Machine.State)
	assert.Equal(t, SenderActionComplete, r.Action)
}

func TestSenderClosingEmitsEOT(t *testing.T) {
	m := SenderMachine{State: SenderClosing}
	r := SenderStep(m, SenderInputACK)
	assert.Equal(t, SenderIdle, r.Machine.State)
	assert.Equal(t, []byte{astm.EOT}, r.Write)
	assert.Equal(t, SenderActionComplete, r.Action)
}

func TestSenderNAKDuringEstablishingRetriesThenAborts(t *testing.T) {
	m := NewSenderMachine(nil, 2, 2)
	r := SenderStep(m, SenderInputSendRequest)
	require.Equal(t, SenderEstablishing, r.Machine.State)

	r = SenderStep(r.Machine, SenderInputNAK) // 1st retry
	assert.Equal(t, SenderEstablishing, r.Machine.State)
	assert.Equal(t, []byte{astm.ENQ}, r.Write)

	r = SenderStep(r.Machine, SenderInputNAK) // exhausted at MaxEnqRetries=2
	assert.Equal(t, SenderIdle, r.Machine.State)
	assert.Equal(t, []byte{astm.EOT}, r.Write)
	assert.Equal(t, SenderActionAbortNotAccepted, r.Action)
}

func TestSenderNAKDuringSendingRetransmitsSameFrame(t *testing.T) {
	frame := astm.EncodeFrame(1, []byte("body"), true)
	m := SenderMachine{State: SenderSending, Frames: [][]byte{frame}, FrameIndex: 0, MaxNakRetries: 6}

	r := SenderStep(m, SenderInputNAK)
	assert.Equal(t, SenderSending, r.Machine.State)
	assert.Equal(t, frame, r.Write) // same frame, sequence unchanged
	assert.Equal(t, 1, r.Machine.NakStreak)
}

func TestSenderSixConsecutiveNAKsAbort(t *testing.T) {
	frame := astm.EncodeFrame(1, []byte("body"), true)
	m := SenderMachine{State: SenderSending, Frames: [][]byte{frame}, MaxNakRetries: 6}
	var r SenderResult
	for i := 0; i < 6; i++ {
		r = SenderStep(m, SenderInputNAK)
		m = r.Machine
	}
	assert.Equal(t, SenderActionAbortNotAccepted, r.Action)
	assert.Equal(t, SenderIdle, r.Machine.State)
}

func TestSenderTimeoutAborts(t *testing.T) {
	m := SenderMachine{State: SenderEstablishing}
	r := SenderStep(m, SenderInputTimeout)
	assert.Equal(t, SenderIdle, r.Machine.State)
	assert.Equal(t, SenderActionAbortTimeout, r.Action)
	assert.Equal(t, []byte{astm.EOT}, r.Write)
}

func TestSenderEmptyFrameListGoesStraightToClosing(t *testing.T) {
	m := NewSenderMachine(nil, 0, 0)
	r := SenderStep(m, SenderInputSendRequest)
	r = SenderStep(r.Machine, SenderInputACK)
	assert.Equal(t, SenderClosing, r.Machine.State)
}
