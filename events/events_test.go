// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/schema"
)

func TestDispatchRoutesByRecordTypeLetter(t *testing.T) {
	d := NewDispatcher(nil)
	var got *schema.Record
	d.RegisterHandler('H', func(record *schema.Record) error {
		got = record
		return nil
	})

	record := &schema.Record{Type: 'H', Raw: []astm.FieldValue{astm.Text("H"), astm.Text("\\^&")}}
	require.NoError(t, d.Dispatch(record))
	assert.Equal(t, record, got)
}

func TestDispatchUnknownTypeIsNotAnError(t *testing.T) {
	d := NewDispatcher(nil)
	err := d.Dispatch(&schema.Record{Type: 'Z'})
	assert.NoError(t, err)
}

func TestEmitIsolatesPanickingObserver(t *testing.T) {
	d := NewDispatcher(nil)
	var calledSecond bool
	d.Subscribe(func(name Name, payload any) { panic("boom") })
	d.Subscribe(func(name Name, payload any) { calledSecond = true })

	assert.NotPanics(t, func() {
		d.Emit(ConnectionEstablished, ConnectionEstablishedPayload{PeerAddr: "127.0.0.1:1"})
	})
	assert.True(t, calledSecond)
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	d := NewDispatcher(nil)
	want := errors.New("boom")
	d.RegisterHandler('O', func(record *schema.Record) error { return want })

	err := d.Dispatch(&schema.Record{Type: 'O'})
	assert.ErrorIs(t, err, want)
}
