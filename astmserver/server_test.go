// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astmserver

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/astmclient"
	"github.com/solidcoredata/astmio/config"
	"github.com/solidcoredata/astmio/events"
	"github.com/solidcoredata/astmio/profile"
	"github.com/solidcoredata/astmio/schema"
)

func headerProfile(t *testing.T) (*profile.Profile, *schema.Registry) {
	t.Helper()
	p, err := profile.New(profile.Profile{
		Device: "test-analyzer",
		Records: map[byte]profile.RecordConfig{
			'H': {Fields: []profile.FieldDef{
				{Name: "record_type", Position: 1, Type: profile.TypeConstant, Default: "H"},
				{Name: "delimiters", Position: 2, Type: profile.TypeString},
			}},
		},
	})
	require.NoError(t, err)
	reg, err := schema.GenerateRecordModels(p)
	require.NoError(t, err)
	return p, reg
}

func TestServerAcceptsConnectionAndDispatchesRecord(t *testing.T) {
	p, reg := headerProfile(t)
	dispatcher := events.NewDispatcher(nil)

	received := make(chan *schema.Record, 1)
	dispatcher.RegisterHandler('H', func(record *schema.Record) error {
		received <- record
		return nil
	})

	processed := make(chan events.RecordProcessedPayload, 1)
	dispatcher.Subscribe(func(name events.Name, payload any) {
		if name == events.RecordProcessed {
			processed <- payload.(events.RecordProcessedPayload)
		}
	})

	srv, err := New("127.0.0.1:0", p, reg, dispatcher, config.DefaultOptions(), nil)
	require.NoError(t, err)
	defer srv.Close()

	addr := srv.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ServeForever(ctx)

	client := astmclient.New(astmclient.Options{Addr: addr, AckTimeout: 2 * time.Second})
	defer client.Close()

	records := []schema.Record{{Type: 'H', Raw: []astm.FieldValue{astm.Text("H"), astm.Text("\\^&")}}}
	ok, err := client.SendRecords(context.Background(), records)
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case rec := <-received:
		assert.Equal(t, byte('H'), rec.Type)
		assert.Equal(t, "\\^&", rec.Values["delimiters"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("record_processed was never emitted")
	}
}

func TestServerRejectsBeyondMaxConnections(t *testing.T) {
	p, reg := headerProfile(t)
	dispatcher := events.NewDispatcher(nil)
	opts := config.DefaultOptions()
	opts.MaxConnections = 1

	srv, err := New("127.0.0.1:0", p, reg, dispatcher, opts, nil)
	require.NoError(t, err)
	defer srv.Close()
	addr := srv.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ServeForever(ctx)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	time.Sleep(50 * time.Millisecond) // let the accept loop register the first connection

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, readErr := second.Read(buf)
	assert.Equal(t, io.EOF, readErr) // excess connection is accepted then immediately closed
}

func TestDefaultMaxConnectionsFallback(t *testing.T) {
	p, reg := headerProfile(t)
	dispatcher := events.NewDispatcher(nil)
	opts := config.DefaultOptions()
	opts.MaxConnections = 0

	srv, err := New("127.0.0.1:0", p, reg, dispatcher, opts, nil)
	require.NoError(t, err)
	defer srv.Close()

	assert.Equal(t, 100, srv.maxConnections())
}
