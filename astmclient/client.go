// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package astmclient is the client-side connection driver (spec §4.7
// "Client connection driver (C9)").
package astmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/link"
	"github.com/solidcoredata/astmio/schema"
	"github.com/solidcoredata/astmio/transport"
)

// Options configures a Client (spec §4.7 "connect deadline default 3s",
// "Reuses a single connection for multiple sends if keepalive is set").
// Registry is optional: when set, it renders each schema.Record through its
// compiled RecordClass before encoding; when nil (or when a record's type
// has no compiled class), the record's captured Raw fields are sent as-is.
type Options struct {
	Addr           string
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
	ChunkSize      int
	MaxEnqRetries  int
	MaxNakRetries  int
	Keepalive      bool
	Registry       *schema.Registry
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return 3 * time.Second
	}
	return o.ConnectTimeout
}

// Client drives the sender role of the link state machine against a
// configured server address.
type Client struct {
	opts   Options
	stream transport.ByteStream // non-nil only when Keepalive holds a connection open
}

// New builds a Client from Options. No network activity happens until
// SendRecords is called.
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// SendRecords serializes records (each through its registered RecordClass,
// or its captured Raw fields without one) and drives one sender-role
// session, returning true iff every frame of every message was ACKed and
// the session terminated with EOT (spec §4.7 "send_records(iterable)
// returns true iff ..."). Any failure returns false and closes the
// connection.
func (c *Client) SendRecords(ctx context.Context, records []schema.Record) (bool, error) {
	positional := make([][]astm.FieldValue, 0, len(records))
	for i := range records {
		fields, err := c.serialize(&records[i])
		if err != nil {
			return false, err
		}
		positional = append(positional, fields)
	}

	frames, err := astm.Encode(positional, c.opts.ChunkSize, 1)
	if err != nil {
		return false, err
	}

	stream := c.stream
	if stream == nil {
		connectCtx, cancel := context.WithTimeout(ctx, c.opts.connectTimeout())
		defer cancel()
		s, err := transport.DialTCP(connectCtx, c.opts.Addr)
		if err != nil {
			return false, err
		}
		stream = s
	}

	err = link.SendLoop(ctx, stream, frames, link.SenderOptions{
		AckTimeout:    c.opts.AckTimeout,
		MaxEnqRetries: c.opts.MaxEnqRetries,
		MaxNakRetries: c.opts.MaxNakRetries,
	})

	if c.opts.Keepalive && err == nil {
		c.stream = stream
		return true, nil
	}

	_ = stream.Close()
	c.stream = nil

	if err != nil {
		return false, err
	}
	return true, nil
}

// serialize renders rec to its positional wire form, preferring a
// registered RecordClass and falling back to rec.Raw when Registry is nil
// or declares no class for rec.Type.
func (c *Client) serialize(rec *schema.Record) ([]astm.FieldValue, error) {
	if c.opts.Registry != nil {
		return c.opts.Registry.SerializeRecord(rec, true)
	}
	if rec.Raw != nil {
		return rec.Raw, nil
	}
	return nil, errs.NewValidationError("record_type", 1, fmt.Sprintf("no registry configured and no raw fields captured for type %q", string(rec.Type)))
}

// Close releases any connection held open for keepalive reuse.
func (c *Client) Close() error {
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}
