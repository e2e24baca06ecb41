// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events is the handler and observer registry the server and
// client dispatch through (spec §4.8 "Handler dispatch (C10)", §6
// "Observer-facing events"). It replaces the teacher's ad-hoc
// internal/connect pub-sub sketch with the explicit, owned observer list
// spec §9's design note calls for: "no hidden singletons".
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/schema"
)

// Name identifies one lifecycle event (spec §6 "Observer-facing events").
type Name string

const (
	ConnectionEstablished  Name = "connection_established"
	RecordProcessed        Name = "record_processed"
	ConnectionFailed       Name = "connection_failed"
	RecordValidationFailed Name = "record_validation_failed"
)

// ConnectionEstablishedPayload is the immutable snapshot delivered for
// ConnectionEstablished.
type ConnectionEstablishedPayload struct {
	ConnID   string
	PeerAddr string
	At       time.Time
}

// RecordProcessedPayload is the immutable snapshot delivered for
// RecordProcessed.
type RecordProcessedPayload struct {
	Record *schema.Record
	At     time.Time
}

// ConnectionFailedPayload is the immutable snapshot delivered for
// ConnectionFailed.
type ConnectionFailedPayload struct {
	ConnID   string
	PeerAddr string
	Reason   string
	At       time.Time
}

// RecordValidationFailedPayload is the immutable snapshot delivered for
// RecordValidationFailed (spec §7 "validation failures ... surface to the
// handler dispatcher as a dispatched validation-failure event").
type RecordValidationFailedPayload struct {
	RecordType byte
	RawValues  []astm.FieldValue
	Err        error
	At         time.Time
}

// Handler processes one typed record for a given record type (spec §4.8
// "a map record_type_letter -> handler(record, server_ctx)"). record is the
// *schema.Record C6 built for the record's type letter (validated and typed
// when the profile registers that letter, a Raw-only pass-through when it
// doesn't).
type Handler func(record *schema.Record) error

// Observer receives one lifecycle event payload. Emit calls observers
// synchronously, in subscription order, so observers must be non-blocking:
// a slow observer delays the observers after it and the caller of Emit. A
// panicking observer is recovered and never affects the other observers.
type Observer func(name Name, payload any)

// Dispatcher owns the record-type -> handler map and the observer list. Its
// registries are mutated only during an init phase; runtime mutation uses
// copy-on-write so in-flight dispatches see a consistent snapshot (spec §5
// "Shared resources").
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[byte]Handler
	observers []Observer
	logger    *zap.Logger
}

// NewDispatcher builds an empty Dispatcher. logger may be nil, in which
// case a no-op logger is used.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{handlers: make(map[byte]Handler), logger: logger}
}

// RegisterHandler binds a handler to a record-type letter, replacing any
// prior binding. Safe to call concurrently with Dispatch.
func (d *Dispatcher) RegisterHandler(recordType byte, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := make(map[byte]Handler, len(d.handlers)+1)
	for k, v := range d.handlers {
		next[k] = v
	}
	next[recordType] = h
	d.handlers = next
}

// Subscribe appends an observer, copy-on-write (spec §5 "the implementation
// must use a copy-on-write or snapshot discipline so in-flight dispatches
// see a consistent list").
func (d *Dispatcher) Subscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := make([]Observer, len(d.observers)+1)
	copy(next, d.observers)
	next[len(d.observers)] = o
	d.observers = next
}

// Dispatch routes one typed record to its handler, or to a default handler
// (a warning log, not an error) when the record's type has no registered
// handler (spec §4.8 "For an unknown letter, a default handler logs a
// warning and drops the record; this is not an error").
func (d *Dispatcher) Dispatch(record *schema.Record) error {
	if record == nil {
		return nil
	}

	d.mu.RLock()
	h, ok := d.handlers[record.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("no handler registered for record type", zap.String("record_type", string(record.Type)))
		return nil
	}
	return h(record)
}

// Emit fans payload out to every subscribed observer, isolating a panic or
// error in one observer from the rest (spec §4.8 "the dispatcher calls them
// synchronously but isolates exceptions so that one failing observer
// cannot affect others").
func (d *Dispatcher) Emit(name Name, payload any) {
	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()

	for _, o := range observers {
		d.safeCall(o, name, payload)
	}
}

func (d *Dispatcher) safeCall(o Observer, name Name, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", zap.Any("event", name), zap.Any("recover", r))
		}
	}()
	o(name, payload)
}
