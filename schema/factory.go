// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"sync"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/profile"
)

// Registry caches one compiled RecordClass per record type, built once from
// a Profile (spec §4.4 "generate_record_models(profile) -> registry of
// record classes, generated once at startup and reused for the life of the
// connection"). It is safe for concurrent read access from multiple
// connection handlers.
type Registry struct {
	mu      sync.RWMutex
	classes map[byte]*RecordClass
}

// GenerateRecordModels walks every record type a profile declares and
// compiles a RecordClass for it, returning the ready-to-use Registry.
func GenerateRecordModels(p *profile.Profile) (*Registry, error) {
	reg := &Registry{classes: make(map[byte]*RecordClass, len(p.Records))}
	for recordType, cfg := range p.Records {
		rc, err := NewRecordClass(recordType, cfg)
		if err != nil {
			return nil, fmt.Errorf("record type %q: %w", string(recordType), err)
		}
		reg.classes[recordType] = rc
	}
	return reg, nil
}

// ClassFor returns the compiled RecordClass for a record type, or false if
// the profile declared no field list for it (spec §4.4 "unknown record
// type": the caller decides whether that is an error or a pass-through).
func (reg *Registry) ClassFor(recordType byte) (*RecordClass, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rc, ok := reg.classes[recordType]
	return rc, ok
}

// BuildRecord parses positional into a typed Record using the registered
// RecordClass for its leading type letter. When the profile declares no
// class for that letter, it falls back to an unvalidated Record carrying
// only Type and Raw, so every record the handler dispatch sees is a
// *Record, registered or not (spec §4.4 unknown record type: pass-through).
func (reg *Registry) BuildRecord(positional []astm.FieldValue, topLevel bool) (*Record, error) {
	if len(positional) == 0 || positional[0].Kind != astm.KindText || len(positional[0].Text) == 0 {
		return nil, errs.NewValidationError("record_type", 1, "record has no type letter")
	}
	recordType := positional[0].Text[0]

	if rc, ok := reg.ClassFor(recordType); ok {
		return rc.Parse(positional, topLevel)
	}

	now := nowFunc()
	return &Record{Type: recordType, Raw: positional, CreatedAt: now, UpdatedAt: now}, nil
}

// SerializeRecord is the inverse of BuildRecord: it renders rec back to
// positional form using its registered RecordClass, or its captured Raw
// fields when the profile declares no class for rec.Type.
func (reg *Registry) SerializeRecord(rec *Record, topLevel bool) ([]astm.FieldValue, error) {
	if rc, ok := reg.ClassFor(rec.Type); ok {
		return rc.Serialize(rec, topLevel), nil
	}
	if rec.Raw != nil {
		return rec.Raw, nil
	}
	return nil, errs.NewValidationError("record_type", 1, fmt.Sprintf("no record class registered for type %q and no raw fallback", string(rec.Type)))
}

// RecordTypes returns the registry's known record-type letters.
func (reg *Registry) RecordTypes() []byte {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]byte, 0, len(reg.classes))
	for t := range reg.classes {
		out = append(out, t)
	}
	return out
}
