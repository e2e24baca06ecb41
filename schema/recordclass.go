// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schema is the dynamic record factory (spec §4.4 "Device profile &
// dynamic record factory"). It walks a profile.RecordConfig once to build a
// RecordClass — a compiled set of field validators plus the position/name
// maps — and uses it to parse a positional astm.FieldValue list into a
// typed Record, or to serialize a Record back to positional form.
//
// This replaces the original implementation's runtime class generation
// (spec §9 design note: "model a record as an ordered vector of tagged
// values ... plus a RecordClass value that owns the compiled validators").
package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/profile"
)

// Record is a runtime instance of a record type: a name -> value map plus
// the audit timestamps and source tag spec §3 "Record instance" requires.
//
// Value shapes per field type: constant/string/enum -> string; integer ->
// int64; decimal -> decimal.Decimal; datetime -> time.Time; component ->
// *Record; repeated -> []any of the element shape; null -> nil.
//
// Raw holds the positional astm.FieldValue list the record was parsed from
// (or will be serialized to for a record type with no compiled
// RecordClass); it lets a handler or observer fall back to the wire shape
// without redecoding.
type Record struct {
	Type      byte
	Values    map[string]any
	Raw       []astm.FieldValue
	CreatedAt time.Time
	UpdatedAt time.Time
	Source    string
}

// Get returns the named field's value, or nil if unset/null.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.Values[name]
}

// Set assigns the named field's value and bumps UpdatedAt (spec §3
// "Lifecycle": "immutable to the protocol but may be mutated by the owner
// before being passed to the encoder (updates bump updated_at)").
func (r *Record) Set(name string, value any) {
	r.Values[name] = value
	r.UpdatedAt = nowFunc()
}

// nowFunc is indirected so tests can hold time constant if needed.
var nowFunc = time.Now

// RecordClass is the compiled, cached validator/mapper for one record
// type's field list (spec §4.4 "generate_record_models").
type RecordClass struct {
	RecordType  byte
	Fields      []profile.FieldDef
	maxPosition int
	posToName   map[int]string
	nameToPos   map[string]int
	byName      map[string]profile.FieldDef
	required    []string
	nested      map[string]*RecordClass // component fields, by name
}

// NewRecordClass compiles a RecordClass from a record's field list. It is
// meant to be called once per distinct schema and cached by the caller
// (package profile's ClassKey, or a schema.Registry) — see
// GenerateRecordModels.
func NewRecordClass(recordType byte, cfg profile.RecordConfig) (*RecordClass, error) {
	rc := &RecordClass{
		RecordType: recordType,
		Fields:     cfg.Fields,
		posToName:  make(map[int]string, len(cfg.Fields)),
		nameToPos:  make(map[string]int, len(cfg.Fields)),
		byName:     make(map[string]profile.FieldDef, len(cfg.Fields)),
		nested:     make(map[string]*RecordClass),
	}
	for _, f := range cfg.Fields {
		rc.posToName[f.Position] = f.Name
		rc.nameToPos[f.Name] = f.Position
		rc.byName[f.Name] = f
		if f.Position > rc.maxPosition {
			rc.maxPosition = f.Position
		}
		if f.Required {
			rc.required = append(rc.required, f.Name)
		}
		if f.Type == profile.TypeComponent {
			nestedClass, err := NewRecordClass(recordType, profile.RecordConfig{Fields: f.Component})
			if err != nil {
				return nil, err
			}
			rc.nested[f.Name] = nestedClass
		}
	}
	return rc, nil
}

// Parse maps a positional astm.FieldValue list into a typed Record (spec
// §4.4 "Parse contract"). Index i holds 1-based position i+1. topLevel is
// true for a record's own field list and false for the nested positional
// list of a component field; Parse treats both alike. In a record's own
// list, position 1 is the record-type letter: a field the profile declares
// there (typically a constant) validates it, and it is ignored when no
// field is declared at position 1.
func (rc *RecordClass) Parse(positional []astm.FieldValue, topLevel bool) (*Record, error) {
	now := nowFunc()
	rec := &Record{Type: rc.RecordType, Values: make(map[string]any, len(rc.Fields)), Raw: positional, CreatedAt: now, UpdatedAt: now}

	for idx, v := range positional {
		position := idx + 1
		name, ok := rc.posToName[position]
		if !ok {
			continue // forward compatibility: unknown position is ignored
		}
		fd := rc.byName[name]
		if fd.Type == profile.TypeIgnored {
			continue
		}
		if v.IsNull() {
			rec.Values[name] = nil
			continue
		}

		value, err := rc.parseFieldValue(fd, v)
		if err != nil {
			return nil, err
		}
		rec.Values[name] = value
	}

	for _, name := range rc.required {
		if rec.Values[name] == nil {
			fd := rc.byName[name]
			return nil, errs.NewValidationError(name, fd.Position, "required field is missing")
		}
	}
	return rec, nil
}

func (rc *RecordClass) parseFieldValue(fd profile.FieldDef, v astm.FieldValue) (any, error) {
	if fd.Repeated {
		var elems []astm.FieldValue
		if v.Kind == astm.KindRepeat {
			elems = v.Items
		} else {
			elems = []astm.FieldValue{v}
		}
		out := make([]any, 0, len(elems))
		for _, e := range elems {
			if e.IsNull() {
				out = append(out, nil)
				continue
			}
			val, err := rc.coerceScalar(fd, e)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return rc.coerceScalar(fd, v)
}

func (rc *RecordClass) coerceScalar(fd profile.FieldDef, v astm.FieldValue) (any, error) {
	if fd.Type == profile.TypeComponent {
		if v.Kind != astm.KindComponent {
			return nil, errs.NewValidationError(fd.Name, fd.Position, "expected a component value")
		}
		nestedClass := rc.nested[fd.Name]
		nestedRec, err := nestedClass.Parse(v.Items, false)
		if err != nil {
			return nil, err
		}
		return nestedRec, nil
	}

	text, err := atomicText(fd, v)
	if err != nil {
		return nil, err
	}

	switch fd.Type {
	case profile.TypeConstant:
		if text != fd.Default {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("constant field must equal %q, got %q", fd.Default, text))
		}
		return text, nil
	case profile.TypeString:
		if fd.MaxLength > 0 && runeLen(text) > fd.MaxLength {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("value length %d exceeds max_length %d", runeLen(text), fd.MaxLength))
		}
		return text, nil
	case profile.TypeInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("not a valid integer: %q", text))
		}
		if fd.MaxLength > 0 && digitCount(n) > fd.MaxLength {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("integer %d exceeds max_length %d digits", n, fd.MaxLength))
		}
		return n, nil
	case profile.TypeDecimal:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("not a valid decimal: %q", text))
		}
		return d, nil
	case profile.TypeEnum:
		for _, allowed := range fd.Values {
			if allowed == text {
				return text, nil
			}
		}
		return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("value %q is not one of %v", text, fd.Values))
	case profile.TypeDatetime:
		layout := strptimeToGoLayout(fd.Format)
		t, err := time.Parse(layout, text)
		if err != nil {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("does not match format %q: %q", fd.Format, text))
		}
		if fd.MaxLength > 0 && runeLen(text) != fd.MaxLength {
			return nil, errs.NewValidationError(fd.Name, fd.Position, fmt.Sprintf("datetime text length %d does not equal max_length %d", runeLen(text), fd.MaxLength))
		}
		return t, nil
	default:
		return text, nil
	}
}

func atomicText(fd profile.FieldDef, v astm.FieldValue) (string, error) {
	if v.Kind != astm.KindText {
		return "", errs.NewValidationError(fd.Name, fd.Position, "expected an atomic text value")
	}
	return v.Text, nil
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func digitCount(n int64) int {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return 1
	}
	count := 0
	for n > 0 {
		count++
		n /= 10
	}
	return count
}

// Serialize is the inverse of Parse (spec §4.4 "Serialize contract"). It
// produces a positional astm.FieldValue list sized to the class's maximum
// declared position, with position p at index p-1. For a top-level class,
// index 0 is first set to the record-type letter; a field declared at
// position 1 then writes its own value there.
func (rc *RecordClass) Serialize(rec *Record, topLevel bool) []astm.FieldValue {
	size := rc.maxPosition
	if topLevel && size < 1 {
		size = 1
	}
	out := make([]astm.FieldValue, size)
	for i := range out {
		out[i] = astm.Null()
	}
	if topLevel {
		out[0] = astm.Text(string(rc.RecordType))
	}

	for _, fd := range rc.Fields {
		if fd.Position < 1 || fd.Position > rc.maxPosition {
			continue
		}
		idx := fd.Position - 1
		value := rec.Values[fd.Name]
		out[idx] = rc.serializeFieldValue(fd, value)
	}
	return out
}

func (rc *RecordClass) serializeFieldValue(fd profile.FieldDef, value any) astm.FieldValue {
	if value == nil {
		return astm.Null()
	}
	if fd.Repeated {
		list, ok := value.([]any)
		if !ok {
			return astm.Null()
		}
		items := make([]astm.FieldValue, len(list))
		for i, elem := range list {
			items[i] = rc.serializeScalar(fd, elem)
		}
		return astm.Repeat(items...)
	}
	return rc.serializeScalar(fd, value)
}

func (rc *RecordClass) serializeScalar(fd profile.FieldDef, value any) astm.FieldValue {
	if value == nil {
		return astm.Null()
	}
	if fd.Type == profile.TypeComponent {
		nestedRec, ok := value.(*Record)
		if !ok {
			return astm.Null()
		}
		nestedClass := rc.nested[fd.Name]
		return astm.Component(nestedClass.Serialize(nestedRec, false)...)
	}

	switch fd.Type {
	case profile.TypeConstant, profile.TypeString, profile.TypeEnum:
		return astm.Text(value.(string))
	case profile.TypeInteger:
		return astm.Text(strconv.FormatInt(value.(int64), 10))
	case profile.TypeDecimal:
		d := value.(decimal.Decimal)
		return astm.Text(d.StringFixed(-d.Exponent()))
	case profile.TypeDatetime:
		layout := strptimeToGoLayout(fd.Format)
		return astm.Text(value.(time.Time).Format(layout))
	case profile.TypeIgnored:
		return astm.Null()
	default:
		return astm.Null()
	}
}
