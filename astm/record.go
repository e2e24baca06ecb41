// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"bytes"

	"github.com/solidcoredata/astmio/errs"
)

// FieldKind tags the shape of a decoded field value (spec §9 design note:
// "model a record as an ordered vector of tagged values").
type FieldKind uint8

const (
	KindNull FieldKind = iota
	KindText
	KindComponent
	KindRepeat
)

// FieldValue is one decoded ASTM field, component, or repeat element.
// Text is meaningful only when Kind == KindText. Items holds the nested
// component list (KindComponent) or repeat list (KindRepeat); elements of a
// KindRepeat list may themselves be KindComponent.
type FieldValue struct {
	Kind  FieldKind
	Text  string
	Items []FieldValue
}

func Null() FieldValue                 { return FieldValue{Kind: KindNull} }
func Text(s string) FieldValue         { return FieldValue{Kind: KindText, Text: s} }
func Component(items ...FieldValue) FieldValue {
	return FieldValue{Kind: KindComponent, Items: items}
}
func Repeat(items ...FieldValue) FieldValue {
	return FieldValue{Kind: KindRepeat, Items: items}
}

// IsNull reports whether v is the null field value.
func (v FieldValue) IsNull() bool { return v.Kind == KindNull }

// escapeLetterOf maps a raw separator byte to its escape-sequence letter.
func escapeLetterOf(b byte) (letter byte, ok bool) {
	switch b {
	case FieldSep:
		return 'F', true
	case ComponentSep:
		return 'S', true
	case RepeatSep:
		return 'R', true
	case EscapeChar:
		return 'E', true
	default:
		return 0, false
	}
}

// escapeByteOf maps an escape-sequence letter back to its raw byte.
func escapeByteOf(letter byte) (b byte, ok bool) {
	switch letter {
	case 'F':
		return FieldSep, true
	case 'S':
		return ComponentSep, true
	case 'R':
		return RepeatSep, true
	case 'E':
		return EscapeChar, true
	default:
		return 0, false
	}
}

// escapeField re-encodes raw text, replacing each literal occurrence of a
// field/component/repeat separator or the escape character itself with its
// \X\ sequence. A single left-to-right scan avoids the ordering hazard of
// successive string replacement (spec §9 design note).
func escapeField(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if letter, ok := escapeLetterOf(b); ok {
			out = append(out, RepeatSep, letter, RepeatSep)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unescapeField reverses escapeField: a single left-to-right scan that
// recognizes \X\ sequences (backslash, one of F/S/R/E, backslash) and
// substitutes the separator byte they denote. Any other backslash is left
// untouched — it is a literal repeat separator, interpreted by the caller.
func unescapeField(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); {
		if raw[i] == RepeatSep && i+2 < len(raw) && raw[i+2] == RepeatSep {
			if b, ok := escapeByteOf(raw[i+1]); ok {
				out = append(out, b)
				i += 3
				continue
			}
		}
		out = append(out, raw[i])
		i++
	}
	return out
}

// DecodeRecord splits one record's bytes (no trailing CR) into its field
// values (spec §4.2 "Decode"). recordType is the record's own type letter,
// taken from the first field.
func DecodeRecord(data []byte) ([]FieldValue, error) {
	if len(data) == 0 {
		return nil, errs.NewValidationError("record", 0, "empty record")
	}

	cells := bytes.Split(data, []byte{FieldSep})
	recordType := recordTypeOf(cells[0])

	fields := make([]FieldValue, len(cells))
	for i, cell := range cells {
		position := i + 1 // 1-based ASTM position
		fields[i] = decodeField(cell, recordType, position)
	}
	return fields, nil
}

func recordTypeOf(firstCell []byte) byte {
	if len(firstCell) == 0 {
		return 0
	}
	return firstCell[len(firstCell)-1]
}

func decodeField(cell []byte, recordType byte, position int) FieldValue {
	if len(cell) == 0 {
		return Null()
	}

	// Header record's delimiter field is a literal string: it declares the
	// delimiters, so it is never itself sub-split or unescaped.
	if recordType == 'H' && position == 2 {
		return Text(string(cell))
	}

	// Comment record's text field is a literal string, escapes honored.
	if recordType == 'C' && position == 4 {
		return Text(string(unescapeField(cell)))
	}

	unescaped := unescapeField(cell)
	switch {
	case bytes.IndexByte(unescaped, RepeatSep) >= 0:
		return decodeRepeats(unescaped)
	case bytes.IndexByte(unescaped, ComponentSep) >= 0:
		return decodeComponents(unescaped)
	default:
		return Text(string(unescaped))
	}
}

func decodeComponents(unescaped []byte) FieldValue {
	parts := bytes.Split(unescaped, []byte{ComponentSep})
	items := make([]FieldValue, len(parts))
	for i, p := range parts {
		if len(p) == 0 {
			items[i] = Null()
		} else {
			items[i] = Text(string(p))
		}
	}
	return Component(items...)
}

func decodeRepeats(unescaped []byte) FieldValue {
	parts := bytes.Split(unescaped, []byte{RepeatSep})
	items := make([]FieldValue, len(parts))
	for i, p := range parts {
		if len(p) == 0 {
			items[i] = Null()
		} else if bytes.IndexByte(p, ComponentSep) >= 0 {
			items[i] = decodeComponents(p)
		} else {
			items[i] = Text(string(p))
		}
	}
	return Repeat(items...)
}

// EncodeRecord is the inverse of DecodeRecord: it renders fields back into
// one record's bytes, joined by the field separator (spec §4.2 "Encode").
// recordType selects the H/C literal-field exceptions exactly as decoding
// does.
func EncodeRecord(fields []FieldValue, recordType byte) []byte {
	cells := make([][]byte, len(fields))
	for i, f := range fields {
		position := i + 1
		cells[i] = encodeField(f, recordType, position)
	}
	return bytes.Join(cells, []byte{FieldSep})
}

func encodeField(f FieldValue, recordType byte, position int) []byte {
	if f.IsNull() {
		return nil
	}

	if recordType == 'H' && position == 2 {
		return []byte(f.Text)
	}
	if recordType == 'C' && position == 4 {
		return escapeField([]byte(f.Text))
	}

	switch f.Kind {
	case KindText:
		return escapeField([]byte(f.Text))
	case KindComponent:
		parts := make([][]byte, len(f.Items))
		for i, it := range f.Items {
			parts[i] = encodeComponentElement(it)
		}
		return bytes.Join(parts, []byte{ComponentSep})
	case KindRepeat:
		parts := make([][]byte, len(f.Items))
		for i, it := range f.Items {
			parts[i] = encodeRepeatElement(it)
		}
		return bytes.Join(parts, []byte{RepeatSep})
	default:
		return nil
	}
}

func encodeComponentElement(f FieldValue) []byte {
	if f.IsNull() {
		return nil
	}
	return escapeField([]byte(f.Text))
}

func encodeRepeatElement(f FieldValue) []byte {
	if f.IsNull() {
		return nil
	}
	if f.Kind == KindComponent {
		parts := make([][]byte, len(f.Items))
		for i, it := range f.Items {
			parts[i] = encodeComponentElement(it)
		}
		return bytes.Join(parts, []byte{ComponentSep})
	}
	return escapeField([]byte(f.Text))
}
