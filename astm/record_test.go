// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTripS1(t *testing.T) {
	fields := []FieldValue{
		Text("H"),
		Text("\\^&"),
		Null(),
		Text("PSWD"),
		Text("Maglumi User"),
		Null(), Null(), Null(), Null(),
		Text("Lis"),
		Null(),
		Text("P"),
		Text("E1394-97"),
		Text("20250701"),
	}

	encoded := EncodeRecord(fields, 'H')
	assert.Equal(t, "H|\\^&||PSWD|Maglumi User|||||Lis||P|E1394-97|20250701", string(encoded))

	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}

func TestRecordRepeatsS2(t *testing.T) {
	fields := []FieldValue{
		Text("O"),
		Text("1"),
		Text("25059232"),
		Null(),
		Repeat(
			Component(Null(), Null(), Null(), Text("TT3 II")),
			Component(Null(), Null(), Null(), Text("TT4 II")),
			Component(Null(), Null(), Null(), Text("TSH II")),
		),
	}

	encoded := EncodeRecord(fields, 'O')
	assert.Equal(t, "O|1|25059232|^^^TT3 II\\^^^TT4 II\\^^^TSH II", string(encoded))

	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}

func TestEscapeRoundTripFieldSeparator(t *testing.T) {
	// Literal '|' and '&' round-trip safely: field-level splitting happens
	// once, before unescaping, so a literal '|' introduced by unescaping
	// cannot be mistaken for a later field boundary.
	fields := []FieldValue{Text("C"), Text("1"), Text("I"), Text("contains | and & chars")}
	encoded := EncodeRecord(fields, 'C')
	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}

func TestHeaderDelimiterFieldIsLiteral(t *testing.T) {
	fields := []FieldValue{Text("H"), Text("\\^&")}
	encoded := EncodeRecord(fields, 'H')
	assert.Equal(t, "H|\\^&", string(encoded))
	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}

func TestNullFieldsRoundTrip(t *testing.T) {
	fields := []FieldValue{Text("L"), Null(), Text("N")}
	encoded := EncodeRecord(fields, 'L')
	assert.Equal(t, "L||N", string(encoded))
	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}
