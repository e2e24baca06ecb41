// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package astm implements the ASTM E1394 clinical-laboratory wire protocol:
// control bytes and checksums, the STX-framed frame codec, the record/field
// codec (component, repeat, and escape sub-delimiters), and the
// chunked-message assembler/splitter. It is the innermost layer of astmio;
// nothing in this package knows about device profiles, TCP, or the
// ENQ/ACK/EOT link discipline — see packages schema and link for those.
//
/*

Framing (bit-exact):

	STX seq body (ETX | ETB) hex hex CR LF

	seq   one ASCII digit '0'-'7', the frame sequence number mod 8.
	body  raw bytes of this frame's share of the logical message; in the
	      last frame it ends in the CR that separates the final record, so
	      that frame shows CR ETX on the wire.
	term  one byte: ETX if this is the last (or only) frame, else ETB.
	hex   two uppercase ASCII hex digits: Checksum(seq . body . term).
	CR LF trailing carriage return + line feed, always present.

Record-on-the-wire:

	type '|' f2 '|' f3 '|' ...

	Fields are '|'-separated. Within a field, repeats are '\'-separated and
	components are '^'-separated; a repeat may itself contain components.
	Literal occurrences of a separator character (or of the escape character
	itself) inside field text are escaped as one of:

		\F\  ->  |  (field separator)
		\S\  ->  ^  (component separator)
		\R\  ->  \  (repeat separator)
		\E\  ->  &  (escape character)

	Two positions are exempt from sub-splitting and are always treated as a
	literal string: the Header record's delimiter field (position 2, which
	declares the delimiters themselves; kept exactly as written, escapes not
	processed) and a Comment record's text field (position 4; escapes
	honored).

Message reassembly: concatenate the bodies of every ETB-terminated frame, in
sequence order, then append the body of the final ETX-terminated frame. The
CR immediately preceding that frame's ETX is part of the body (it is the
record separator for the message's last record).

*/
package astm
