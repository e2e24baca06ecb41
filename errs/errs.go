// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs defines the closed error taxonomy shared by every astmio
// package: framing and checksum faults from the codec, schema violations
// from the record factory, and transport faults from the link layer.
//
// Every type here implements error; all but NotAccepted and Rejected wrap an
// optional cause exposed through Unwrap for errors.Is/errors.As.
package errs

import "fmt"

// ProtocolError reports a framing, terminator, sequence, or oversize-message
// violation (ASTM E1394 link layer, spec §4.1/§4.3).
type ProtocolError struct {
	Msg   string
	Cause error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("astmio: protocol error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("astmio: protocol error: %s", e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func NewProtocolError(msg string) *ProtocolError { return &ProtocolError{Msg: msg} }

func WrapProtocolError(msg string, cause error) *ProtocolError {
	return &ProtocolError{Msg: msg, Cause: cause}
}

// ChecksumError is a ProtocolError subtype: the recomputed frame checksum
// did not match the trailing two hex digits.
type ChecksumError struct {
	ProtocolError
	Expected   string
	Calculated string
	Frame      []byte
}

func NewChecksumError(expected, calculated string, frame []byte) *ChecksumError {
	return &ChecksumError{
		ProtocolError: ProtocolError{Msg: fmt.Sprintf("checksum mismatch: expected %s, calculated %s", expected, calculated)},
		Expected:      expected,
		Calculated:    calculated,
		Frame:         frame,
	}
}

// ValidationError reports a profile-schema violation at parse or serialize
// time (spec §4.4, §7).
type ValidationError struct {
	Field    string
	Position int
	Reason   string
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("astmio: validation error: field %q (position %d): %s", e.Field, e.Position, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func NewValidationError(field string, position int, reason string) *ValidationError {
	return &ValidationError{Field: field, Position: position, Reason: reason}
}

// ConfigurationError reports a malformed profile at load time.
type ConfigurationError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("astmio: configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("astmio: configuration error: %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func NewConfigurationError(key, reason string) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: reason}
}

// ConnectionError reports a transport fault.
type ConnectionError struct {
	Addr  string
	Msg   string
	Cause error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("astmio: connection error (%s): %s: %v", e.Addr, e.Msg, e.Cause)
	}
	return fmt.Sprintf("astmio: connection error (%s): %s", e.Addr, e.Msg)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func WrapConnectionError(addr, msg string, cause error) *ConnectionError {
	return &ConnectionError{Addr: addr, Msg: msg, Cause: cause}
}

// TimeoutError reports a deadline expiring on a read, write, or dispatch.
type TimeoutError struct {
	Operation string
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("astmio: timeout during %s", e.Operation)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{Operation: operation}
}

// NotAccepted reports that a peer rejected establishment or transfer
// repeatedly (consecutive NAKs exhausted). An establishment timeout is
// reported as a TimeoutError instead.
type NotAccepted struct {
	Attempts int
	Reason   string
}

func (e *NotAccepted) Error() string {
	return fmt.Sprintf("astmio: not accepted after %d attempts: %s", e.Attempts, e.Reason)
}

func NewNotAccepted(attempts int, reason string) *NotAccepted {
	return &NotAccepted{Attempts: attempts, Reason: reason}
}

// Rejected is the sender-side analogue of NotAccepted: the session was
// terminated by the peer instead of completing with EOT.
type Rejected struct {
	Attempts     int
	LastResponse string
}

func (e *Rejected) Error() string {
	return fmt.Sprintf("astmio: rejected after %d attempts (last response %s)", e.Attempts, e.LastResponse)
}

func NewRejected(attempts int, lastResponse string) *Rejected {
	return &Rejected{Attempts: attempts, LastResponse: lastResponse}
}
