// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport is the ambient byte-stream abstraction the link layer
// drives (spec §4.5 "driven by a transport interface that exposes byte read
// with per-read deadline and byte write with drain", §6 "core public API
// surface").
package transport

import (
	"context"
	"net"
	"time"

	"github.com/solidcoredata/astmio/errs"
)

// ByteStream is the minimal surface the link state machine needs: deadlined
// reads and writes plus a close. Implementations must make Close safe to
// call more than once and safe to call concurrently with a blocked Read or
// Write (spec §5 "Cancellation and timeouts").
type ByteStream interface {
	// ReadByte blocks until one byte arrives or deadline elapses.
	ReadByte(deadline time.Time) (byte, error)
	// Write writes all of p, honoring deadline for the whole call.
	Write(p []byte, deadline time.Time) error
	// RemoteAddr identifies the peer for logging and lifecycle events.
	RemoteAddr() string
	Close() error
}

// TCPStream adapts a net.Conn to ByteStream.
type TCPStream struct {
	conn net.Conn
}

// NewTCPStream wraps an already-connected net.Conn.
func NewTCPStream(conn net.Conn) *TCPStream {
	return &TCPStream{conn: conn}
}

// DialTCP connects to addr, failing if the handshake does not complete
// before ctx's deadline (spec §4.7 "connect deadline, default 3s").
func DialTCP(ctx context.Context, addr string) (*TCPStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.WrapConnectionError(addr, "dial failed", err)
	}
	return &TCPStream{conn: conn}, nil
}

func (s *TCPStream) ReadByte(deadline time.Time) (byte, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, errs.WrapConnectionError(s.RemoteAddr(), "set read deadline", err)
	}
	var buf [1]byte
	_, err := s.conn.Read(buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, errs.NewTimeoutError("read")
		}
		return 0, errs.WrapConnectionError(s.RemoteAddr(), "read failed", err)
	}
	return buf[0], nil
}

func (s *TCPStream) Write(p []byte, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return errs.WrapConnectionError(s.RemoteAddr(), "set write deadline", err)
	}
	_, err := s.conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errs.NewTimeoutError("write")
		}
		return errs.WrapConnectionError(s.RemoteAddr(), "write failed", err)
	}
	return nil
}

func (s *TCPStream) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

func (s *TCPStream) Close() error {
	return s.conn.Close()
}
