// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package health is the optional liveness surface a running Server can
// expose (spec §4.6 "optional health endpoint"), adapted from the
// teacher's minimal rpc.ConfigService.Alive contract.
package health

import (
	"context"
	"sync/atomic"
)

// Checker reports liveness together with the live connection count.
// Server's Alive always reports OK; it does not probe the listener.
type Checker interface {
	Alive(ctx context.Context, req *AliveRequest) (*AliveResponse, error)
}

// AliveRequest is presently empty; it exists so the contract can grow
// fields (a specific device ID, say) without an incompatible signature
// change.
type AliveRequest struct{}

// AliveResponse reports the live connection count alongside the ok bit.
type AliveResponse struct {
	OK               bool
	ActiveConnections int
}

// Server implements Checker against a running astmserver.Server's active
// connection counter.
type Server struct {
	active *int64
}

// NewServer wraps an active-connection counter that an astmserver.Server
// maintains atomically.
func NewServer(active *int64) *Server {
	return &Server{active: active}
}

func (s *Server) Alive(ctx context.Context, req *AliveRequest) (*AliveResponse, error) {
	return &AliveResponse{OK: true, ActiveConnections: int(atomic.LoadInt64(s.active))}, nil
}
