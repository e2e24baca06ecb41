// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package astmserver is the server-side connection handler (spec §4.6
// "Server connection handler (C8)"). One Server accepts many connections;
// each connection runs its own link.ReceiveLoop confined to its own
// goroutine, sharing only the immutable profile.Profile, the compiled
// schema.Registry, and the events.Dispatcher (spec §5 "Shared resources").
package astmserver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/config"
	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/events"
	"github.com/solidcoredata/astmio/link"
	"github.com/solidcoredata/astmio/profile"
	"github.com/solidcoredata/astmio/schema"
	"github.com/solidcoredata/astmio/transport"
)

// Server listens for connections, enforces the connection and per-handler
// deadlines, and drives a link.ReceiveLoop per accepted stream (spec
// §4.6).
type Server struct {
	Profile    *profile.Profile
	Registry   *schema.Registry
	Dispatcher *events.Dispatcher
	Options    config.Options
	Logger     *zap.Logger

	listener net.Listener
	active   int64
	wg       sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Server bound to addr but does not yet accept connections
// (call ServeForever or ServeFor to run it).
func New(addr string, p *profile.Profile, reg *schema.Registry, dispatcher *events.Dispatcher, opts config.Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.WrapConnectionError(addr, "listen failed", err)
	}
	return &Server{
		Profile:    p,
		Registry:   reg,
		Dispatcher: dispatcher,
		Options:    opts,
		Logger:     logger,
		listener:   ln,
		closed:     make(chan struct{}),
	}, nil
}

// ActiveConnections exposes the live counter by pointer for health.NewServer.
func (s *Server) ActiveConnections() *int64 { return &s.active }

// Addr returns the address the listener is actually bound to, useful when
// Server was constructed with a ":0" wildcard port.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// ServeForever accepts connections until ctx is cancelled or Close is
// called (spec §6 "Server(...).serve_forever()").
func (s *Server) ServeForever(ctx context.Context) error {
	return s.serve(ctx, 0)
}

// ServeFor accepts connections for at most duration before shutting down
// gracefully (spec §6 "Server(...).serve_for(duration)").
func (s *Server) ServeFor(ctx context.Context, duration time.Duration) error {
	return s.serve(ctx, duration)
}

func (s *Server) serve(ctx context.Context, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if duration > 0 {
		go func() {
			select {
			case <-time.After(duration):
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return errs.WrapConnectionError("", "accept failed", err)
			}
		}

		if int(atomic.LoadInt64(&s.active)) >= s.maxConnections() {
			// Global max_connections exceeded: accept and immediately
			// close (spec §4.6 "excess connections are accepted and
			// immediately closed").
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		atomic.AddInt64(&s.active, 1)
		go func() {
			defer s.wg.Done()
			defer atomic.AddInt64(&s.active, -1)
			s.handleConnection(ctx, transport.NewTCPStream(conn))
		}()
	}
}

func (s *Server) maxConnections() int {
	if s.Options.MaxConnections <= 0 {
		return 100
	}
	return s.Options.MaxConnections
}

func (s *Server) handleConnection(ctx context.Context, stream transport.ByteStream) {
	connID := uuid.NewString()
	peer := stream.RemoteAddr()
	s.Dispatcher.Emit(events.ConnectionEstablished, events.ConnectionEstablishedPayload{ConnID: connID, PeerAddr: peer, At: time.Now()})
	defer stream.Close()

	readTimeout := time.Duration(s.Options.ReadTimeoutMS) * time.Millisecond
	if readTimeout <= 0 {
		readTimeout = 20 * time.Second
	}

	err := link.ReceiveLoop(ctx, stream, link.ReceiverOptions{ReadTimeout: readTimeout}, func(message []byte) error {
		return s.deliver(connID, message)
	})
	if err != nil && ctx.Err() == nil {
		reason := "timeout"
		if _, ok := err.(*errs.TimeoutError); !ok {
			reason = err.Error()
		}
		s.Dispatcher.Emit(events.ConnectionFailed, events.ConnectionFailedPayload{ConnID: connID, PeerAddr: peer, Reason: reason, At: time.Now()})
	}
}

// deliver decodes one reassembled message and dispatches each record,
// bounding dispatch with the per-handler deadline (spec §4.6 "Per-handler
// deadline (default 5s) when dispatching records").
func (s *Server) deliver(connID string, message []byte) error {
	records, err := astm.Decode(message, true)
	if err != nil {
		s.Logger.Warn("dropping unparseable message", zap.Error(err))
		return err
	}

	handlerTimeout := time.Duration(s.Options.HandlerTimeoutMS) * time.Millisecond
	if handlerTimeout <= 0 {
		handlerTimeout = 5 * time.Second
	}

	for _, positional := range records {
		s.dispatchOne(connID, positional, handlerTimeout)
	}
	return nil
}

// dispatchOne builds the typed schema.Record C6 produces for positional and
// carries it, not the raw positional list, through validation, dispatch,
// and the record_processed event (spec §1 C6 -> C10 dispatch flow).
func (s *Server) dispatchOne(connID string, positional []astm.FieldValue, handlerTimeout time.Duration) {
	if len(positional) == 0 || positional[0].Kind != astm.KindText || len(positional[0].Text) == 0 {
		return
	}
	recordType := positional[0].Text[0]

	rec, err := s.Registry.BuildRecord(positional, true)
	if err != nil {
		s.Dispatcher.Emit(events.RecordValidationFailed, events.RecordValidationFailedPayload{
			RecordType: recordType,
			RawValues:  positional,
			Err:        err,
			At:         time.Now(),
		})
		return
	}
	rec.Source = connID

	done := make(chan error, 1)
	go func() { done <- s.Dispatcher.Dispatch(rec) }()

	select {
	case err := <-done:
		if err != nil {
			s.Logger.Warn("handler returned error", zap.Error(err))
			return
		}
		s.Dispatcher.Emit(events.RecordProcessed, events.RecordProcessedPayload{Record: rec, At: time.Now()})
	case <-time.After(handlerTimeout):
		s.Logger.Warn("handler deadline exceeded", zap.ByteString("record_type", []byte{recordType}))
	}
}

// Close stops accepting new connections and waits up to 2s for
// outstanding per-connection handlers to finish (spec §5 "Graceful
// shutdown ... waits up to 2s for cleanup").
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()
		close(s.closed)
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return err
}
