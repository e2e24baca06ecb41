// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solidcoredata/astmio/astmserver"
	"github.com/solidcoredata/astmio/config"
	"github.com/solidcoredata/astmio/events"
	"github.com/solidcoredata/astmio/health"
	"github.com/solidcoredata/astmio/internal/start"
	"github.com/solidcoredata/astmio/schema"
)

// registerDefaultHandler binds a record type to a handler that simply logs
// the typed record it received; a deployment wiring real downstream
// processing (a LIS feed, a database insert) replaces this per record type.
func registerDefaultHandler(dispatcher *events.Dispatcher, recordType byte, logger *zap.Logger) {
	dispatcher.RegisterHandler(recordType, func(record *schema.Record) error {
		logger.Info("record dispatched",
			zap.String("record_type", string(record.Type)),
			zap.Any("values", record.Values),
			zap.String("source", record.Source),
		)
		return nil
	})
}

func newServeCmd() *cobra.Command {
	var profilePath, addr string
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run an ASTM server bound to a device profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			p, opts, err := config.Load(profilePath)
			if err != nil {
				return err
			}

			registry, err := schema.GenerateRecordModels(p)
			if err != nil {
				return err
			}

			dispatcher := events.NewDispatcher(logger)
			dispatcher.Subscribe(func(name events.Name, payload any) {
				logger.Info("event", zap.String("name", string(name)), zap.Any("payload", payload))
			})
			for _, recordType := range registry.RecordTypes() {
				registerDefaultHandler(dispatcher, recordType, logger)
			}

			srv, err := astmserver.New(addr, p, registry, dispatcher, opts, logger)
			if err != nil {
				return err
			}

			if healthAddr != "" {
				go serveHealth(cmd.Context(), healthAddr, health.NewServer(srv.ActiveConnections()), logger)
			}

			return start.Start(context.Background(), 5*time.Second, func(ctx context.Context) error {
				return srv.ServeForever(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&profilePath, "profile", "", "path to the device profile YAML file")
	cmd.Flags().StringVar(&addr, "addr", ":4010", "address to listen on")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "optional label that turns on a periodic liveness check, logged every 30s (no listener is opened)")
	cmd.MarkFlagRequired("profile")
	return cmd
}

// serveHealth polls checker every 30 seconds and logs the result at debug
// level, tagged with addr. It opens no listener; addr only appears in the
// log line.
func serveHealth(ctx context.Context, addr string, checker health.Checker, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := checker.Alive(ctx, &health.AliveRequest{})
			if err != nil {
				logger.Warn("health check failed", zap.Error(err))
				continue
			}
			logger.Debug("health", zap.Bool("ok", resp.OK), zap.Int("active_connections", resp.ActiveConnections), zap.String("addr", addr))
		}
	}
}
