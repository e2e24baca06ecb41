// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solidcoredata/astmio/astm"
	"github.com/solidcoredata/astmio/astmclient"
	"github.com/solidcoredata/astmio/config"
	"github.com/solidcoredata/astmio/schema"
)

func newSendCmd() *cobra.Command {
	var addr, file, profilePath string
	var chunkSize int
	var keepalive bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "send ASTM records (one pipe-delimited record per line) to a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := config.Load(profilePath)
			if err != nil {
				return err
			}
			registry, err := schema.GenerateRecordModels(p)
			if err != nil {
				return err
			}

			records, err := readRecords(file, registry)
			if err != nil {
				return err
			}

			client := astmclient.New(astmclient.Options{
				Addr:       addr,
				ChunkSize:  chunkSize,
				Keepalive:  keepalive,
				AckTimeout: 15 * time.Second,
				Registry:   registry,
			})
			defer client.Close()

			ok, err := client.SendRecords(context.Background(), records)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("send_records: session did not complete")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:4010", "server address to connect to")
	cmd.Flags().StringVar(&file, "file", "", "path to a file of pipe-delimited records, one per line (- for stdin)")
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to the device profile YAML file, used to build typed records")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "frame chunk size in bytes (0 = unchunked)")
	cmd.Flags().BoolVar(&keepalive, "keepalive", false, "keep the connection open for a future send")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("profile")
	return cmd
}

// readRecords decodes one positional record per line and builds it into the
// typed schema.Record its record-type letter's RecordClass declares (spec
// §4.7 "send_records" takes the same typed records C6 produces), falling
// back to the raw positional fields for a letter the profile doesn't
// declare.
func readRecords(path string, registry *schema.Registry) ([]schema.Record, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}

	var records []schema.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		positional, err := astm.DecodeRecord([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		rec, err := registry.BuildRecord(positional, true)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		records = append(records, *rec)
	}
	return records, scanner.Err()
}
