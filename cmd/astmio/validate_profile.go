// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solidcoredata/astmio/config"
	"github.com/solidcoredata/astmio/schema"
)

func newValidateProfileCmd() *cobra.Command {
	var profilePath string

	cmd := &cobra.Command{
		Use:   "validate-profile",
		Short: "load a device profile and report whether its schema compiles cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := config.Load(profilePath)
			if err != nil {
				return err
			}
			registry, err := schema.GenerateRecordModels(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d record types compiled: %s\n", p.Device, len(registry.RecordTypes()), formatTypes(registry.RecordTypes()))
			return nil
		},
	}

	cmd.Flags().StringVar(&profilePath, "profile", "", "path to the device profile YAML file")
	cmd.MarkFlagRequired("profile")
	return cmd
}

func formatTypes(types []byte) string {
	out := make([]byte, 0, len(types)*2)
	for i, t := range types {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, t)
	}
	return string(out)
}
