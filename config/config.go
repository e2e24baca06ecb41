// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads a device profile file from disk (spec §6 "Profile
// file (consumed by external collaborators, visible to core as an
// object)").
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solidcoredata/astmio/errs"
	"github.com/solidcoredata/astmio/profile"
)

// Options are the process-level options layered on top of a loaded
// profile: timeouts, the connection limit, retry counts, and keepalive.
// Load takes only the read and write timeouts from the profile's transport
// section; the other fields keep their DefaultOptions values.
type Options struct {
	ReadTimeoutMS  int
	WriteTimeoutMS int
	MaxConnections int
	HandlerTimeoutMS int
	MaxEnqRetries  int
	MaxNakRetries  int
	Keepalive      bool
}

// DefaultOptions mirrors the defaults spec §4.6/§4.7 call out explicitly.
func DefaultOptions() Options {
	return Options{
		ReadTimeoutMS:    20000,
		WriteTimeoutMS:   20000,
		MaxConnections:   100,
		HandlerTimeoutMS: 5000,
		MaxEnqRetries:    6,
		MaxNakRetries:    6,
	}
}

// Load reads a YAML profile file from path and builds a validated
// profile.Profile plus Options derived from its transport section (spec §6
// "Required top-level fields: device, transport ..., records").
func Load(path string) (*profile.Profile, Options, error) {
	opts := DefaultOptions()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, opts, errs.NewConfigurationError(path, "could not read profile file")
	}

	var p profile.Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, opts, errs.NewConfigurationError(path, "invalid YAML: "+err.Error())
	}

	built, err := profile.New(p)
	if err != nil {
		return nil, opts, err
	}

	if built.Transport.ReadTimeoutMS > 0 {
		opts.ReadTimeoutMS = built.Transport.ReadTimeoutMS
	}
	if built.Transport.WriteTimeoutMS > 0 {
		opts.WriteTimeoutMS = built.Transport.WriteTimeoutMS
	}

	return built, opts, nil
}
