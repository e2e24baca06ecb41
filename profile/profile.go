// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profile models a device profile: the declarative, per-record-type
// field schema an external profile loader (YAML/JSON/TOML, see package
// config) produces and hands to the core frozen for the life of the process
// (spec §3 "Profile", §5 "Shared resources").
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/solidcoredata/astmio/errs"
)

// FieldType is one of the profile's declared field-type tags (spec §3
// "RecordConfig").
type FieldType string

const (
	TypeConstant  FieldType = "constant"
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeEnum      FieldType = "enum"
	TypeDatetime  FieldType = "datetime"
	TypeComponent FieldType = "component"
	TypeIgnored   FieldType = "ignored"
)

// FieldDef is one field definition within a RecordConfig (spec §3).
type FieldDef struct {
	Name      string    `yaml:"name"`
	Position  int       `yaml:"position"`
	Type      FieldType `yaml:"type"`
	Required  bool      `yaml:"required"`
	Repeated  bool      `yaml:"repeated"`
	MaxLength int       `yaml:"max_length"`
	Default   string    `yaml:"default"`

	// Values is the enum field's allowed values.
	Values []string `yaml:"values"`
	// Format is the datetime field's strptime-style layout.
	Format string `yaml:"format"`
	// Component is the nested ordered field list of a component field.
	Component []FieldDef `yaml:"component"`
}

// RecordConfig is the ordered field list for one record type (spec §3).
type RecordConfig struct {
	Fields []FieldDef `yaml:"fields"`
}

// ClassKey is a stable hash of the record's field list, used to cache the
// generated RecordClass (spec §3 "a per-type dynamic validator class is
// generated and cached, keyed by a stable hash of the record's field
// list").
func (rc RecordConfig) ClassKey() string {
	h := sha256.New()
	hashFields(h, rc.Fields)
	return hex.EncodeToString(h.Sum(nil))
}

func hashFields(h interface{ Write([]byte) (int, error) }, fields []FieldDef) {
	for _, f := range fields {
		fmt.Fprintf(h, "%s|%d|%s|%t|%t|%d|%s|%v|%s|", f.Name, f.Position, f.Type, f.Required, f.Repeated, f.MaxLength, f.Default, f.Values, f.Format)
		hashFields(h, f.Component)
		fmt.Fprint(h, ";")
	}
}

// TransportConfig is the transport subsection of a profile. The core treats
// it opaquely: config.Load reads only ReadTimeoutMS and WriteTimeoutMS, the
// wire encoding is Profile.Encoding, and ChunkSize is carried but not read
// by any package.
type TransportConfig struct {
	Mode           string `yaml:"mode"` // tcp, udp, serial
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ChunkSize      int    `yaml:"chunk_size"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	Extra          map[string]any `yaml:",inline"`
}

// Profile is the root device profile object (spec §3 "Profile").
type Profile struct {
	Device    string                  `yaml:"device"`
	Vendor    string                  `yaml:"vendor"`
	Model     string                  `yaml:"model"`
	Version   string                  `yaml:"version"`
	Encoding  string                  `yaml:"encoding"`
	Transport TransportConfig         `yaml:"transport"`
	Records   map[byte]RecordConfig   `yaml:"-"`
	RawRecords map[string]RecordConfig `yaml:"records"`
}

// New builds a Profile and immediately validates it structurally. Callers
// (package config) should treat the returned Profile as frozen; it is
// intended to be created once at startup and shared read-only thereafter
// (spec §3 "Lifecycle", §5 "Shared resources").
func New(p Profile) (*Profile, error) {
	if p.Encoding == "" {
		p.Encoding = "latin-1"
	}
	if p.Records == nil {
		p.Records = make(map[byte]RecordConfig, len(p.RawRecords))
		for k, v := range p.RawRecords {
			if len(k) != 1 {
				return nil, errs.NewConfigurationError("records", fmt.Sprintf("record type key %q must be a single letter", k))
			}
			p.Records[k[0]] = v
		}
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the structural invariants spec.md §3 places on a
// profile: unique field positions per record, enum fields carry Values,
// datetime fields carry Format, component fields carry a nested field
// list, and constant fields carry a Default that is itself present.
func Validate(p *Profile) error {
	if p.Device == "" {
		return errs.NewConfigurationError("device", "device name is required")
	}
	for recordType, cfg := range p.Records {
		if err := validateFields(recordType, cfg.Fields); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(recordType byte, fields []FieldDef) error {
	seen := make(map[int]string, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return errs.NewConfigurationError(string(recordType), "field has no name")
		}
		if prior, ok := seen[f.Position]; ok {
			return errs.NewConfigurationError(f.Name, fmt.Sprintf("position %d is already used by field %q", f.Position, prior))
		}
		seen[f.Position] = f.Name

		switch f.Type {
		case TypeConstant:
			if f.Default == "" {
				return errs.NewConfigurationError(f.Name, "constant field requires a default value")
			}
		case TypeEnum:
			if len(f.Values) == 0 {
				return errs.NewConfigurationError(f.Name, "enum field requires at least one value")
			}
		case TypeDatetime:
			if f.Format == "" {
				return errs.NewConfigurationError(f.Name, "datetime field requires a format")
			}
		case TypeComponent:
			if len(f.Component) == 0 {
				return errs.NewConfigurationError(f.Name, "component field requires a nested field list")
			}
			if err := validateFields(recordType, f.Component); err != nil {
				return err
			}
		case TypeString, TypeInteger, TypeDecimal, TypeIgnored:
			// no additional structural requirement
		default:
			return errs.NewConfigurationError(f.Name, fmt.Sprintf("unknown field type %q", f.Type))
		}
	}
	return nil
}

// RecordTypes returns the profile's declared record-type letters, sorted,
// for deterministic iteration (dispatch registration, diagnostics).
func (p *Profile) RecordTypes() []byte {
	out := make([]byte, 0, len(p.Records))
	for t := range p.Records {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
