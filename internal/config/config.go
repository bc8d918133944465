// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads process configuration the way the teacher's
// own internal/config does: a package-level Keys struct, JSON-Schema
// validated on Init, a .env overlay read once at startup. Generalized
// here from job-monitoring settings to the Store's own ambient
// concerns: resolver bindings, housekeeping, snapshot and notify DSNs.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/genropy/genro-bag-sub000/pkg/log"
)

// ResolverBinding declares a resolver to attach at Path when a Store
// is built from config, instead of requiring every embedder to wire
// resolvers in Go. Class names one of the concrete resolvers in
// internal/resolvers ("url", "directory").
type ResolverBinding struct {
	Path             string         `json:"path" yaml:"path"`
	Class            string         `json:"class" yaml:"class"`
	Args             []any          `json:"args" yaml:"args"`
	Kwargs           map[string]any `json:"kwargs" yaml:"kwargs"`
	ReadOnly         bool           `json:"read-only" yaml:"read-only"`
	CacheTimeSeconds int64          `json:"cache-time-seconds" yaml:"cache-time-seconds"`
}

// HousekeepingConfig configures internal/housekeep's sweep.
type HousekeepingConfig struct {
	Interval string `json:"interval" yaml:"interval"`
	Grace    string `json:"grace" yaml:"grace"`
}

// SnapshotConfig selects and configures an internal/snapshot backend.
type SnapshotConfig struct {
	Backend        string `json:"backend" yaml:"backend"` // "sqlite" or "s3"
	SQLitePath     string `json:"sqlite-path" yaml:"sqlite-path"`
	S3Bucket       string `json:"s3-bucket" yaml:"s3-bucket"`
	S3Region       string `json:"s3-region" yaml:"s3-region"`
	CacheMaxMemory int    `json:"cache-max-memory" yaml:"cache-max-memory"`
	CacheTTL       string `json:"cache-ttl" yaml:"cache-ttl"`
}

// NotifyConfig configures internal/notify's NATS sink.
type NotifyConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	Subject string `json:"subject" yaml:"subject"`
}

// GatewayConfig configures internal/gateway's HTTP surface.
type GatewayConfig struct {
	Addr                  string `json:"addr" yaml:"addr"`
	DisableAuthentication bool   `json:"disable-authentication" yaml:"disable-authentication"`
	SessionMaxAge         string `json:"session-max-age" yaml:"session-max-age"`
}

// ProgramConfig is the top-level document Init loads, the Store's
// analogue of the teacher's schema.ProgramConfig.
type ProgramConfig struct {
	Validate     bool               `json:"validate" yaml:"validate"`
	Gateway      GatewayConfig      `json:"gateway" yaml:"gateway"`
	Housekeeping HousekeepingConfig `json:"housekeeping" yaml:"housekeeping"`
	Snapshot     SnapshotConfig     `json:"snapshot" yaml:"snapshot"`
	Notify       NotifyConfig       `json:"notify" yaml:"notify"`
	Resolvers    []ResolverBinding  `json:"resolvers" yaml:"resolvers"`
}

// Keys holds the process-wide configuration, populated by Init.
var Keys = ProgramConfig{
	Gateway: GatewayConfig{
		Addr:          ":8080",
		SessionMaxAge: "168h",
	},
	Housekeeping: HousekeepingConfig{
		Interval: "5m",
		Grace:    "1m",
	},
	Snapshot: SnapshotConfig{
		Backend:        "sqlite",
		SQLitePath:     "./var/snapshots.db",
		CacheMaxMemory: 64 << 20,
		CacheTTL:       "30s",
	},
}

// Init reads flagConfigFile (JSON or YAML, by extension), overlays a
// sibling .env file via godotenv if present, validates the document
// against configSchema, and decodes into Keys. A missing file is not
// an error: Keys keeps its defaults, matching the teacher's Init
// behavior for job-monitoring config.
func Init(flagConfigFile string) error {
	if err := godotenv.Load(filepath.Join(filepath.Dir(flagConfigFile), ".env")); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: .env overlay: %v", err)
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	asJSON := raw
	if isYAML(flagConfigFile) {
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return err
		}
		asJSON, err = json.Marshal(generic)
		if err != nil {
			return err
		}
	}

	if err := Validate(configSchema, asJSON); err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(string(asJSON)))
	dec.DisallowUnknownFields()
	return dec.Decode(&Keys)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
