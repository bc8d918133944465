// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{
		"gateway": {"addr": "0.0.0.0:443"},
		"snapshot": {"backend": "sqlite", "sqlite-path": "./var/snapshots.db"}
	}`), 0o644))

	require.NoError(t, Init(fp))
	require.Equal(t, "0.0.0.0:443", Keys.Gateway.Addr)
	require.Equal(t, "sqlite", Keys.Snapshot.Backend)
}

func TestInitYAML(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(fp, []byte("gateway:\n  addr: \"0.0.0.0:9000\"\nsnapshot:\n  backend: s3\n  s3-bucket: bag-snapshots\n"), 0o644))

	require.NoError(t, Init(fp))
	require.Equal(t, "0.0.0.0:9000", Keys.Gateway.Addr)
	require.Equal(t, "s3", Keys.Snapshot.Backend)
	require.Equal(t, "bag-snapshots", Keys.Snapshot.S3Bucket)
}

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	Keys = ProgramConfig{Snapshot: SnapshotConfig{Backend: "sqlite"}}
	require.NoError(t, Init(filepath.Join(t.TempDir(), "absent.json")))
	require.Equal(t, "sqlite", Keys.Snapshot.Backend)
}

func TestInitRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"snapshot": {"backend": "sqlite"}, "bogus-field": true}`), 0o644))
	require.Error(t, Init(fp))
}
