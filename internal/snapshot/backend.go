// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snapshot persists TYTX-encoded Containers (internal/codec)
// under a name, supplementing spec.md's wire schema with somewhere for
// the bytes to land. Grounded on the teacher's pkg/archive fs/S3
// backend pair.
package snapshot

import "context"

// Backend is the storage contract every snapshot implementation
// satisfies: named blobs in, named blobs out.
type Backend interface {
	Save(ctx context.Context, name string, tytx []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}
