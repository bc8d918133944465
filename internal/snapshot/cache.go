// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snapshot

import (
	"context"
	"time"

	"github.com/iamlouk/lrucache"
)

// CachedBackend wraps a Backend with an in-memory LRU so repeated
// Load calls for the same name avoid re-fetching within ttl.
type CachedBackend struct {
	inner Backend
	cache *lrucache.Cache
	ttl   time.Duration
}

// NewCachedBackend builds a CachedBackend over inner, bounded to
// maxMemory bytes of cached payload and expiring entries after ttl.
func NewCachedBackend(inner Backend, maxMemory int, ttl time.Duration) *CachedBackend {
	return &CachedBackend{inner: inner, cache: lrucache.New(maxMemory), ttl: ttl}
}

// Save invalidates any cached copy of name before delegating to inner,
// so a subsequent Load observes the new bytes rather than a stale hit.
func (b *CachedBackend) Save(ctx context.Context, name string, tytx []byte) error {
	b.cache.Del(name)
	return b.inner.Save(ctx, name, tytx)
}

func (b *CachedBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var loadErr error
	v := b.cache.Get(name, func() (interface{}, time.Duration, int) {
		data, err := b.inner.Load(ctx, name)
		if err != nil {
			loadErr = err
			return nil, 0, 0
		}
		return data, b.ttl, len(data)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	data, _ := v.([]byte)
	return data, nil
}

// List always goes straight to inner: the set of available snapshots
// changes independently of any single name's cached bytes.
func (b *CachedBackend) List(ctx context.Context) ([]string, error) {
	return b.inner.List(ctx)
}
