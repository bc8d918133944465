// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resolvers ships the three reference Resolver implementations
// spec.md §4.5 leaves as "contract only": a callback wrapper, an HTTP
// URL resolver, and a lazy filesystem directory walker.
package resolvers

import (
	"context"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

// LoadFunc is the user-supplied function a CallbackResolver wraps.
type LoadFunc func(ctx context.Context, kwargs map[string]store.Value) (store.Value, error)

// CallbackResolver adapts an arbitrary Go function to the Resolver
// contract, the simplest of the three reference collaborators.
type CallbackResolver struct {
	store.BaseResolver
	fn LoadFunc
}

// NewCallbackResolver builds a CallbackResolver. classKwargDefaults
// and callKwargs follow spec.md §4.5's construction contract: declared
// defaults merged with caller-supplied extras into a single `_kw` map.
func NewCallbackResolver(name string, fn LoadFunc, classKwargDefaults, callKwargs map[string]store.Value, readOnly bool, cacheTimeSeconds int64) *CallbackResolver {
	return &CallbackResolver{
		BaseResolver: store.NewBaseResolver(name, nil, classKwargDefaults, callKwargs, readOnly, cacheTimeSeconds),
		fn:           fn,
	}
}

func (r *CallbackResolver) Load(ctx context.Context, kwargs map[string]store.Value) (store.Value, error) {
	return r.fn(ctx, kwargs)
}
