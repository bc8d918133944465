// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeResolver is the test double for the Resolver contract: it embeds
// BaseResolver for fingerprinting/kwargs/cache-mode bookkeeping and
// counts Load invocations so tests can assert on cache/single-flight
// behaviour without a real collaborator (cf. internal/resolvers).
type fakeResolver struct {
	BaseResolver
	calls int32
	fn    func(ctx context.Context, kwargs map[string]Value) (Value, error)
}

func newFakeResolver(name string, readOnly bool, cacheTimeSeconds int64, storedKw map[string]Value, fn func(ctx context.Context, kwargs map[string]Value) (Value, error)) *fakeResolver {
	return &fakeResolver{
		BaseResolver: NewBaseResolver(name, nil, nil, storedKw, readOnly, cacheTimeSeconds),
		fn:           fn,
	}
}

func (r *fakeResolver) Load(ctx context.Context, kwargs map[string]Value) (Value, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.fn(ctx, kwargs)
}

func (r *fakeResolver) Calls() int32 { return atomic.LoadInt32(&r.calls) }

func TestResolveNodeDirectValueNoResolver(t *testing.T) {
	c := NewContainer()
	n := c.setDirect("x", "plain", nil, "", nil, PositionEnd, "create", true)

	v, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	require.Equal(t, "plain", v)
}

func TestResolveNodeReadOnlyKwargsPrecedence(t *testing.T) {
	var gotKwargs map[string]Value
	r := newFakeResolver("ro", true, -1, map[string]Value{"scope": "stored", "only_stored": true},
		func(ctx context.Context, kwargs map[string]Value) (Value, error) {
			gotKwargs = kwargs
			return "v", nil
		})

	c := NewContainer()
	n := c.setDirect("x", nil, map[string]Value{"scope": "attr", "only_attr": true}, "", r, PositionEnd, "test", true)

	v, err := ResolveNode(context.Background(), n, map[string]Value{"scope": "call"})
	require.NoError(t, err)
	require.Equal(t, "v", v)

	require.Equal(t, "call", gotKwargs["scope"])   // call kwargs win over node attrs and stored kw
	require.Equal(t, true, gotKwargs["only_attr"]) // node attrs still merged in
	require.Equal(t, true, gotKwargs["only_stored"])
}

func TestResolveNodeReadOnlyNeverCaches(t *testing.T) {
	r := newFakeResolver("ro", true, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return time.Now().UnixNano(), nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	v1, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	v2, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)

	require.NotEqual(t, v1, v2)
	require.EqualValues(t, 2, r.Calls())
}

func TestResolveNodeNonReadOnlyRejectsCallKwargs(t *testing.T) {
	r := newFakeResolver("nro", false, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return "v", nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	_, err := ResolveNode(context.Background(), n, map[string]Value{"foo": "bar"})
	require.Error(t, err)
	require.True(t, Is(err, ErrInvalidPathSyntax))
}

func TestResolveNodeCacheModeAlwaysExpired(t *testing.T) {
	r := newFakeResolver("always", false, 0, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return time.Now().UnixNano(), nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	v1, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	v2, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)

	require.NotEqual(t, v1, v2)
	require.EqualValues(t, 2, r.Calls())
}

func TestResolveNodeCacheModeTTLExpiresAndResetClears(t *testing.T) {
	r := newFakeResolver("ttl", false, 1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return time.Now().UnixNano(), nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	v1, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	v2, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, r.Calls())

	ResetNodeCache(n)
	v3, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	require.NotEqual(t, v1, v3)
	require.EqualValues(t, 2, r.Calls())
}

func TestResolveNodeCacheModeIndefiniteNeverExpires(t *testing.T) {
	r := newFakeResolver("forever", false, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return time.Now().UnixNano(), nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	v1, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	v2, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, r.Calls())
}

func TestResolveNodeSingleFlightCollapsesConcurrentCallers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	r := newFakeResolver("slow", false, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		once.Do(func() { close(started) })
		<-release
		return "done", nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]Value, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := ResolveNode(context.Background(), n, nil)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond) // give the other callers time to queue on loadCond
	close(release)
	wg.Wait()

	for _, v := range results {
		require.Equal(t, "done", v)
	}
	require.EqualValues(t, 1, r.Calls())
}

func TestResolveNodeSingleFlightSharesFailureAcrossConcurrentCallers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	failure := errors.New("load failed")

	r := newFakeResolver("slow-fail", false, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, failure
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ResolveNode(context.Background(), n, nil)
			errs[i] = err
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond) // give the other callers time to queue on loadCond
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.Same(t, failure, err)
	}
	require.EqualValues(t, 1, r.Calls())
}

func TestStaleNonReadOnly(t *testing.T) {
	r := newFakeResolver("x", false, 1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return "v", nil
	})
	c := NewContainer()
	n := c.setDirect("x", nil, nil, "", r, PositionEnd, "test", true)

	require.False(t, StaleNonReadOnly(n, time.Second)) // nothing cached yet

	_, err := ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	require.False(t, StaleNonReadOnly(n, time.Second)) // freshly cached, well within grace

	time.Sleep(1100 * time.Millisecond)
	require.True(t, StaleNonReadOnly(n, 50*time.Millisecond))
}

func TestStaleNonReadOnlyIgnoresReadOnlyAndIndefinite(t *testing.T) {
	c := NewContainer()

	ro := newFakeResolver("ro", true, 0, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return "v", nil
	})
	nRO := c.setDirect("ro", nil, nil, "", ro, PositionEnd, "test", true)
	require.False(t, StaleNonReadOnly(nRO, 0))

	forever := newFakeResolver("forever", false, -1, nil, func(ctx context.Context, kwargs map[string]Value) (Value, error) {
		return "v", nil
	})
	nForever := c.setDirect("forever", nil, nil, "", forever, PositionEnd, "test", true)
	_, err := ResolveNode(context.Background(), nForever, nil)
	require.NoError(t, err)
	require.False(t, StaleNonReadOnly(nForever, 0))
}
