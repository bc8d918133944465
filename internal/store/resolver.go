// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Resolver is the contract of spec.md §4.5: a lazily-invoked value
// standing in for a node's direct value until loaded.
type Resolver interface {
	Load(ctx context.Context, kwargs map[string]Value) (Value, error)
	ReadOnly() bool
	// CacheTimeSeconds follows spec.md's three-way cache_time: 0 means
	// always expired, >0 a TTL in seconds, -1 cached indefinitely.
	CacheTimeSeconds() int64
	ClassName() string
	ClassArgs() []Value
	Kwargs() map[string]Value
	Fingerprint() string
	Serialise() ResolverDescriptor
	Reset()
}

// BaseResolver is the embeddable implementation of everything in the
// resolver contract except Load itself: fingerprinting, parameter
// storage, cache mode. Concrete resolvers (internal/resolvers) embed
// this and add their own Load method.
type BaseResolver struct {
	className        string
	classArgs        []Value
	kw               map[string]Value
	readOnly         bool
	cacheTimeSeconds int64
	fingerprint      string
}

type fingerprintView struct {
	Class  string           `json:"class"`
	Args   []Value          `json:"args"`
	Kwargs map[string]Value `json:"kwargs"`
}

// NewBaseResolver merges classKwargDefaults with callKwargs (call
// kwargs win, extras are retained) into the resolver's single `_kw`
// map, then computes the (class_name, class_args, _kw) fingerprint
// once, per spec.md §4.5. encoding/json sorts map keys on marshal, so
// this is already a canonical serialisation with no extra bookkeeping.
func NewBaseResolver(className string, classArgs []Value, classKwargDefaults, callKwargs map[string]Value, readOnly bool, cacheTimeSeconds int64) BaseResolver {
	kw := make(map[string]Value, len(classKwargDefaults)+len(callKwargs))
	for k, v := range classKwargDefaults {
		kw[k] = v
	}
	for k, v := range callKwargs {
		kw[k] = v
	}

	b := BaseResolver{
		className:        className,
		classArgs:        append([]Value{}, classArgs...),
		kw:               kw,
		readOnly:         readOnly,
		cacheTimeSeconds: cacheTimeSeconds,
	}
	b.fingerprint = computeFingerprint(className, b.classArgs, kw)
	return b
}

func computeFingerprint(className string, args []Value, kw map[string]Value) string {
	view := fingerprintView{Class: className, Args: args, Kwargs: kw}
	buf, err := json.Marshal(view)
	if err != nil {
		// Non-JSON-marshalable args make equality moot; fall back to a
		// fingerprint that is stable but never equal across instances.
		buf = []byte(className)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func (b *BaseResolver) ReadOnly() bool         { return b.readOnly }
func (b *BaseResolver) CacheTimeSeconds() int64 { return b.cacheTimeSeconds }
func (b *BaseResolver) ClassName() string       { return b.className }
func (b *BaseResolver) Fingerprint() string     { return b.fingerprint }

func (b *BaseResolver) ClassArgs() []Value {
	out := make([]Value, len(b.classArgs))
	copy(out, b.classArgs)
	return out
}

func (b *BaseResolver) Kwargs() map[string]Value {
	out := make(map[string]Value, len(b.kw))
	for k, v := range b.kw {
		out[k] = v
	}
	return out
}

// Reset is a no-op at the BaseResolver level; the node-local cache
// slot it invalidates is cleared by ResetNodeCache, since spec.md
// §4.5 keeps the cache in the node, not the resolver. Concrete
// resolvers override Reset only if they hold extra internal state.
func (b *BaseResolver) Reset() {}

// ResolverDescriptor is the serialise() result of spec.md §4.5, used
// by the codec to record an unresolved resolver's reconstruction
// recipe.
type ResolverDescriptor struct {
	Class  string           `json:"class"`
	Args   []Value          `json:"args"`
	Kwargs map[string]Value `json:"kwargs"`
}

func (b *BaseResolver) Serialise() ResolverDescriptor {
	return ResolverDescriptor{Class: b.className, Args: b.ClassArgs(), Kwargs: b.Kwargs()}
}

func isExpired(cacheTimeSeconds int64, lastLoad time.Time) bool {
	switch {
	case cacheTimeSeconds == 0:
		return true
	case cacheTimeSeconds < 0:
		return false
	default:
		return time.Since(lastLoad) >= time.Duration(cacheTimeSeconds)*time.Second
	}
}

// effectiveKwargs implements spec.md §4.5's read_only=true precedence:
// call kwargs > node attrs > resolver's stored _kw. The result is
// built fresh each call; none of the inputs are mutated.
func effectiveKwargs(callKwargs map[string]Value, nodeAttrs map[string]Value, storedKw map[string]Value) map[string]Value {
	out := make(map[string]Value, len(storedKw)+len(nodeAttrs)+len(callKwargs))
	for k, v := range storedKw {
		out[k] = v
	}
	for k, v := range nodeAttrs {
		out[k] = v
	}
	for k, v := range callKwargs {
		out[k] = v
	}
	return out
}

// ResolveNode is the C5 engine entry point: it invokes n's resolver
// (if any) under the appropriate mode, or simply returns n's direct
// value when it has no resolver. context.Context is what makes this
// one function serve both spec.md's sync and async call sites — a
// synchronous caller passes context.Background(), an asynchronous one
// a cancelable context and may run this in its own goroutine.
func ResolveNode(ctx context.Context, n *Node, callKwargs map[string]Value) (Value, error) {
	n.mu.Lock()
	r := n.resolver
	if r == nil {
		v := n.value
		n.mu.Unlock()
		return v, nil
	}

	if r.ReadOnly() {
		attrs := n.attrs.Map()
		n.mu.Unlock()
		return r.Load(ctx, effectiveKwargs(callKwargs, attrs, r.Kwargs()))
	}

	if len(callKwargs) != 0 {
		n.mu.Unlock()
		return nil, ErrInvalidPathSyntax.with("reason", "call-time kwargs rejected for a non read_only resolver")
	}

	// Single-flight load, grounded on pkg/lrucache/cache.go's
	// sync.Cond-based "waitingForComputation" pattern: the node's own
	// mutex doubles as the resolver-local async lock spec.md §4.5
	// describes, and loadCond is the shared future other callers wait
	// on instead of firing a parallel load. loadGen tags the attempt
	// currently in flight (or just finished); a waiter records it
	// before sleeping so that on wake it can tell whether the failure
	// it sees (spec.md §4.5, §7, P7: "all awaiters receive the same
	// failure") belongs to the attempt it waited for, rather than one
	// some later retry already overwrote.
	for {
		if n.hasCached && !isExpired(r.CacheTimeSeconds(), n.lastLoad) {
			v := n.cached
			n.mu.Unlock()
			resolverCacheHits.Inc()
			return v, nil
		}
		if n.isLoading {
			waitGen := n.loadGen
			if n.loadCond == nil {
				n.loadCond = sync.NewCond(&n.mu)
			}
			resolverSingleFlightWaits.Inc()
			n.loadCond.Wait()
			if n.loadGen == waitGen && !n.hasCached && n.loadErr != nil {
				err := n.loadErr
				n.mu.Unlock()
				return nil, err
			}
			continue
		}
		break
	}

	resolverCacheMisses.Inc()
	n.isLoading = true
	n.loadErr = nil
	n.loadGen++
	n.mu.Unlock()

	loadStart := time.Now()
	v, err := r.Load(ctx, r.Kwargs())
	observeLoadDuration(loadStart)

	n.mu.Lock()
	n.isLoading = false
	if err != nil {
		n.loadErr = err
	} else {
		n.cached = v
		n.hasCached = true
		n.lastLoad = time.Now()
		if cv, ok := IsContainer(v); ok {
			cv.mu.Lock()
			cv.parentNode = n
			cv.mu.Unlock()
		}
	}
	if n.loadCond != nil {
		n.loadCond.Broadcast()
	}
	n.mu.Unlock()

	return v, err
}

// ResetNodeCache clears a resolver node's cached value, marking it
// expired, without cancelling an in-flight load (spec.md §4.5
// "reset()").
func ResetNodeCache(n *Node) {
	n.mu.Lock()
	n.hasCached = false
	n.mu.Unlock()
	if r := n.Resolver(); r != nil {
		r.Reset()
	}
}

// StaleNonReadOnly reports whether n holds a non-read-only resolver
// with a cached value that has sat unread for at least grace beyond
// its own cache_time. It never blocks on an in-flight load and never
// affects a concurrent reader's lazy TTL semantics; it only tells a
// housekeeping sweep that the cache slot is a safe, proactive evict.
func StaleNonReadOnly(n *Node, grace time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.resolver
	if r == nil || r.ReadOnly() || !n.hasCached || n.isLoading {
		return false
	}
	ct := r.CacheTimeSeconds()
	if ct < 0 {
		return false
	}
	return time.Since(n.lastLoad) >= time.Duration(ct)*time.Second+grace
}
