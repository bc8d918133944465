// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

// orderedAttrs is an insertion-ordered string->Value map, the same
// shape as a labelSet but for the much smaller per-node attribute
// slot (no need for sync: it is always guarded by the owning Node's
// mutex).
type orderedAttrs struct {
	order []string
	vals  map[string]Value
}

func newOrderedAttrs() *orderedAttrs {
	return &orderedAttrs{vals: map[string]Value{}}
}

func (a *orderedAttrs) Get(key string) (Value, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.vals[key]
	return v, ok
}

// Set inserts or overwrites key. removeNulls controls whether a nil
// value deletes the key instead of storing it, per spec.md §3's
// `remove_nulls` flag (default true).
func (a *orderedAttrs) Set(key string, v Value, removeNulls bool) {
	if v == nil && removeNulls {
		a.Delete(key)
		return
	}
	if _, exists := a.vals[key]; !exists {
		a.order = append(a.order, key)
	}
	a.vals[key] = v
}

func (a *orderedAttrs) Delete(key string) bool {
	if _, ok := a.vals[key]; !ok {
		return false
	}
	delete(a.vals, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

func (a *orderedAttrs) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Copy returns an independent ordered-map with the same entries, used
// by deepcopy and by event payloads that must snapshot the attrs
// before a mutation overwrites them.
func (a *orderedAttrs) Copy() *orderedAttrs {
	out := newOrderedAttrs()
	if a == nil {
		return out
	}
	out.order = append(out.order, a.order...)
	for k, v := range a.vals {
		out.vals[k] = v
	}
	return out
}

// Map renders the ordered attrs as a plain map, for callers (codec,
// query layer) that do not care about attribute order.
func (a *orderedAttrs) Map() map[string]Value {
	out := make(map[string]Value, len(a.Keys()))
	if a == nil {
		return out
	}
	for k, v := range a.vals {
		out[k] = v
	}
	return out
}

func (a *orderedAttrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.order)
}

// Equal reports whether a and b carry the same key/value pairs,
// ignoring insertion order, used to decide whether an update event's
// `changed.attrs` flag (spec.md §4.2) should actually fire.
func (a *orderedAttrs) Equal(b *orderedAttrs) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}
