// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"sync"
	"time"
)

// NodeCallback is fired on a Node's own value/attribute change, local
// to the node (spec.md §3 "subscribers").
type NodeCallback func(n *Node, reason string)

// Node is one element of a Container: a label, a value (or a
// resolver standing in for one), an attribute map, an optional tag,
// and a subscriber set (spec.md §3).
type Node struct {
	mu sync.Mutex

	label    string
	value    Value
	attrs    *orderedAttrs
	tag      string
	resolver Resolver

	parentContainer *Container

	// resolver cache slot: only meaningful while resolver != nil and
	// resolver.ReadOnly() is false. Grounded on pkg/lrucache's
	// "waitingForComputation" single-flight idiom, kept per-node
	// since a resolver is bound to exactly one node (invariant 4).
	// loadGen tags each load attempt; loadErr holds the failure of the
	// attempt currently tagged by loadGen, so a waiter woken by
	// Broadcast can tell whether the failure it sees belongs to the
	// attempt it was waiting for or to some later retry.
	cached    Value
	hasCached bool
	lastLoad  time.Time
	loadCond  *sync.Cond
	isLoading bool
	loadErr   error
	loadGen   int64

	subsMu sync.Mutex
	subs   map[string]NodeCallback
}

func newNode(label string, value Value, attrs map[string]Value, tag string, resolver Resolver, parent *Container, removeNulls bool) *Node {
	n := &Node{
		label:           label,
		attrs:           newOrderedAttrs(),
		tag:             tag,
		resolver:        resolver,
		parentContainer: parent,
	}
	for k, v := range attrs {
		n.attrs.Set(k, v, removeNulls)
	}
	if resolver == nil {
		n.value = value
	}
	if cv, ok := IsContainer(value); ok {
		cv.parentNode = n
	}
	return n
}

// applyLocked mutates an existing node in place (update branch of
// labelSet.set). Caller (labelSet) already holds the container's
// write lock; this additionally takes the node's own lock so
// concurrent readers of Value()/Attrs() see a consistent snapshot.
func (n *Node) applyLocked(value Value, attrs map[string]Value, tag string, resolver Resolver, removeNulls bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.resolver != nil && n.resolver != resolver {
		// invariant 4: replacing the resolver nulls the previous binding.
		n.resolver = nil
		n.hasCached = false
		n.loadErr = nil
	}

	if resolver != nil {
		n.resolver = resolver
		n.value = nil
	} else if value != nil || n.resolver == nil {
		n.resolver = nil
		n.value = value
		if cv, ok := IsContainer(value); ok {
			cv.parentNode = n
		}
	}

	if tag != "" {
		n.tag = tag
	}
	for k, v := range attrs {
		n.attrs.Set(k, v, removeNulls)
	}
}

func (n *Node) valueLocked() Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resolver != nil {
		return n.resolver
	}
	return n.value
}

// Label returns the node's label.
func (n *Node) Label() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.label
}

// RawValue returns the node's value without resolving a resolver: a
// Resolver value comes back as-is, matching the `static=true` path
// read mode of spec.md §4.3.
func (n *Node) RawValue() Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resolver != nil {
		return n.resolver
	}
	return n.value
}

// Tag returns the node's tag, defaulting to its label when unset, per
// spec.md §3 ("When absent, label is used as tag in external views").
func (n *Node) Tag() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tag == "" {
		return n.label
	}
	return n.tag
}

// RawTag returns the tag exactly as stored, possibly empty.
func (n *Node) RawTag() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tag
}

func (n *Node) SetTag(tag string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tag = tag
}

// Resolver returns the node's resolver, or nil if the node holds a
// direct value.
func (n *Node) Resolver() Resolver {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resolver
}

// Attr returns one attribute value.
func (n *Node) Attr(key string) (Value, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attrs.Get(key)
}

// Attrs returns a copy of the node's attribute map, safe to read
// without holding the node's lock.
func (n *Node) Attrs() *orderedAttrs {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attrs.Copy()
}

func (n *Node) SetAttr(key string, v Value, removeNulls bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attrs.Set(key, v, removeNulls)
}

func (n *Node) DeleteAttr(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attrs.Delete(key)
}

// ParentContainer is the container that directly holds this node, or
// nil only for a detached node (spec.md invariant 2 requires every
// node reachable from a container to have this set to that
// container).
func (n *Node) ParentContainer() *Container {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parentContainer
}

func (n *Node) setParentContainer(c *Container) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parentContainer = c
}

// Subscribe registers a node-level callback, fired on this node's own
// value/attribute changes only (spec.md §3).
func (n *Node) Subscribe(id string, cb NodeCallback) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	if n.subs == nil {
		n.subs = map[string]NodeCallback{}
	}
	n.subs[id] = cb
}

func (n *Node) Unsubscribe(id string) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	delete(n.subs, id)
}

func (n *Node) fireLocal(reason string) {
	n.subsMu.Lock()
	cbs := make([]NodeCallback, 0, len(n.subs))
	for _, cb := range n.subs {
		cbs = append(cbs, cb)
	}
	n.subsMu.Unlock()
	for _, cb := range cbs {
		cb(n, reason)
	}
}
