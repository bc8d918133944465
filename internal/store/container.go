// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"sync"
)

// ModifiedState is the tri-state dirty flag of spec.md §3.
type ModifiedState int

const (
	ModifiedUnset ModifiedState = iota
	ModifiedClean
	ModifiedDirty
)

// EventKind discriminates the three mutation shapes a Container fires
// subscribers for (spec.md §4.2 "Event model").
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is the payload delivered to on_insert/on_update/on_delete/on_any
// callbacks, generalized into one struct with kind-specific fields left
// zero. Level 0 is the container the mutation happened on; -1 is its
// parent, -2 its grandparent, and so on (spec.md invariant P9).
type Event struct {
	Kind      EventKind
	Container *Container
	Node      *Node
	Position  Position
	Reason    string
	Level     int

	OldValue Value
	OldAttrs *orderedAttrs
	Changed  struct {
		Value bool
		Attrs bool
	}
}

// Callbacks is one subscriber's registration: any subset of the four
// hooks may be nil.
type Callbacks struct {
	OnInsert func(Event)
	OnUpdate func(Event)
	OnDelete func(Event)
	OnAny    func(Event)
}

// Container is the hierarchical, ordered, label-unique node host of
// spec.md §4.2 — "Bag" in the system this spec distills from.
type Container struct {
	labels *labelSet

	mu         sync.RWMutex
	parentNode *Node
	backref    bool
	modified   ModifiedState

	subsMu sync.Mutex
	subs   map[string]Callbacks
}

// NewContainer returns an empty, detached container with backref mode
// off (spec.md §3 default).
func NewContainer() *Container {
	return &Container{labels: newLabelSet()}
}

// ParentNode is the node whose value is this container, or nil for a
// root container (spec.md §3 "parent_node").
func (c *Container) ParentNode() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parentNode
}

// SetBackref / ClearBackref toggle upward subscription propagation.
func (c *Container) SetBackref() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backref = true
}

func (c *Container) ClearBackref() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backref = false
}

// DelParentRef detaches this container from its owning node, breaking
// the parent_node <-> container cycle (spec.md §8 "Cyclic graphs").
func (c *Container) DelParentRef() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parentNode = nil
}

func (c *Container) backrefEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backref
}

// SetModified arms the tri-state dirty flag; once non-unset, every
// event the container emits while backref mode is on flips it to
// dirty (spec.md §3 "modified").
func (c *Container) SetModified(clean bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clean {
		c.modified = ModifiedClean
	} else {
		c.modified = ModifiedDirty
	}
}

func (c *Container) Modified() ModifiedState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

func (c *Container) markDirty() {
	c.mu.Lock()
	if c.modified != ModifiedUnset {
		c.modified = ModifiedDirty
	}
	c.mu.Unlock()
}

// Len, Contains, Labels are the direct-child views of spec.md §4.2.
func (c *Container) Len() int { return c.labels.len() }

func (c *Container) Contains(label string) bool {
	_, ok := c.labels.get(label)
	return ok
}

func (c *Container) Labels() []string { return c.labels.labels() }

// Keys is an alias for Labels matching the spec's naming.
func (c *Container) Keys() []string { return c.labels.labels() }

// Values returns the direct children's raw values, in order.
func (c *Container) Values() []Value {
	labels := c.labels.labels()
	out := make([]Value, 0, len(labels))
	for _, l := range labels {
		if n, ok := c.labels.get(l); ok {
			out = append(out, n.RawValue())
		}
	}
	return out
}

// Items returns (label, value) pairs for direct children, in order.
type Item struct {
	Label string
	Node  *Node
}

func (c *Container) Items() []Item {
	labels := c.labels.labels()
	out := make([]Item, 0, len(labels))
	for _, l := range labels {
		if n, ok := c.labels.get(l); ok {
			out = append(out, Item{Label: l, Node: n})
		}
	}
	return out
}

// EachItem is the lazy-iterator variant of Items, stopping early when
// f returns false.
func (c *Container) EachItem(f func(label string, n *Node) bool) {
	c.labels.each(f)
}

// GetNodeDirect looks up a direct child by label, no path parsing.
func (c *Container) GetNodeDirect(label string) (*Node, bool) {
	return c.labels.get(label)
}

// GetNodeByAttr performs a recursive search for the first node (depth
// first, this container first) whose attribute `attr` equals `value`.
func (c *Container) GetNodeByAttr(attr string, value Value) (*Node, bool) {
	if n, ok := c.labels.byAttr(attr, value); ok {
		return n, true
	}
	var found *Node
	c.labels.each(func(_ string, n *Node) bool {
		if cv, ok := IsContainer(n.RawValue()); ok {
			if m, ok := cv.GetNodeByAttr(attr, value); ok {
				found = m
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// GetNodeByValue performs a recursive search for the first node whose
// label matches and whose value equals `value`.
func (c *Container) GetNodeByValue(label string, value Value) (*Node, bool) {
	if n, ok := c.labels.get(label); ok && valuesEqual(n.RawValue(), value) {
		return n, true
	}
	var found *Node
	c.labels.each(func(_ string, n *Node) bool {
		if cv, ok := IsContainer(n.RawValue()); ok {
			if m, ok := cv.GetNodeByValue(label, value); ok {
				found = m
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// setDirect is the low-level insert-or-update primitive the path
// engine's write traversal calls once it has located the target
// container and final label. It fires the full event cascade.
func (c *Container) setDirect(label string, value Value, attrs map[string]Value, tag string, resolver Resolver, pos Position, reason string, removeNulls bool) *Node {
	n, wasNew, oldValue, oldAttrs := c.labels.set(c, label, value, attrs, tag, resolver, pos, removeNulls)

	if wasNew {
		recordMutation(EventInsert)
		c.emit(Event{Kind: EventInsert, Container: c, Node: n, Position: pos, Reason: reason})
	} else {
		recordMutation(EventUpdate)
		n.fireLocal(reason)
		ev := Event{Kind: EventUpdate, Container: c, Node: n, Reason: reason, OldValue: oldValue, OldAttrs: oldAttrs}
		ev.Changed.Value = !valuesEqual(oldValue, n.RawValue())
		ev.Changed.Attrs = !oldAttrs.Equal(n.Attrs())
		c.emit(ev)
	}
	return n
}

// popDirect removes a direct child and fires the delete cascade.
func (c *Container) popDirect(label, reason string) (*Node, bool) {
	n, ok := c.labels.delete(label)
	if !ok {
		return nil, false
	}
	n.setParentContainer(nil)
	recordMutation(EventDelete)
	c.emit(Event{Kind: EventDelete, Container: c, Node: n, Reason: reason})
	return n, true
}

// Clear removes all direct children, firing one delete event per
// child in order.
func (c *Container) Clear(reason string) {
	for _, l := range c.labels.labels() {
		c.popDirect(l, reason)
	}
}

// Subscribe registers container-level callbacks under id.
func (c *Container) Subscribe(id string, cb Callbacks) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.subs == nil {
		c.subs = map[string]Callbacks{}
	}
	c.subs[id] = cb
}

// Unsubscribe is idempotent.
func (c *Container) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, id)
}

// emit fires subscribers at this container (level 0), then walks
// parent_node.parent_container upward, decrementing level, exactly as
// spec.md §4.2's event model describes. Grounded on
// internal/memorystore/level.go's upward/downward walk shape,
// generalized from "apply to every matching buffer" to "fire every
// matching subscriber, then climb to the parent".
func (c *Container) emit(ev Event) {
	if !c.backrefEnabled() {
		return
	}
	cur := c
	level := 0
	for cur != nil {
		e := ev
		e.Container = cur
		e.Level = level
		cur.dispatch(e)

		parentNode := cur.ParentNode()
		if parentNode == nil {
			break
		}
		cur = parentNode.ParentContainer()
		level--
	}
	c.markDirty()
}

func (c *Container) dispatch(ev Event) {
	c.subsMu.Lock()
	cbs := make([]Callbacks, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.subsMu.Unlock()

	for _, cb := range cbs {
		switch ev.Kind {
		case EventInsert:
			if cb.OnInsert != nil {
				cb.OnInsert(ev)
			}
		case EventUpdate:
			if cb.OnUpdate != nil {
				cb.OnUpdate(ev)
			}
		case EventDelete:
			if cb.OnDelete != nil {
				cb.OnDelete(ev)
			}
		}
		if cb.OnAny != nil {
			cb.OnAny(ev)
		}
	}
}

// GetInheritedAttributes accumulates ancestor attrs from the root down
// to this container's owning node, closest (deepest) wins.
func (c *Container) GetInheritedAttributes() map[string]Value {
	var chain []*Container
	for cur := c; cur != nil; {
		chain = append(chain, cur)
		pn := cur.ParentNode()
		if pn == nil {
			break
		}
		cur = pn.ParentContainer()
	}
	out := map[string]Value{}
	for i := len(chain) - 1; i >= 0; i-- {
		pn := chain[i].ParentNode()
		if pn == nil {
			continue
		}
		for k, v := range pn.Attrs().Map() {
			out[k] = v
		}
	}
	return out
}

// Deepcopy recursively copies containers and nodes. Resolvers are
// referenced, not re-run; a resolver node's cached value (if any) is
// re-cached on the copy rather than recomputed (spec.md §4.2
// "deepcopy").
func (c *Container) Deepcopy() *Container {
	out := NewContainer()
	c.labels.each(func(label string, n *Node) bool {
		n.mu.Lock()
		tag := n.tag
		resolver := n.resolver
		cached := n.cached
		hasCached := n.hasCached
		lastLoad := n.lastLoad
		var value Value
		if resolver == nil {
			if cv, ok := IsContainer(n.value); ok {
				value = cv.Deepcopy()
			} else {
				value = n.value
			}
		}
		attrs := n.attrs.Map()
		n.mu.Unlock()

		nn, _, _, _ := out.labels.set(out, label, value, attrs, tag, resolver, PositionEnd, true)
		if resolver != nil {
			nn.mu.Lock()
			nn.cached = cached
			nn.hasCached = hasCached
			nn.lastLoad = lastLoad
			nn.mu.Unlock()
		}
		return true
	})
	return out
}

// Update merges other into c, recursing into matching children that
// are themselves containers (spec.md §4.2 "update").
func (c *Container) Update(other *Container, ignoreNone bool, reason string) {
	other.labels.each(func(label string, n *Node) bool {
		v := n.RawValue()
		if ignoreNone && v == nil {
			return true
		}
		if existing, ok := c.labels.get(label); ok {
			if cv, ok1 := IsContainer(existing.RawValue()); ok1 {
				if ov, ok2 := IsContainer(v); ok2 {
					cv.Update(ov, ignoreNone, reason)
					return true
				}
			}
		}
		var value Value = v
		if cv, ok := IsContainer(v); ok {
			value = cv.Deepcopy()
		}
		c.setDirect(label, value, n.Attrs().Map(), n.RawTag(), n.Resolver(), PositionEnd, reason, true)
		return true
	})
}
