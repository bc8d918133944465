// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the type-preserving TYTX wire format and
// the legacy typed-XML reader over internal/store's tree model.
package codec

import (
	"github.com/genropy/genro-bag-sub000/internal/store"
)

// ContainerSentinel is the flattener's marker for a node whose value
// is a nested container: "value" in the row is this literal string,
// and the decoder knows to create an empty container and keep
// replaying rows parented at that path (spec.md §4.4).
const ContainerSentinel = "::X"

// Row is one tuple of the flattener's depth-first stream.
type Row struct {
	Parent string // dotted path of the containing container, "" for root
	Label  string
	Tag    string
	Value  store.Value // raw value, or ContainerSentinel for a nested container
	Attrs  map[string]store.Value
}

// Flatten yields the depth-first, pre-order, parent-before-children
// row sequence of spec.md §4.4's Flattener (C6). It is a finite,
// non-restartable generator: yield returning false stops the walk,
// exactly like the stdlib `iter.Seq`-shaped range-over-func iterators
// this mirrors.
func Flatten(root *store.Container, yield func(Row) bool) {
	flattenInto(root, "", yield)
}

func flattenInto(c *store.Container, parentPath string, yield func(Row) bool) bool {
	cont := true
	c.EachItem(func(label string, n *store.Node) bool {
		raw := n.RawValue()
		row := Row{
			Parent: parentPath,
			Label:  label,
			Tag:    n.RawTag(),
			Attrs:  n.Attrs().Map(),
		}

		childPath := label
		if parentPath != "" {
			childPath = parentPath + "." + label
		}

		if cv, ok := store.IsContainer(raw); ok {
			row.Value = ContainerSentinel
			if !yield(row) {
				cont = false
				return false
			}
			if !flattenInto(cv, childPath, yield) {
				cont = false
				return false
			}
			return true
		}

		if r, ok := store.IsResolver(raw); ok {
			// A node whose value is an unresolved resolver is emitted
			// with the resolver's serialised form recorded as a special
			// attribute, and a null value slot (spec.md §4.5).
			desc := r.Serialise()
			if row.Attrs == nil {
				row.Attrs = map[string]store.Value{}
			}
			row.Attrs["_resolver"] = desc
			row.Value = nil
			if !yield(row) {
				cont = false
				return false
			}
			return true
		}

		row.Value = raw
		if !yield(row) {
			cont = false
			return false
		}
		return true
	})
	return cont
}
