// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"strings"
)

// resolveNodeAt returns the node designated by a traverseResult,
// substituting the container's owning node when label == "" (a bare
// `#parent`/root target).
func resolveNodeAt(tr traverseResult) (*Node, bool) {
	if tr.label == "" {
		pn := tr.container.ParentNode()
		return pn, pn != nil
	}
	return tr.container.labels.get(tr.label)
}

// GetE reads path, resolving any resolvers encountered along the way,
// and returns the error rather than swallowing it (spec.md §4.2
// `get`, error-propagating variant).
func (c *Container) GetE(ctx context.Context, path string) (Value, error) {
	pp, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	if len(pp.segments) == 0 && pp.selector == "" {
		return nil, ErrInvalidPathSyntax.path(path)
	}

	tr, err := readTraverse(ctx, c, pp.segments, false)
	if err != nil {
		return nil, err
	}
	return applySelector(ctx, tr, pp.selector)
}

// Get reads path and returns def on ANY traversal or resolver error
// (path-not-found, cannot-descend, parent-of-root, resolver failure
// alike) — the decision recorded in DESIGN.md under "Get's
// default-value contract".
func (c *Container) Get(ctx context.Context, path string, def Value) Value {
	v, err := c.GetE(ctx, path)
	if err != nil {
		return def
	}
	return v
}

// applySelector implements spec.md §4.3's literal trailing-selector
// grammar: `?attr` returns the named attribute's value, while the
// four `#`-prefixed forms address the node/container as a whole
// (`?#attr` the full attribute map, `?#keys` the child labels,
// `?#node` the node object, `?#digest:<spec>` a query result).
func applySelector(ctx context.Context, tr traverseResult, selector string) (Value, error) {
	switch {
	case selector == "":
		if tr.label == "" {
			return tr.container, nil
		}
		n, ok := tr.container.labels.get(tr.label)
		if !ok {
			return nil, ErrPathNotFound.path(tr.label)
		}
		return ResolveNode(ctx, n, nil)

	case selector == "#attr":
		n, ok := resolveNodeAt(tr)
		if !ok {
			return nil, ErrPathNotFound.path(tr.label)
		}
		return n.Attrs().Map(), nil

	case selector == "#keys":
		cont, err := containerAt(ctx, tr)
		if err != nil {
			return nil, err
		}
		return cont.Labels(), nil

	case selector == "#node":
		n, ok := resolveNodeAt(tr)
		if !ok {
			return nil, ErrPathNotFound.path(tr.label)
		}
		return n, nil

	case strings.HasPrefix(selector, "#digest:"):
		cont, err := containerAt(ctx, tr)
		if err != nil {
			return nil, err
		}
		return cont.Query(strings.TrimPrefix(selector, "#digest:"), QueryOptions{})

	case strings.HasPrefix(selector, "#"):
		return nil, ErrInvalidPathSyntax.path(selector)

	default:
		n, ok := resolveNodeAt(tr)
		if !ok {
			return nil, ErrPathNotFound.path(tr.label)
		}
		v, ok := n.Attr(selector)
		if !ok {
			return nil, ErrPathNotFound.path(selector)
		}
		return v, nil
	}
}

// containerAt returns the container a selector like ?#keys/?#digest
// applies to: the node's resolved container value, or tr.container
// itself when the terminal segment was a bare #parent.
func containerAt(ctx context.Context, tr traverseResult) (*Container, error) {
	if tr.label == "" {
		return tr.container, nil
	}
	n, ok := tr.container.labels.get(tr.label)
	if !ok {
		return nil, ErrPathNotFound.path(tr.label)
	}
	v, err := ResolveNode(ctx, n, nil)
	if err != nil {
		return nil, err
	}
	cv, ok := IsContainer(v)
	if !ok {
		return nil, ErrCannotDescend.path(tr.label)
	}
	return cv, nil
}

// GetNode returns the node at path. With autocreate, missing
// intermediates (and the terminal node itself, empty-valued) are
// materialised via the write traversal; without, it is a pure
// resolving read (spec.md §4.2 `get_node`).
func (c *Container) GetNode(ctx context.Context, path string, autocreate bool) (*Node, error) {
	pp, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	if len(pp.segments) == 0 {
		return nil, ErrInvalidPathSyntax.path(path)
	}

	if autocreate {
		tr, err := writeTraverse(c, pp.segments, true)
		if err != nil {
			return nil, err
		}
		n, ok := resolveNodeAt(tr)
		if !ok {
			n = tr.container.setDirect(tr.label, nil, nil, "", nil, PositionEnd, "autocreate", true)
		}
		return n, nil
	}

	tr, err := readTraverse(ctx, c, pp.segments, false)
	if err != nil {
		return nil, err
	}
	n, ok := resolveNodeAt(tr)
	if !ok {
		return nil, ErrPathNotFound.path(path)
	}
	return n, nil
}

// GetNodeOr is GetNode's default-swallowing counterpart.
func (c *Container) GetNodeOr(ctx context.Context, path string, def *Node) *Node {
	n, err := c.GetNode(ctx, path, false)
	if err != nil {
		return def
	}
	return n
}

// SetItem creates or updates the node at path, auto-creating
// intermediate containers as needed (spec.md §4.2 `set_item`).
func (c *Container) SetItem(path string, value Value, attrs map[string]Value, tag string, resolver Resolver, pos Position, reason string, removeNulls bool) (*Node, error) {
	if path == "" {
		return nil, ErrInvalidPathSyntax.path(path)
	}
	pp, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	if pp.selector != "" {
		return nil, ErrInvalidPathSyntax.path(path)
	}
	if len(pp.segments) == 0 {
		return nil, ErrInvalidPathSyntax.path(path)
	}

	tr, err := writeTraverse(c, pp.segments, true)
	if err != nil {
		return nil, err
	}
	if tr.label == "" {
		return nil, ErrInvalidPathSyntax.path(path)
	}
	return tr.container.setDirect(tr.label, value, attrs, tag, resolver, pos, reason, removeNulls), nil
}

// Pop removes the value at path and returns it, or def on any error.
func (c *Container) Pop(path string, def Value, reason string) Value {
	n, ok := c.popAt(path, reason)
	if !ok {
		return def
	}
	return n.RawValue()
}

// PopNode removes and returns the node at path, or def on any error.
func (c *Container) PopNode(path string, def *Node, reason string) *Node {
	n, ok := c.popAt(path, reason)
	if !ok {
		return def
	}
	return n
}

func (c *Container) popAt(path, reason string) (*Node, bool) {
	pp, err := tokenize(path)
	if err != nil || len(pp.segments) == 0 {
		return nil, false
	}
	tr, err := writeTraverse(c, pp.segments, false)
	if err != nil || tr.label == "" {
		return nil, false
	}
	return tr.container.popDirect(tr.label, reason)
}

// SetAttr sets attributes on the node at path.
func (c *Container) SetAttr(path string, attrs map[string]Value, removeNulls bool) error {
	pp, err := tokenize(path)
	if err != nil || len(pp.segments) == 0 {
		return ErrInvalidPathSyntax.path(path)
	}
	tr, err := writeTraverse(c, pp.segments, false)
	if err != nil {
		return err
	}
	n, ok := resolveNodeAt(tr)
	if !ok {
		return ErrPathNotFound.path(path)
	}
	for k, v := range attrs {
		n.SetAttr(k, v, removeNulls)
	}
	n.fireLocal("set_attr")
	return nil
}

// GetAttr returns one attribute of the node at path, or def on any error.
func (c *Container) GetAttr(path, attr string, def Value) Value {
	pp, err := tokenize(path)
	if err != nil || len(pp.segments) == 0 {
		return def
	}
	tr, err := readTraverse(context.Background(), c, pp.segments, true)
	if err != nil {
		return def
	}
	n, ok := resolveNodeAt(tr)
	if !ok {
		return def
	}
	v, ok := n.Attr(attr)
	if !ok {
		return def
	}
	return v
}

// DelAttr removes the named attributes from the node at path.
func (c *Container) DelAttr(path string, keys ...string) error {
	pp, err := tokenize(path)
	if err != nil || len(pp.segments) == 0 {
		return ErrInvalidPathSyntax.path(path)
	}
	tr, err := writeTraverse(c, pp.segments, false)
	if err != nil {
		return err
	}
	n, ok := resolveNodeAt(tr)
	if !ok {
		return ErrPathNotFound.path(path)
	}
	for _, k := range keys {
		n.DeleteAttr(k)
	}
	return nil
}

// Call is the `__call__` convenience of spec.md §4.2: with no path it
// returns direct-child labels, with a path the value at that path.
func (c *Container) Call(ctx context.Context, path string) Value {
	if path == "" {
		return c.Labels()
	}
	return c.Get(ctx, path, nil)
}
