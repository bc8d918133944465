// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"strings"
)

type segKind int

const (
	segLabel segKind = iota
	segIndex
	segParent
	segParentEq
)

type segment struct {
	kind  segKind
	label string
	index int
}

// parsedPath is the tokenizer's output: the dotted segment chain plus
// an optional trailing selector recognised only at the outermost
// entry point (spec.md §4.3 "Special last-segment selectors").
type parsedPath struct {
	segments []segment
	selector string // "", "#attr", "#keys", "#node", "#digest:<spec>", or a literal attribute name
}

// tokenize implements spec.md §4.3's grammar: `../` sugar, `#N`
// positional segments, `#parent`/`#parent=<label>`, and a trailing
// `?selector` split off before the dotted segments are parsed.
func tokenize(path string) (parsedPath, error) {
	rewritten := strings.ReplaceAll(path, "../", "#parent.")

	main := rewritten
	selector := ""
	if i := strings.IndexByte(rewritten, '?'); i >= 0 {
		main = rewritten[:i]
		selector = rewritten[i+1:]
		if strings.ContainsRune(selector, '?') {
			return parsedPath{}, ErrInvalidPathSyntax.path(path)
		}
	}

	if main == "" {
		return parsedPath{selector: selector}, nil
	}

	rawToks := strings.Split(main, ".")
	segs := make([]segment, 0, len(rawToks))
	for _, tok := range rawToks {
		if tok == "" {
			return parsedPath{}, ErrInvalidPathSyntax.path(path)
		}
		switch {
		case tok == "#parent":
			segs = append(segs, segment{kind: segParent})
		case strings.HasPrefix(tok, "#parent="):
			segs = append(segs, segment{kind: segParentEq, label: strings.TrimPrefix(tok, "#parent=")})
		case strings.HasPrefix(tok, "#"):
			idx, err := parsePositionalIndex(tok[1:])
			if err != nil {
				return parsedPath{}, err
			}
			segs = append(segs, segment{kind: segIndex, index: idx})
		default:
			segs = append(segs, segment{kind: segLabel, label: tok})
		}
	}
	return parsedPath{segments: segs, selector: selector}, nil
}

// traverseResult is what both traversal flavours produce: the
// container holding the addressed slot, and the label within it, or
// "" if the path itself (e.g. a bare `#parent`) designates the
// container as a whole rather than one of its children.
type traverseResult struct {
	container *Container
	label     string
}

// parentFrame remembers, for one not-yet-completed label/index hop,
// the container it was taken from and the label it resolved to. A
// following `#parent`/`#parent=<label>` segment undoes that hop by
// popping this frame — the same `a/b/..` collapse a filesystem path
// performs, which spec.md §4.3 requires even when `b` isn't itself
// container-valued (`../` and `#parent` are declared equivalent).
type parentFrame struct {
	container *Container
	label     string
}

// nextCancelsHop reports whether segs[i+1] is a #parent segment that
// will immediately undo segs[i], meaning segs[i] never needs to be
// descended into.
func nextCancelsHop(segs []segment, i int) bool {
	if i+1 >= len(segs) {
		return false
	}
	k := segs[i+1].kind
	return k == segParent || k == segParentEq
}

// popParent resolves one #parent/#parent=<label> segment: it undoes
// the most recently recorded hop when one is pending (pure path
// collapse, no container requirement on the undone hop), otherwise it
// ascends from cur via the live parent back-link.
func popParent(stack *[]parentFrame, cur *Container, s segment) (*Container, error) {
	if n := len(*stack); n > 0 {
		top := (*stack)[n-1]
		*stack = (*stack)[:n-1]
		if s.kind == segParentEq && top.label != s.label {
			return nil, ErrPathNotFound.path("#parent=" + s.label)
		}
		return top.container, nil
	}
	pn := cur.ParentNode()
	if pn == nil {
		return nil, ErrParentOfRoot.path("#parent")
	}
	if s.kind == segParentEq && pn.Label() != s.label {
		return nil, ErrPathNotFound.path("#parent=" + s.label)
	}
	parentContainer := pn.ParentContainer()
	if parentContainer == nil {
		return nil, ErrParentOfRoot.path("#parent")
	}
	return parentContainer, nil
}

// writeTraverse is the sync, non-resolving traversal used by every
// setter (spec.md §4.3 "Write traversal"). autocreate materialises
// missing or non-container intermediates as empty containers.
func writeTraverse(root *Container, segs []segment, autocreate bool) (traverseResult, error) {
	cur := root
	var stack []parentFrame
	for i, s := range segs {
		last := i == len(segs)-1
		switch s.kind {
		case segLabel:
			if last {
				return traverseResult{cur, s.label}, nil
			}
			stack = append(stack, parentFrame{cur, s.label})
			if nextCancelsHop(segs, i) {
				continue
			}
			next := stepLabelWrite(cur, s.label, autocreate)
			if next == nil {
				return traverseResult{}, ErrPathNotFound.path(s.label)
			}
			cur = next
		case segIndex:
			n, ok := cur.labels.getAt(s.index)
			if !ok {
				return traverseResult{}, ErrPathNotFound.with("index", s.index)
			}
			if last {
				return traverseResult{cur, n.Label()}, nil
			}
			stack = append(stack, parentFrame{cur, n.Label()})
			if nextCancelsHop(segs, i) {
				continue
			}
			next, err := descendWrite(n, autocreate)
			if err != nil {
				return traverseResult{}, err
			}
			cur = next
		case segParent, segParentEq:
			next, err := popParent(&stack, cur, s)
			if err != nil {
				return traverseResult{}, err
			}
			cur = next
			if last {
				return traverseResult{cur, ""}, nil
			}
		}
	}
	return traverseResult{cur, ""}, nil
}

// stepLabelWrite resolves one non-terminal label segment for write
// traversal, auto-creating per spec.md's "Auto-create rule".
func stepLabelWrite(cur *Container, label string, autocreate bool) *Container {
	n, ok := cur.labels.get(label)
	if !ok {
		if !autocreate {
			return nil
		}
		child := NewContainer()
		child.SetBackref()
		n = cur.setDirect(label, child, nil, "", nil, PositionEnd, "autocreate", true)
		return child
	}
	if cv, ok := IsContainer(n.RawValue()); ok {
		return cv
	}
	if !autocreate {
		return nil
	}
	child := NewContainer()
	child.SetBackref()
	cur.setDirect(label, child, n.Attrs().Map(), n.RawTag(), nil, PositionEnd, "autocreate-replace", true)
	return child
}

func descendWrite(n *Node, autocreate bool) (*Container, error) {
	if cv, ok := IsContainer(n.RawValue()); ok {
		return cv, nil
	}
	if !autocreate {
		return nil, ErrPathNotFound.path(n.Label())
	}
	child := NewContainer()
	child.SetBackref()
	if parent := n.ParentContainer(); parent != nil {
		parent.setDirect(n.Label(), child, n.Attrs().Map(), n.RawTag(), nil, PositionEnd, "autocreate-replace", true)
	}
	return child, nil
}

// readTraverse is the async-capable, resolving traversal used by
// get/get_node (spec.md §4.3 "Read traversal"). static=true suppresses
// resolver invocation, matching the path engine's `static` call-site
// flag.
func readTraverse(ctx context.Context, root *Container, segs []segment, static bool) (traverseResult, error) {
	cur := root
	var stack []parentFrame
	for i, s := range segs {
		last := i == len(segs)-1
		switch s.kind {
		case segLabel:
			if last {
				if _, ok := cur.labels.get(s.label); !ok {
					return traverseResult{}, ErrPathNotFound.path(s.label)
				}
				return traverseResult{cur, s.label}, nil
			}
			n, ok := cur.labels.get(s.label)
			if !ok {
				return traverseResult{}, ErrPathNotFound.path(s.label)
			}
			stack = append(stack, parentFrame{cur, s.label})
			if nextCancelsHop(segs, i) {
				continue
			}
			next, err := descendRead(ctx, n, static)
			if err != nil {
				return traverseResult{}, err
			}
			cur = next
		case segIndex:
			n, ok := cur.labels.getAt(s.index)
			if !ok {
				return traverseResult{}, ErrPathNotFound.with("index", s.index)
			}
			if last {
				return traverseResult{cur, n.Label()}, nil
			}
			stack = append(stack, parentFrame{cur, n.Label()})
			if nextCancelsHop(segs, i) {
				continue
			}
			next, err := descendRead(ctx, n, static)
			if err != nil {
				return traverseResult{}, err
			}
			cur = next
		case segParent, segParentEq:
			next, err := popParent(&stack, cur, s)
			if err != nil {
				return traverseResult{}, err
			}
			cur = next
			if last {
				return traverseResult{cur, ""}, nil
			}
		}
	}
	return traverseResult{cur, ""}, nil
}

// descendRead resolves node n's value into a container for onward
// navigation, invoking its resolver when present and static reads are
// not requested (spec.md §4.5 "Remaining-path handoff").
func descendRead(ctx context.Context, n *Node, static bool) (*Container, error) {
	if static {
		cv, ok := IsContainer(n.RawValue())
		if !ok {
			return nil, ErrCannotDescend.path(n.Label())
		}
		return cv, nil
	}
	v, err := ResolveNode(ctx, n, nil)
	if err != nil {
		return nil, ErrResolverFailure.wrap(n.Label(), err)
	}
	cv, ok := IsContainer(v)
	if !ok {
		return nil, ErrCannotDescend.path(n.Label())
	}
	return cv, nil
}
