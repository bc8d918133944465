// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// QueryOptions configures Query/Walk, spec.md §4.6.
type QueryOptions struct {
	Condition func(label, path string, n *Node) bool
	Deep      bool
	Leaf      *bool // nil: either; true: only leaves; false: only branches (container values)
	Branch    *bool
	Limit     int
}

// ExprNodeView is what an expr-lang/expr condition expression sees:
// a flat projection of a node, matching the teacher's own use of
// expr-lang/expr to filter job records by a compiled condition.
type ExprNodeView struct {
	Label string
	Value Value
	Attrs map[string]Value
	Tag   string
	Path  string
}

// ExprCondition compiles src once and returns a Condition that
// evaluates it against an ExprNodeView per node.
func ExprCondition(src string) (func(label, path string, n *Node) bool, error) {
	program, err := expr.Compile(src, expr.Env(ExprNodeView{}))
	if err != nil {
		return nil, ErrInvalidPathSyntax.with("reason", "bad query expression", "expr", src, "cause", err.Error())
	}
	return exprConditionFunc(program), nil
}

func exprConditionFunc(program *vm.Program) func(label, path string, n *Node) bool {
	return func(label, path string, n *Node) bool {
		out, err := expr.Run(program, ExprNodeView{
			Label: label,
			Value: n.RawValue(),
			Attrs: n.Attrs().Map(),
			Tag:   n.Tag(),
			Path:  path,
		})
		if err != nil {
			return false
		}
		b, _ := out.(bool)
		return b
	}
}

// Walk visits every node reachable from c in pre-order, descending
// into container-valued children. visit returning false stops the
// walk early (spec.md §4.6 "walk" callback mode).
func (c *Container) Walk(visit func(path string, n *Node) bool) {
	c.walk("", visit)
}

func (c *Container) walk(prefix string, visit func(path string, n *Node) bool) bool {
	cont := true
	c.labels.each(func(label string, n *Node) bool {
		path := label
		if prefix != "" {
			path = prefix + "." + label
		}
		if !visit(path, n) {
			cont = false
			return false
		}
		if cv, ok := IsContainer(n.RawValue()); ok {
			if !cv.walk(path, visit) {
				cont = false
				return false
			}
		}
		return true
	})
	return cont
}

// Query projects selected fields over matching nodes, per spec.md
// §4.6. A single selector yields []Value; multiple CSV selectors
// yield [][]Value (tuples), always returned as []any for a uniform
// signature.
func (c *Container) Query(what string, opts QueryOptions) ([]any, error) {
	selectors := strings.Split(what, ",")
	for i := range selectors {
		selectors[i] = strings.TrimSpace(selectors[i])
	}

	var out []any
	visit := func(path string, n *Node) bool {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			return false
		}
		label := n.Label()
		_, isContainer := IsContainer(n.RawValue())
		if opts.Leaf != nil && *opts.Leaf == isContainer {
			return true
		}
		if opts.Branch != nil && *opts.Branch && !isContainer {
			return true
		}
		if opts.Condition != nil && !opts.Condition(label, path, n) {
			return true
		}

		if len(selectors) == 1 {
			v, err := projectOne(selectors[0], label, path, n)
			if err == nil {
				out = append(out, v)
			}
			return true
		}
		tuple := make([]any, 0, len(selectors))
		for _, sel := range selectors {
			v, err := projectOne(sel, label, path, n)
			if err != nil {
				v = nil
			}
			tuple = append(tuple, v)
		}
		out = append(out, tuple)
		return opts.Limit <= 0 || len(out) < opts.Limit
	}

	if opts.Deep {
		c.walk("", visit)
	} else {
		c.labels.each(func(label string, n *Node) bool { return visit(label, n) })
	}
	return out, nil
}

// Digest is the back-compat alias for Query noted in spec.md §4.2.
func (c *Container) Digest(what string, opts QueryOptions) ([]any, error) {
	return c.Query(what, opts)
}

func projectOne(selector, label, path string, n *Node) (Value, error) {
	switch {
	case selector == "#k":
		return label, nil
	case selector == "#v":
		return n.RawValue(), nil
	case selector == "#p":
		return path, nil
	case selector == "#__v":
		return n, nil
	case strings.HasPrefix(selector, "#a."):
		v, ok := n.Attr(strings.TrimPrefix(selector, "#a."))
		if !ok {
			return nil, ErrPathNotFound.path(selector)
		}
		return v, nil
	default:
		cv, ok := IsContainer(n.RawValue())
		if !ok {
			return nil, ErrCannotDescend.path(selector)
		}
		return cv.GetE(context.Background(), selector)
	}
}

// sortKey is one parsed CSV component of Sort's key argument.
type sortKey struct {
	selector        string
	ascending       bool
	caseInsensitive bool
}

// Sort reorders direct children in place by a CSV of selectors, each
// optionally suffixed `:a`/`:A`/`:d`/`:D` (spec.md §4.2 "sort").
// Default key is "#k:a". The sort is stable.
func (c *Container) Sort(key string) error {
	if key == "" {
		key = "#k:a"
	}
	parts := strings.Split(key, ",")
	keys := make([]sortKey, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		sk := sortKey{selector: p, ascending: true, caseInsensitive: true}
		if i := strings.LastIndexByte(p, ':'); i >= 0 && i == len(p)-2 {
			mode := p[i+1:]
			sk.selector = p[:i]
			switch mode {
			case "a":
				sk.ascending, sk.caseInsensitive = true, true
			case "A":
				sk.ascending, sk.caseInsensitive = true, false
			case "d":
				sk.ascending, sk.caseInsensitive = false, true
			case "D":
				sk.ascending, sk.caseInsensitive = false, false
			default:
				sk.selector = p
			}
		}
		keys = append(keys, sk)
	}

	labels := c.labels.labels()
	sort.SliceStable(labels, func(i, j int) bool {
		ni, _ := c.labels.get(labels[i])
		nj, _ := c.labels.get(labels[j])
		for _, k := range keys {
			vi, _ := projectOne(k.selector, labels[i], labels[i], ni)
			vj, _ := projectOne(k.selector, labels[j], labels[j], nj)
			cmp := compareValues(vi, vj, k.caseInsensitive)
			if cmp == 0 {
				continue
			}
			if k.ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	c.labels.reorder(labels)
	return nil
}

func compareValues(a, b Value, caseInsensitive bool) int {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		if caseInsensitive {
			as, bs = strings.ToLower(as), strings.ToLower(bs)
		}
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strconvFallback(a), strconvFallback(b))
}

func strconvFallback(v Value) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	default:
		return 0, false
	}
}

// Sum numerically folds what over Query's result set (spec.md §4.2
// "sum").
func (c *Container) Sum(what string, opts QueryOptions) (decimal.Decimal, error) {
	vals, err := c.Query(what, opts)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range vals {
		switch n := v.(type) {
		case decimal.Decimal:
			total = total.Add(n)
		case int64:
			total = total.Add(decimal.NewFromInt(n))
		case int:
			total = total.Add(decimal.NewFromInt(int64(n)))
		case float64:
			total = total.Add(decimal.NewFromFloat(n))
		}
	}
	return total, nil
}
