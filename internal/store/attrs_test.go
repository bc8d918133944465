// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderedAttrsSetGetDeleteOrder(t *testing.T) {
	a := newOrderedAttrs()
	a.Set("b", 2, true)
	a.Set("a", 1, true)
	require.Equal(t, []string{"b", "a"}, a.Keys())

	v, ok := a.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.True(t, a.Delete("b"))
	require.Equal(t, []string{"a"}, a.Keys())
	require.False(t, a.Delete("b"))
}

func TestOrderedAttrsSetNilRemovesWhenRemoveNullsTrue(t *testing.T) {
	a := newOrderedAttrs()
	a.Set("k", "v", true)
	a.Set("k", nil, true)
	_, ok := a.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, a.Len())
}

func TestOrderedAttrsSetNilKeepsWhenRemoveNullsFalse(t *testing.T) {
	a := newOrderedAttrs()
	a.Set("k", nil, false)
	v, ok := a.Get("k")
	require.True(t, ok)
	require.Nil(t, v)
}

func TestOrderedAttrsCopyIsIndependent(t *testing.T) {
	a := newOrderedAttrs()
	a.Set("k", "v", true)
	b := a.Copy()
	b.Set("k", "changed", true)

	orig, _ := a.Get("k")
	require.Equal(t, "v", orig)
}
