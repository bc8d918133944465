// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolvers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

func TestDirectoryResolverListsFilesAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	r := NewDirectoryResolver(dir, nil, true, -1)
	c := store.NewContainer()
	n, err := c.SetItem("root", nil, nil, "", r, store.PositionEnd, "test", true)
	require.NoError(t, err)

	v, err := store.ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	listing, ok := store.IsContainer(v)
	require.True(t, ok)

	fileNode, ok := listing.GetNodeDirect("a.txt")
	require.True(t, ok)
	require.Equal(t, false, func() store.Value { v, _ := fileNode.Attr("is_dir"); return v }())
	require.IsType(t, &fileResolver{}, fileNode.Resolver())

	subNode, ok := listing.GetNodeDirect("sub")
	require.True(t, ok)
	require.Equal(t, true, func() store.Value { v, _ := subNode.Attr("is_dir"); return v }())
	require.IsType(t, &DirectoryResolver{}, subNode.Resolver())
}

func TestFileResolverReadsFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	r := newFileResolver(path)
	c := store.NewContainer()
	n, err := c.SetItem("f", nil, nil, "", r, store.PositionEnd, "test", true)
	require.NoError(t, err)

	v, err := store.ResolveNode(context.Background(), n, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), v)
}

func TestDirectoryResolverMissingRootErrors(t *testing.T) {
	r := NewDirectoryResolver(filepath.Join(t.TempDir(), "does-not-exist"), nil, true, -1)
	c := store.NewContainer()
	n, err := c.SetItem("root", nil, nil, "", r, store.PositionEnd, "test", true)
	require.NoError(t, err)

	_, err = store.ResolveNode(context.Background(), n, nil)
	require.Error(t, err)
}
