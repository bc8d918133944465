// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolvers

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

// DirectoryResolver walks a filesystem path producing a Container
// whose leaves are file-shaped child resolvers, lazily descended
// (spec.md §4.5 "A directory resolver"). It additionally watches its
// root with fsnotify and calls the supplied invalidate callback on any
// change, adapted from the teacher's internal/util/fswatcher.go
// "notify a Listener on change" idiom into "invalidate a resolver's
// cached value" instead.
type DirectoryResolver struct {
	store.BaseResolver

	root string

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	invalidate func()
}

// NewDirectoryResolver builds a DirectoryResolver rooted at dir.
// invalidate is called (if non-nil) whenever fsnotify observes a
// change under dir; a typical binding is store.ResetNodeCache(node).
func NewDirectoryResolver(dir string, invalidate func(), readOnly bool, cacheTimeSeconds int64) *DirectoryResolver {
	return &DirectoryResolver{
		BaseResolver: store.NewBaseResolver("directory", []store.Value{dir}, nil, nil, readOnly, cacheTimeSeconds),
		root:         dir,
		invalidate:   invalidate,
	}
}

func (r *DirectoryResolver) Load(ctx context.Context, kwargs map[string]store.Value) (store.Value, error) {
	r.watchOnce.Do(r.startWatch)

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}

	c := store.NewContainer()
	c.SetBackref()
	for _, e := range entries {
		full := filepath.Join(r.root, e.Name())
		var child store.Resolver
		if e.IsDir() {
			child = NewDirectoryResolver(full, r.invalidate, r.ReadOnly(), r.CacheTimeSeconds())
		} else {
			child = newFileResolver(full)
		}
		attrs := map[string]store.Value{"is_dir": e.IsDir()}
		if _, err := c.SetItem(e.Name(), nil, attrs, "", child, store.PositionEnd, "directory-resolver", true); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// startWatch arms an fsnotify watch on the resolver's root directory;
// failures to watch (e.g. the platform lacks inotify) are swallowed,
// since the resolver's own TTL still bounds staleness.
func (r *DirectoryResolver) startWatch() {
	if r.invalidate == nil {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := w.Add(r.root); err != nil {
		w.Close()
		return
	}
	r.watcher = w
	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				r.invalidate()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// fileResolver is a read_only leaf resolver returning one file's raw
// bytes on load, the unit DirectoryResolver lazily descends into.
type fileResolver struct {
	store.BaseResolver
	path string
}

func newFileResolver(path string) *fileResolver {
	return &fileResolver{
		BaseResolver: store.NewBaseResolver("file", []store.Value{path}, nil, nil, true, 0),
		path:         path,
	}
}

func (f *fileResolver) Load(ctx context.Context, kwargs map[string]store.Value) (store.Value, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return data, nil
}
