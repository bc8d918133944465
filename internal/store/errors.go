// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"github.com/alcionai/clues/cluerr"
)

// Error label constants, one per spec.md §7 error kind. Use
// cluerr.HasLabel(err, store.LabelPathNotFound) to branch on kind
// instead of sentinel-comparing an unexported error value.
const (
	LabelPathNotFound      = "store_path_not_found"
	LabelParentOfRoot      = "store_parent_of_root"
	LabelCannotDescend     = "store_cannot_descend_into_scalar"
	LabelResolverFailure   = "store_resolver_failure"
	LabelInvalidPathSyntax = "store_invalid_path_syntax"
	LabelCodecMalformed    = "store_codec_malformed"
)

// kindError is a small builder around cluerr.Err: call sites chain
// .with(...) pairs before materializing the final error.
type kindError struct {
	label string
	msg   string
}

var (
	ErrPathNotFound      = kindError{LabelPathNotFound, "path not found"}
	ErrParentOfRoot      = kindError{LabelParentOfRoot, "#parent applied at the root of the tree"}
	ErrCannotDescend     = kindError{LabelCannotDescend, "cannot descend into a non-container value"}
	ErrResolverFailure   = kindError{LabelResolverFailure, "resolver load failed"}
	ErrInvalidPathSyntax = kindError{LabelInvalidPathSyntax, "invalid path syntax"}
	ErrCodecMalformed    = kindError{LabelCodecMalformed, "malformed codec input"}
)

// path returns the error for an offending path string, the context
// key almost every kind needs.
func (k kindError) path(p string) error {
	return cluerr.New(k.msg).Label(k.label).With("path", p)
}

// with builds the error with an arbitrary set of key/value context
// pairs (used where the context is not a path: positional indexes,
// position arguments, unsupported value types, query expressions).
func (k kindError) with(kvs ...any) error {
	return cluerr.New(k.msg).Label(k.label).With(kvs...)
}

// wrap builds the error with a path plus an underlying cause.
func (k kindError) wrap(p string, cause error) error {
	return cluerr.New(k.msg).Label(k.label).With("path", p, "cause", cause.Error())
}

// Is reports whether err carries the given kind's label, so callers
// can do `if store.Is(err, store.ErrPathNotFound) { ... }`.
func Is(err error, kind kindError) bool {
	return cluerr.HasLabel(err, kind.label)
}
