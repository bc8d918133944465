// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"github.com/alcionai/clues/cluerr"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

type kindError struct {
	label string
	msg   string
}

// ErrMalformed covers every codec-layer failure: bad suffix, bad
// base64/date/decimal body, row parented at an unknown path, row
// referencing an undeclared compact-mode code.
var ErrMalformed = kindError{store.LabelCodecMalformed, "malformed codec input"}

func (k kindError) with(kvs ...any) error {
	return cluerr.New(k.msg).Label(k.label).With(kvs...)
}

func (k kindError) wrap(context string, cause error) error {
	return cluerr.New(k.msg).Label(k.label).With("context", context, "cause", cause.Error())
}
