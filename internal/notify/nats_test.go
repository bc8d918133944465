// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

func TestNumericValueRecognisesIntAndFloat(t *testing.T) {
	_, ok := numericValue("not a number")
	require.False(t, ok)

	f, ok := numericValue(int64(42))
	require.True(t, ok)
	require.Equal(t, float64(42), f)

	f, ok = numericValue(3.5)
	require.True(t, ok)
	require.Equal(t, 3.5, f)
}

func TestJSONEventMarshalsEventShape(t *testing.T) {
	root := store.NewContainer()
	root.SetBackref()
	n, err := root.SetItem("x", int64(7), nil, "", nil, store.PositionEnd, "create", true)
	require.NoError(t, err)

	je := jsonEvent{Kind: string(store.EventInsert), Label: n.Label(), Reason: "create", Level: 0}
	data, err := json.Marshal(je)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "x", decoded["label"])
	require.Equal(t, "create", decoded["reason"])
}
