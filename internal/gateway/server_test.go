// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genropy/genro-bag-sub000/internal/store"
)

func newTestServer(t *testing.T, adminAuth func(*http.Request) bool) (*Server, *store.Container) {
	t.Helper()
	root := store.NewContainer()
	root.SetBackref()
	_, err := root.SetItem("name", "alice", nil, "", nil, store.PositionEnd, "create", true)
	require.NoError(t, err)
	return NewServer(root, []byte("test-session-key-0123456789"), adminAuth), root
}

func TestHandleGetReturnsValue(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/bag/name", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "\"alice\"\n", rec.Body.String())
}

func TestHandleGetMissingPathReturns404(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/bag/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetKeysSelector(t *testing.T) {
	srv, root := newTestServer(t, nil)
	_, err := root.SetItem("c.a", int64(1), nil, "", nil, store.PositionEnd, "create", true)
	require.NoError(t, err)
	_, err = root.SetItem("c.b", int64(2), nil, "", nil, store.PositionEnd, "create", true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/bag/c?keys", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["a","b"]`, rec.Body.String())
}

func TestHandlePutRequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t, func(r *http.Request) bool { return false })

	req := httptest.NewRequest(http.MethodPut, "/bag/name", bytes.NewReader([]byte(`{"value":"bob"}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlePutWritesValueWhenAuthorized(t *testing.T) {
	srv, root := newTestServer(t, func(r *http.Request) bool { return true })

	req := httptest.NewRequest(http.MethodPut, "/bag/name", bytes.NewReader([]byte(`{"value":"bob"}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "bob", root.Get(context.Background(), "name", nil))
}

func TestHandleDeleteRemovesNode(t *testing.T) {
	srv, root := newTestServer(t, func(r *http.Request) bool { return true })

	req := httptest.NewRequest(http.MethodDelete, "/bag/name", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, root.Contains("name"))
}

func TestHandleDeleteMissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t, func(r *http.Request) bool { return true })

	req := httptest.NewRequest(http.MethodDelete, "/bag/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
