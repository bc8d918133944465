// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gateway is a minimal, explicitly non-core HTTP transport
// over a Store Container, the concrete instance of spec.md §1's
// "external gateway" note.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/genropy/genro-bag-sub000/internal/store"
	"github.com/genropy/genro-bag-sub000/pkg/log"
)

// Server exposes a read surface (GET) and a guarded admin surface
// (PUT/DELETE) over root.
type Server struct {
	root      *store.Container
	router    *mux.Router
	sessions  *sessions.CookieStore
	adminAuth func(*http.Request) bool
}

// NewServer builds a gateway.Server. sessionKey seeds a
// gorilla/sessions cookie store that no route reads; adminAuth alone
// decides whether a PUT/DELETE request is authorized.
func NewServer(root *store.Container, sessionKey []byte, adminAuth func(*http.Request) bool) *Server {
	s := &Server{
		root:      root,
		router:    mux.NewRouter(),
		sessions:  sessions.NewCookieStore(sessionKey),
		adminAuth: adminAuth,
	}
	s.routes()
	return s
}

// Handler wraps the router in gorilla/handlers logging and panic
// recovery middleware, matching the teacher's own HTTP stack shape.
func (s *Server) Handler() http.Handler {
	return handlers.RecoveryHandler()(handlers.LoggingHandler(log.InfoWriter, s.router))
}

func (s *Server) routes() {
	s.router.HandleFunc("/bag/{path:.*}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/bag/{path:.*}", s.requireAdmin(s.handlePut)).Methods(http.MethodPut)
	s.router.HandleFunc("/bag/{path:.*}", s.requireAdmin(s.handleDelete)).Methods(http.MethodDelete)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	if _, ok := r.URL.Query()["keys"]; ok {
		v, err := s.root.GetE(r.Context(), path+"?#keys")
		writeJSON(w, v, err)
		return
	}

	v, err := s.root.GetE(r.Context(), path)
	writeJSON(w, v, err)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	var payload struct {
		Value store.Value `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.root.SetItem(path, payload.Value, nil, "", nil, store.PositionEnd, "gateway-put", true); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	if n := s.root.PopNode(path, nil, "gateway-delete"); n == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminAuth != nil && !s.adminAuth(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v store.Value, err error) {
	if err != nil {
		if store.Is(err, store.ErrPathNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
