// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/genropy/genro-bag-sub000/pkg/log"
)

var registerHookedDriverOnce sync.Once

// queryLogHook instruments every query through the hooked driver,
// the same qustavo/sqlhooks pattern the teacher uses over its job
// database.
type queryLogHook struct{}

type hookStartKey struct{}

func (queryLogHook) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	return context.WithValue(ctx, hookStartKey{}, time.Now()), nil
}

func (queryLogHook) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	if start, ok := ctx.Value(hookStartKey{}).(time.Time); ok {
		log.Debugf("snapshot: query %q took %s", query, time.Since(start))
	}
	return ctx, nil
}

// SQLiteBackend stores snapshots as rows in a local SQLite database.
type SQLiteBackend struct {
	db *sqlx.DB
}

// NewSQLiteBackend opens (creating if absent) a SQLite database at
// path and ensures its snapshots table exists.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	registerHookedDriverOnce.Do(func() {
		sql.Register("sqlite3-hooked", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, queryLogHook{}))
	})

	db, err := sqlx.Connect("sqlite3-hooked", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, name string, tytx []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, tytx, time.Now())
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.GetContext(ctx, &data, `SELECT data FROM snapshots WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot: %q not found", name)
	}
	return data, err
}

func (b *SQLiteBackend) List(ctx context.Context) ([]string, error) {
	var names []string
	err := b.db.SelectContext(ctx, &names, `SELECT name FROM snapshots ORDER BY name`)
	return names, err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
