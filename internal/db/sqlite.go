// Package db opens the SQLite metadata store that holds explores and user
// attributes, and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Mode selects how a pool is configured for the metadata store.
type Mode string

// Pool modes. SQLite allows one writer at a time, so the write pool holds a
// single connection and takes the write lock when a transaction begins.
const (
	ModeWrite Mode = "write"
	ModeRead  Mode = "read"
)

const (
	defaultReadConns = 4
	pingTimeout      = 5 * time.Second
)

// pragmas are applied to every connection of both pools.
var pragmas = [][2]string{
	{"_journal_mode", "WAL"},
	{"_busy_timeout", "5000"},
	{"_synchronous", "NORMAL"},
	{"_foreign_keys", "on"},
}

// Open opens a pool in the given mode. maxOpen only applies to read pools;
// 0 selects the default.
func Open(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	var conns int
	switch mode {
	case ModeWrite:
		conns = 1
	case ModeRead:
		conns = maxOpen
		if conns <= 0 {
			conns = defaultReadConns
		}
	default:
		return nil, fmt.Errorf("invalid metadata store mode %q", mode)
	}

	pool, err := sql.Open("sqlite3", dsn(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open metadata store (%s): %w", mode, err)
	}
	pool.SetMaxOpenConns(conns)
	pool.SetMaxIdleConns(conns)
	pool.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping metadata store (%s): %w", mode, err)
	}
	return pool, nil
}

func dsn(path string, mode Mode) string {
	params := url.Values{}
	for _, p := range pragmas {
		params.Set(p[0], p[1])
	}
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}

// OpenStore opens the write and read pools of the metadata store at path and
// migrates it to the latest schema version. readMaxOpen sizes the read pool.
func OpenStore(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = Open(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := Migrate(writeDB); err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	readDB, err = Open(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}
