// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a SQLite connection pool.
// Path is required; all other fields have defaults.
type Config struct {
	// Path is the database file. The parent directory must exist; the
	// file is created if missing.
	Path string

	// PoolSize is the number of connections. If zero or negative,
	// defaults to min(runtime.NumCPU(), 4): SQLite serializes writes,
	// and campaign stores are write-mostly.
	PoolSize int

	// Schema is a SQL script run once in a transaction at Open. It must
	// be idempotent (CREATE TABLE IF NOT EXISTS ...).
	Schema string

	// Logger receives pool open/close messages. Nil discards.
	Logger *slog.Logger
}

// Pool is a fixed-size pool of SQLite connections with standard
// pragmas. Pool is safe for concurrent use; individual connections are
// not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool and applies Schema. The caller must call
// Close.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = min(runtime.NumCPU(), 4)
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}
	pool := &Pool{inner: inner, logger: logger, path: cfg.Path}

	if cfg.Schema != "" {
		err := pool.Write(ctx, func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, cfg.Schema, nil)
		})
		if err != nil {
			inner.Close()
			return nil, fmt.Errorf("sqlitepool: applying schema to %s: %w", cfg.Path, err)
		}
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)
	return pool, nil
}

// Take borrows a connection. Blocks until one is free or ctx ends. The
// caller must Put it back.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Write runs fn on a borrowed connection inside an IMMEDIATE
// transaction, committing when fn returns nil and rolling back
// otherwise.
func (p *Pool) Write(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitepool: begin: %w", err)
	}
	defer endTransaction(&err)
	return fn(conn)
}

// Read runs fn on a borrowed connection with no explicit transaction.
func (p *Pool) Read(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close closes every connection, blocking until borrowed ones return.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

// prepareConnection applies the standard pragmas once per connection.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	return nil
}
