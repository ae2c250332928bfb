// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/crater-avionics/crater/lib/sqlitepool"
)

const numbersSchema = `CREATE TABLE IF NOT EXISTS numbers (value INTEGER NOT NULL);`

func TestOpenAppliesPragmas(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t, "")

	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		var journalMode string
		err := sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if journalMode != "wal" {
			t.Errorf("journal_mode = %q, want wal", journalMode)
		}

		var foreignKeys int
		err = sqlitex.Execute(conn, "PRAGMA foreign_keys", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				foreignKeys = stmt.ColumnInt(0)
				return nil
			},
		})
		if foreignKeys != 1 {
			t.Errorf("foreign_keys = %d, want 1", foreignKeys)
		}
		return err
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func sum(t *testing.T, pool *sqlitepool.Pool) int64 {
	t.Helper()
	var total int64
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT coalesce(sum(value), 0) FROM numbers", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	return total
}

func TestWriteCommitsAndRollsBack(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t, numbersSchema)
	ctx := context.Background()

	err := pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, "INSERT INTO numbers (value) VALUES (1), (2), (3);", nil)
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	boom := errors.New("boom")
	err = pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "INSERT INTO numbers (value) VALUES (100)", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Write: got %v, want boom", err)
	}

	if got := sum(t, pool); got != 6 {
		t.Errorf("sum = %d, want 6 (failed write must roll back)", got)
	}
}

func TestConcurrentWriters(t *testing.T) {
	t.Parallel()
	pool := openTestPool(t, numbersSchema)

	const writers = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, writers)
	for i := range writers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
				return sqlitex.Execute(conn, "INSERT INTO numbers (value) VALUES (?)", &sqlitex.ExecOptions{
					Args: []any{i + 1},
				})
			})
			if err != nil {
				failures <- fmt.Errorf("writer %d: %w", i, err)
			}
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
	if got := sum(t, pool); got != 36 {
		t.Errorf("sum = %d, want 36", got)
	}
}

func TestSchemaErrorFailsOpen(t *testing.T) {
	t.Parallel()
	_, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:   filepath.Join(t.TempDir(), "bad.db"),
		Schema: "CREATE TABLE (",
	})
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()
	if _, err := sqlitepool.Open(context.Background(), sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	// The only connection is out; a cancelled context must not wait.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	pool.Put(conn)
}

// openTestPool creates a pool backed by a temporary database file,
// closed when the test completes.
func openTestPool(t *testing.T, schema string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 4,
		Schema:   schema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
