// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// Monte-Carlo results store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection is
// initialized with:
//
//   - journal_mode=WAL: readers (the CLI inspecting a running
//     campaign) never block the writer.
//   - synchronous=NORMAL: committed runs survive a process crash.
//   - busy_timeout=5000: wait for the write lock instead of failing.
//   - foreign_keys=ON: runs reference their campaign.
//   - temp_store=MEMORY.
//
// [Pool.Write] wraps a function in an IMMEDIATE transaction; [Pool.Read]
// just lends a connection. Callers write plain SQL with sqlitex.Execute.
//
//	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
//	    Path:   "/var/lib/crater/montecarlo.db",
//	    Schema: schema,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
