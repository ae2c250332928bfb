// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/crater-avionics/crater/lib/codec"
	"github.com/crater-avionics/crater/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	base_seed   INTEGER NOT NULL,
	runs        INTEGER NOT NULL,
	step_ns     INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	succeeded   INTEGER,
	failed      INTEGER
);

CREATE TABLE IF NOT EXISTS runs (
	campaign_id TEXT NOT NULL REFERENCES campaigns(id),
	run_index   INTEGER NOT NULL,
	seed        INTEGER NOT NULL,
	ticks       INTEGER NOT NULL,
	elapsed_ns  INTEGER NOT NULL,
	wall_ns     INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	fingerprint TEXT NOT NULL,
	params      BLOB NOT NULL,
	log_file    TEXT NOT NULL,
	error       TEXT NOT NULL,
	PRIMARY KEY (campaign_id, run_index)
);
`

// Store persists campaign results in SQLite.
type Store struct {
	pool *sqlitepool.Pool
}

// OpenStore opens or creates the results database at path.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:   path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening campaign store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// CampaignRecord is a stored campaign.
type CampaignRecord struct {
	ID         uuid.UUID
	Name       string
	BaseSeed   uint64
	Runs       int
	Step       time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
}

// StoredRun is a stored run. Fingerprint is the combined digest in
// hex; Error is empty for a successful run.
type StoredRun struct {
	Index       int
	Seed        uint64
	Ticks       uint64
	Elapsed     time.Duration
	Wall        time.Duration
	Reason      string
	Records     uint64
	Fingerprint string
	Params      map[string]any
	LogFile     string
	Error       string
}

// CreateCampaign records the start of a campaign.
func (s *Store) CreateCampaign(ctx context.Context, id uuid.UUID, campaign *Campaign) error {
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO campaigns (id, name, base_seed, runs, step_ns, started_at)
			VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				id.String(),
				campaign.Name,
				int64(campaign.BaseSeed),
				campaign.Runs,
				int64(campaign.Executor.Step),
				time.Now().UTC().Format(time.RFC3339Nano),
			},
		})
		if err != nil {
			return fmt.Errorf("storing campaign %s: %w", id, err)
		}
		return nil
	})
}

// SaveRun stores one run result.
func (s *Store) SaveRun(ctx context.Context, id uuid.UUID, result RunResult) error {
	encodedParams, err := codec.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("encoding run %d parameters: %w", result.Index, err)
	}
	errorText := ""
	if result.Err != nil {
		errorText = result.Err.Error()
	}
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO runs (campaign_id, run_index, seed, ticks, elapsed_ns, wall_ns,
				reason, records, fingerprint, params, log_file, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				id.String(),
				result.Index,
				int64(result.Seed),
				int64(result.Ticks),
				int64(result.Elapsed),
				int64(result.Wall),
				result.Reason.String(),
				int64(result.Records),
				result.Fingerprint.Combined.String(),
				encodedParams,
				result.LogFile,
				errorText,
			},
		})
		if err != nil {
			return fmt.Errorf("storing run %d: %w", result.Index, err)
		}
		return nil
	})
}

// FinishCampaign records the final counts.
func (s *Store) FinishCampaign(ctx context.Context, summary Summary) error {
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			UPDATE campaigns SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{
					time.Now().UTC().Format(time.RFC3339Nano),
					summary.Succeeded,
					summary.Failed,
					summary.ID.String(),
				},
			})
		if err != nil {
			return fmt.Errorf("finishing campaign %s: %w", summary.ID, err)
		}
		return nil
	})
}

// Campaigns lists stored campaigns, newest first.
func (s *Store) Campaigns(ctx context.Context) ([]CampaignRecord, error) {
	var records []CampaignRecord
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT id, name, base_seed, runs, step_ns, started_at,
				coalesce(finished_at, ''), coalesce(succeeded, 0), coalesce(failed, 0)
			FROM campaigns ORDER BY started_at DESC`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id, err := uuid.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("campaign id: %w", err)
				}
				record := CampaignRecord{
					ID:        id,
					Name:      stmt.ColumnText(1),
					BaseSeed:  uint64(stmt.ColumnInt64(2)),
					Runs:      stmt.ColumnInt(3),
					Step:      time.Duration(stmt.ColumnInt64(4)),
					Succeeded: stmt.ColumnInt(7),
					Failed:    stmt.ColumnInt(8),
				}
				record.StartedAt, _ = time.Parse(time.RFC3339Nano, stmt.ColumnText(5))
				if finished := stmt.ColumnText(6); finished != "" {
					record.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
				}
				records = append(records, record)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	return records, nil
}

// Runs returns a campaign's runs in index order.
func (s *Store) Runs(ctx context.Context, id uuid.UUID) ([]StoredRun, error) {
	var runs []StoredRun
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT run_index, seed, ticks, elapsed_ns, wall_ns, reason, records,
				fingerprint, params, log_file, error
			FROM runs WHERE campaign_id = ? ORDER BY run_index`, &sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				run := StoredRun{
					Index:       stmt.ColumnInt(0),
					Seed:        uint64(stmt.ColumnInt64(1)),
					Ticks:       uint64(stmt.ColumnInt64(2)),
					Elapsed:     time.Duration(stmt.ColumnInt64(3)),
					Wall:        time.Duration(stmt.ColumnInt64(4)),
					Reason:      stmt.ColumnText(5),
					Records:     uint64(stmt.ColumnInt64(6)),
					Fingerprint: stmt.ColumnText(7),
					LogFile:     stmt.ColumnText(9),
					Error:       stmt.ColumnText(10),
				}
				blob := make([]byte, stmt.ColumnLen(8))
				stmt.ColumnBytes(8, blob)
				if err := codec.Unmarshal(blob, &run.Params); err != nil {
					return fmt.Errorf("run %d parameters: %w", run.Index, err)
				}
				runs = append(runs, run)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs of %s: %w", id, err)
	}
	return runs, nil
}
