/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
    "context"
    "errors"
    "time"

    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
    id             BIGSERIAL PRIMARY KEY,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ,
    jql            TEXT NOT NULL,
    issues_scanned INT,
    issues_flagged INT,
    success        BOOLEAN NOT NULL DEFAULT false,
    error          TEXT
);
CREATE TABLE IF NOT EXISTS scan_findings (
    run_id                 BIGINT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
    issue_key              TEXT NOT NULL,
    current_status         TEXT NOT NULL,
    is_stale               BOOLEAN NOT NULL,
    is_ping_pong           BOOLEAN NOT NULL,
    is_stuck_in_status     BOOLEAN NOT NULL,
    days_since_update      DOUBLE PRECISION NOT NULL,
    days_since_creation    DOUBLE PRECISION NOT NULL,
    days_in_current_status DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, issue_key)
);`

// Migrate creates the scan ledger tables if they are missing.
func (d *DB) Migrate(ctx context.Context) error {
    _, err := d.Pool.Exec(ctx, schema)
    return err
}

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// TryAdvisoryLock takes a session-level advisory lock on a dedicated pooled
// connection. The returned unlock releases both the lock and the connection.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (unlock func(context.Context) error, ok bool, err error) {
    conn, err := r.db.Pool.Acquire(ctx)
    if err != nil { return nil, false, err }
    if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil || !ok {
        conn.Release()
        return nil, false, err
    }
    return func(ctx context.Context) error {
        defer conn.Release()
        var released bool
        err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released)
        if !released && err == nil { return errors.New("advisory unlock returned false") }
        return err
    }, true, nil
}

func (r *Repository) StartScanRun(ctx context.Context, jql string) (int64, error) {
    const q = `INSERT INTO scan_runs(started_at, jql, success) VALUES(now(), $1, false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, jql).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishScanRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error {
    const q = `UPDATE scan_runs SET finished_at=now(), issues_scanned=$2, issues_flagged=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, scanned, flagged, success, errStr)
    return err
}

func (r *Repository) InsertFindings(ctx context.Context, runID int64, f []domain.Finding) error {
    if len(f) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO scan_findings(run_id, issue_key, current_status, is_stale, is_ping_pong, is_stuck_in_status,
            days_since_update, days_since_creation, days_in_current_status)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (run_id, issue_key) DO NOTHING`
    for _, x := range f {
        res := x.Result
        batch.Queue(q, runID, string(x.Key), res.CurrentStatus, res.IsStale, res.IsPingPong, res.IsStuckInStatus,
            res.DaysSinceUpdate, res.DaysSinceCreation, res.DaysInCurrentStatus)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range f { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

type LastRun struct {
    ID            int64      `json:"id"`
    StartedAt     time.Time  `json:"started_at"`
    FinishedAt    *time.Time `json:"finished_at"`
    JQL           string     `json:"jql"`
    IssuesScanned int        `json:"issues_scanned"`
    IssuesFlagged int        `json:"issues_flagged"`
    Success       bool       `json:"success"`
    Error         string     `json:"error"`
    Findings      []string   `json:"findings"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT id, started_at, finished_at, jql,
        coalesce(issues_scanned,0), coalesce(issues_flagged,0),
        success, coalesce(error,'')
        FROM scan_runs ORDER BY id DESC LIMIT 1`
    lr := &LastRun{}
    err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.ID, &lr.StartedAt, &lr.FinishedAt, &lr.JQL, &lr.IssuesScanned, &lr.IssuesFlagged, &lr.Success, &lr.Error)
    if errors.Is(err, pgx.ErrNoRows) { return nil, &domain.NotFoundError{What: "scan run"} }
    if err != nil { return nil, err }
    rows, err := r.db.Pool.Query(ctx, `SELECT issue_key FROM scan_findings WHERE run_id=$1 ORDER BY issue_key`, lr.ID)
    if err != nil { return nil, err }
    keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
    if err != nil { return nil, err }
    lr.Findings = keys
    return lr, nil
}
