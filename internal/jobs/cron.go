/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
    "context"
    "errors"
    "net/http"
    "sync"
    "time"

    "github.com/HamedShams/jira-lens/internal/adapters/telegram"
    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

const scanLockKey int64 = 424242

var ErrBusy = errors.New("scan already running elsewhere")

type scanService interface {
    Scan(ctx context.Context) (int, []domain.Finding, error)
}

// Store is the scan ledger. Nil disables locking and persistence.
type Store interface {
    TryAdvisoryLock(ctx context.Context, key int64) (func(context.Context) error, bool, error)
    StartScanRun(ctx context.Context, jql string) (int64, error)
    FinishScanRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error
    InsertFindings(ctx context.Context, runID int64, f []domain.Finding) error
    GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

// Notifier receives the digest of flagged issues. Nil disables it.
type Notifier interface {
    SendMarkdownV2(ctx context.Context, chatID int64, text string) error
    SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

type Cron struct {
    cfg    config.Config
    log    zerolog.Logger
    svc    scanService
    store  Store
    notify Notifier
    c      *cron.Cron
    now    func() time.Time

    mu   sync.Mutex
    last *repo.LastRun
}

func NewCron(cfg config.Config, log zerolog.Logger, svc scanService, store Store, notify Notifier) *Cron {
    loc, err := time.LoadLocation(cfg.TZ)
    if err != nil { loc = time.UTC }
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, store: store, notify: notify, c: c, now: time.Now}
    if cfg.WatchJQL != "" {
        if _, err := c.AddFunc(cfg.WatchCron, cr.scheduled); err != nil {
            log.Error().Err(err).Str("spec", cfg.WatchCron).Msg("cron: bad schedule; watch scan only on demand")
        }
    }
    return cr
}

func (cr *Cron) Start(){ cr.c.Start() }
func (cr *Cron) Stop(){ <-cr.c.Stop().Done() }

func (cr *Cron) scheduled(){
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute); defer cancel()
    if err := cr.RunNow(ctx); err != nil {
        if errors.Is(err, ErrBusy) { cr.log.Info().Msg("cron: already running elsewhere"); return }
        cr.log.Error().Err(err).Msg("cron: watch scan failed")
    }
}

// RunNow performs one watch scan: classify, record the run, send the digest.
func (cr *Cron) RunNow(ctx context.Context) error {
    if cr.store != nil {
        unlock, ok, err := cr.store.TryAdvisoryLock(ctx, scanLockKey)
        if err != nil { return err }
        if !ok { return ErrBusy }
        defer func(){
            if err := unlock(context.Background()); err != nil { cr.log.Warn().Err(err).Msg("cron: unlock failed") }
        }()
    }

    lr := &repo.LastRun{StartedAt: cr.now().UTC(), JQL: cr.cfg.WatchJQL}
    if cr.store != nil {
        id, err := cr.store.StartScanRun(ctx, cr.cfg.WatchJQL)
        if err != nil { return err }
        lr.ID = id
    }

    cr.log.Info().Str("jql", cr.cfg.WatchJQL).Msg("cron: watch scan")
    scanned, findings, scanErr := cr.svc.Scan(ctx)
    lr.IssuesScanned, lr.IssuesFlagged, lr.Success = scanned, len(findings), scanErr == nil
    if scanErr != nil { lr.Error = scanErr.Error() }
    for _, f := range findings { lr.Findings = append(lr.Findings, string(f.Key)) }
    fin := cr.now().UTC()
    lr.FinishedAt = &fin

    if cr.store != nil {
        if err := cr.store.InsertFindings(ctx, lr.ID, findings); err != nil {
            cr.log.Error().Err(err).Int64("run", lr.ID).Msg("cron: store findings failed")
        }
        if err := cr.store.FinishScanRun(ctx, lr.ID, scanned, len(findings), lr.Success, lr.Error); err != nil {
            cr.log.Error().Err(err).Int64("run", lr.ID).Msg("cron: finish run failed")
        }
    }
    cr.mu.Lock(); cr.last = lr; cr.mu.Unlock()

    if scanErr != nil { return scanErr }
    cr.log.Info().Int("scanned", scanned).Int("flagged", len(findings)).Msg("cron: watch scan done")
    cr.sendDigest(ctx, scanned, findings)
    return nil
}

// sendDigest posts MarkdownV2 and falls back to plain text for a chat that
// rejects the formatted message.
func (cr *Cron) sendDigest(ctx context.Context, scanned int, findings []domain.Finding) {
    if cr.notify == nil || len(findings) == 0 { return }
    text := renderDigest(cr.cfg.JiraBaseURL, scanned, findings, true)
    for _, id := range cr.cfg.TelegramChatIDs {
        err := cr.notify.SendMarkdownV2(ctx, id, text)
        var apiErr *telegram.APIError
        if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
            cr.log.Warn().Err(err).Int64("chat", id).Msg("cron: markdown digest rejected; sending plain")
            err = cr.notify.SendMessagePlain(ctx, id, renderDigest(cr.cfg.JiraBaseURL, scanned, findings, false))
        }
        if err != nil {
            cr.log.Error().Err(err).Int64("chat", id).Msg("cron: digest send failed")
        }
    }
}

// LastRun returns the most recent run, from the ledger when one is configured.
func (cr *Cron) LastRun(ctx context.Context) (*repo.LastRun, error) {
    if cr.store != nil { return cr.store.GetLastRun(ctx) }
    cr.mu.Lock(); defer cr.mu.Unlock()
    if cr.last == nil { return nil, &domain.NotFoundError{What: "scan run"} }
    cp := *cr.last
    return &cp, nil
}
