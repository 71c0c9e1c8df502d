/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/HamedShams/jira-lens/internal/adapters/jira"
    "github.com/HamedShams/jira-lens/internal/adapters/telegram"
    "github.com/HamedShams/jira-lens/internal/config"
    api "github.com/HamedShams/jira-lens/internal/http"
    "github.com/HamedShams/jira-lens/internal/jobs"
    "github.com/HamedShams/jira-lens/internal/logger"
    "github.com/HamedShams/jira-lens/internal/repo"
    "github.com/HamedShams/jira-lens/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    if cfg.JiraBaseURL == "" { log.Fatal().Msg("JIRA_BASE_URL is required") }

    // Scan ledger is optional
    var store jobs.Store
    if cfg.DBDSN != "" {
        db := repo.MustOpen(ctx, cfg, log)
        defer db.Close()
        if err := db.Migrate(ctx); err != nil { log.Fatal().Err(err).Msg("db migrate failed") }
        store = repo.NewRepository(db, log)
    }

    // Adapters
    jc := jira.NewClient(cfg, log)
    var notify jobs.Notifier
    if tg := telegram.NewClient(cfg, log); tg.Enabled() && len(cfg.TelegramChatIDs) > 0 { notify = tg }

    // Services
    svc := services.New(cfg, log, jc)

    // Cron
    cron := jobs.NewCron(cfg, log, svc, store, notify)
    cron.Start()
    defer cron.Stop()

    // HTTP server (Gin)
    srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.NewRouter(cfg, log, svc, cron), ReadHeaderTimeout: 10 * time.Second}
    errCh := make(chan error, 1)
    go func() { errCh <- srv.ListenAndServe() }()
    log.Info().Str("addr", cfg.HTTPAddr).Str("jira", cfg.JiraBaseURL).Bool("ledger", store != nil).Msg("listening")

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil && !errors.Is(err, http.ErrServerClosed) { log.Error().Err(err).Msg("http server error") }
    }

    shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second); defer stop()
    if err := srv.Shutdown(shutdownCtx); err != nil { log.Error().Err(err).Msg("http shutdown failed") }
}
