/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "sort"

    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/retry"
)

const searchPageSize = 50

// watchKeys pages the watch JQL up to the configured cap.
func (s *Service) watchKeys(ctx context.Context) ([]domain.IssueKey, error) {
    max := s.cfg.WatchMaxIssues
    if max <= 0 { max = 200 }
    var keys []domain.IssueKey
    for start := 0; len(keys) < max; {
        page, err := s.jira.Search(ctx, s.cfg.WatchJQL, start, searchPageSize)
        if err != nil { return keys, err }
        keys = append(keys, page.Keys...)
        start += searchPageSize
        if len(page.Keys) < searchPageSize || start >= page.Total { break }
    }
    if len(keys) > max { keys = keys[:max] }
    return keys, nil
}

// Scan classifies every issue matched by the watch JQL and returns those
// with at least one raised flag, ordered by key. Results overwrite the
// classification cache. Issues whose fetch keeps failing are skipped.
func (s *Service) Scan(ctx context.Context) (scanned int, findings []domain.Finding, err error) {
    if s.cfg.WatchJQL == "" { return 0, nil, nil }
    keys, err := s.watchKeys(ctx)
    if err != nil {
        s.log.Error().Err(err).Int("partial", len(keys)).Msg("scan: watch search failed")
        if len(keys) == 0 { return 0, nil, err }
    }

    type result struct {
        key domain.IssueKey
        r   domain.ClassificationResult
        err error
    }
    jobs := make(chan domain.IssueKey)
    results := make(chan result, len(keys))
    workerCount := s.cfg.WorkersJira
    if workerCount <= 0 { workerCount = 4 }
    for w := 0; w < workerCount; w++ {
        go func() {
            for key := range jobs {
                var r domain.ClassificationResult
                err := s.cfg.Rescan.Do(ctx, func(int) error {
                    var err error
                    r, err = s.refresh(ctx, key)
                    if err != nil && fetchPermanent(err) { return retry.Permanent(err) }
                    return err
                })
                results <- result{key: key, r: r, err: err}
            }
        }()
    }
    go func() {
        defer close(jobs)
        for _, k := range keys {
            select {
            case jobs <- k:
            case <-ctx.Done():
                return
            }
        }
    }()

    failed := 0
    for i := 0; i < len(keys); i++ {
        var res result
        select {
        case res = <-results:
        case <-ctx.Done():
            return scanned, sortFindings(findings), ctx.Err()
        }
        if res.err != nil {
            failed++
            continue
        }
        scanned++
        if res.r.Flagged() { findings = append(findings, domain.Finding{Key: res.key, Result: res.r}) }
    }
    s.log.Info().Int("issues", len(keys)).Int("scanned", scanned).Int("failed", failed).Int("flagged", len(findings)).Msg("scan done")
    if scanned == 0 && failed > 0 { return 0, nil, errors.New("scan: every issue fetch failed") }
    return scanned, sortFindings(findings), nil
}

// fetchPermanent reports whether fetching again cannot change the outcome:
// client errors other than 429, and issues the tracker cannot describe.
func fetchPermanent(err error) bool {
    var terr *domain.TransportError
    if errors.As(err, &terr) { return !terr.Retryable() }
    var nf *domain.NotFoundError
    return errors.As(err, &nf)
}

func sortFindings(f []domain.Finding) []domain.Finding {
    sort.Slice(f, func(i, j int) bool { return f[i].Key < f[j].Key })
    return f
}
