/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/HamedShams/jira-lens/internal/cache"
    "github.com/HamedShams/jira-lens/internal/classify"
    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/membership"
    "github.com/rs/zerolog"
)

type JiraClient interface {
    membership.BoardDirectory
    IssueSnapshot(ctx context.Context, key domain.IssueKey) (domain.IssueSnapshot, error)
    IssueSummary(ctx context.Context, key domain.IssueKey) (string, error)
    Search(ctx context.Context, jql string, startAt, max int) (domain.SearchPage, error)
}

// resolveTimeout bounds a shared resolution. It is detached from the first
// caller's context so that callers attached to it are not cancelled with it.
const resolveTimeout = 60 * time.Second

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    jira JiraClient
    now  func() time.Time

    resolver     *membership.Resolver
    memberCache  *cache.Cache[domain.MembershipStatus]
    classCache   *cache.Cache[domain.ClassificationResult]
    memberFlight *cache.Flight[domain.Resolution]
    classFlight  *cache.Flight[domain.ClassificationResult]

    scopeMu   sync.Mutex
    lastIssue domain.IssueKey
    lastBoard domain.BoardID
}

func New(cfg config.Config, log zerolog.Logger, jira JiraClient) *Service {
    mc := cache.New[domain.MembershipStatus]()
    return &Service{
        cfg:          cfg,
        log:          log,
        jira:         jira,
        now:          time.Now,
        resolver:     membership.New(jira, mc, log, membership.Options{PageSize: cfg.BoardPageSize, MaxPages: cfg.BoardMaxPages}),
        memberCache:  mc,
        classCache:   cache.New[domain.ClassificationResult](),
        memberFlight: cache.NewFlight[domain.Resolution](),
        classFlight:  cache.NewFlight[domain.ClassificationResult](),
    }
}

// enterScope clears membership state when the active issue or the explicit
// board changes.
func (s *Service) enterScope(key domain.IssueKey, board domain.BoardID) {
    s.scopeMu.Lock(); defer s.scopeMu.Unlock()
    changed := false
    if key != s.lastIssue { s.lastIssue = key; changed = true }
    if board != "" && board != s.lastBoard { s.lastBoard = board; changed = true }
    if changed {
        s.memberCache.Clear()
        s.resolver.Reset()
        s.memberFlight.Reset()
    }
}

func (s *Service) rememberBoard(board domain.BoardID) {
    if board == "" { return }
    s.scopeMu.Lock(); s.lastBoard = board; s.scopeMu.Unlock()
}

// Scope returns the active issue and board.
func (s *Service) Scope() (domain.IssueKey, domain.BoardID) {
    s.scopeMu.Lock(); defer s.scopeMu.Unlock()
    return s.lastIssue, s.lastBoard
}

// ResetScope drops every cached result and detaches in-flight resolutions.
func (s *Service) ResetScope() {
    s.scopeMu.Lock()
    s.lastIssue, s.lastBoard = "", ""
    s.scopeMu.Unlock()
    s.memberCache.Clear()
    s.resolver.Reset()
    s.classCache.Clear()
    s.memberFlight.Reset()
    s.classFlight.Reset()
    s.log.Info().Msg("scope reset")
}

// Membership resolves board/backlog membership for rawKey. rawBoard may be empty.
func (s *Service) Membership(ctx context.Context, rawKey, rawBoard string) (domain.Resolution, error) {
    key, err := domain.ParseIssueKey(rawKey)
    if err != nil { return domain.Resolution{}, err }
    board := domain.BoardID(strings.TrimSpace(rawBoard))
    s.enterScope(key, board)

    res, shared, err := s.memberFlight.Do(string(board)+"|"+string(key), func() (domain.Resolution, error) {
        rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
        defer cancel()
        return s.resolver.Resolve(rctx, key, board), nil
    })
    if err != nil { return domain.Resolution{}, err }
    s.rememberBoard(res.BoardID)
    s.log.Debug().Str("key", key.String()).Str("board", string(res.BoardID)).Str("status", string(res.Status)).Bool("shared", shared).Msg("membership")
    return res, nil
}

// Classification returns the cached classification for rawKey or fetches and
// classifies it. A fetch failure yields domain.ErrUnavailable and is not cached.
func (s *Service) Classification(ctx context.Context, rawKey string) (domain.ClassificationResult, error) {
    key, err := domain.ParseIssueKey(rawKey)
    if err != nil { return domain.ClassificationResult{}, err }
    if r, ok := s.classCache.Get(cache.Key{Issue: key}); ok { return r, nil }
    r, _, err := s.classFlight.Do(string(key), func() (domain.ClassificationResult, error) {
        rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
        defer cancel()
        return s.refresh(rctx, key)
    })
    return r, err
}

// refresh fetches and classifies key, overwriting the cached result.
func (s *Service) refresh(ctx context.Context, key domain.IssueKey) (domain.ClassificationResult, error) {
    snap, err := s.jira.IssueSnapshot(ctx, key)
    if err != nil {
        s.log.Warn().Err(err).Str("key", key.String()).Msg("issue fetch failed")
        return domain.ClassificationResult{}, fmt.Errorf("classify %s: %w: %w", key, domain.ErrUnavailable, err)
    }
    r := classify.Classify(snap, s.cfg.Classification, s.now())
    s.classCache.Set(cache.Key{Issue: key}, r)
    return r, nil
}

// PageResult is everything known about the issue shown at a page URL.
type PageResult struct {
    Key            domain.IssueKey
    Membership     domain.Resolution
    Classification *domain.ClassificationResult
}

// Page extracts the issue and board from a tracker URL and resolves both
// membership and classification. A failed classification is left nil.
func (s *Service) Page(ctx context.Context, pageURL string) (PageResult, error) {
    ref, err := ParsePageURL(pageURL)
    if err != nil { return PageResult{}, err }
    out := PageResult{Key: ref.Key}
    if out.Membership, err = s.Membership(ctx, string(ref.Key), string(ref.Board)); err != nil { return PageResult{}, err }
    if r, err := s.Classification(ctx, string(ref.Key)); err == nil {
        out.Classification = &r
    }
    return out, nil
}
