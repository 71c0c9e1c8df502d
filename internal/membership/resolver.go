/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package membership decides whether an issue sits on a board's active view
// or in its backlog, discovering the board when none is known.
package membership

import (
    "context"
    "fmt"

    "github.com/HamedShams/jira-lens/internal/cache"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/rs/zerolog"
)

// BoardDirectory is the slice of the tracker's Agile API the resolver needs.
type BoardDirectory interface {
    BoardsForProject(ctx context.Context, projectKey string, startAt, max int) (domain.BoardPage, error)
    BoardsForIssue(ctx context.Context, key domain.IssueKey) ([]domain.BoardID, error)
    BacklogMatches(ctx context.Context, board domain.BoardID, jql string, max int) (int, error)
    BoardMatches(ctx context.Context, board domain.BoardID, jql string, max int) (int, error)
}

type probeResult int

const (
    inconclusive probeResult = iota
    inBacklog
    onBoard
)

func (p probeResult) status() domain.MembershipStatus {
    if p == onBoard { return domain.OnBoard }
    // inconclusive is reported as backlog
    return domain.InBacklog
}

type Options struct {
    PageSize int
    MaxPages int
}

type Resolver struct {
    dir    BoardDirectory
    cache  *cache.Cache[domain.MembershipStatus]
    boards *cache.Cache[domain.Resolution] // board found for an issue with no explicit board
    log    zerolog.Logger
    opts   Options
}

func New(dir BoardDirectory, c *cache.Cache[domain.MembershipStatus], log zerolog.Logger, opts Options) *Resolver {
    if opts.PageSize <= 0 { opts.PageSize = 50 }
    if opts.MaxPages <= 0 { opts.MaxPages = 20 }
    return &Resolver{dir: dir, cache: c, boards: cache.New[domain.Resolution](), log: log.With().Str("component", "membership").Logger(), opts: opts}
}

// Reset forgets which board each issue was found on.
func (r *Resolver) Reset() { r.boards.Clear() }

// Resolve never fails: lookup errors degrade to "no match". Without a board
// id the tracker's issue-board listing is consulted, then every project board
// is probed. If nothing turns up the result is InBacklog with no board id.
// The board located for an issue is remembered until Reset.
func (r *Resolver) Resolve(ctx context.Context, key domain.IssueKey, board domain.BoardID) domain.Resolution {
    if board != "" { return domain.Resolution{BoardID: board, Status: r.Check(ctx, board, key)} }
    mk := cache.Key{Issue: key}
    if res, ok := r.boards.Get(mk); ok {
        if res.BoardID != "" { res.Status = r.Check(ctx, res.BoardID, key) }
        return res
    }
    res := r.locate(ctx, key)
    r.boards.Set(mk, res)
    return res
}

func (r *Resolver) locate(ctx context.Context, key domain.IssueKey) domain.Resolution {
    if board := r.BoardHint(ctx, key); board != "" {
        return domain.Resolution{BoardID: board, Status: r.Check(ctx, board, key)}
    }
    if res, ok := r.Discover(ctx, key); ok { return res }
    r.log.Debug().Str("key", key.String()).Msg("no board context; defaulting to backlog")
    return domain.Resolution{Status: domain.InBacklog}
}

// Check returns the cached status for (board, key) or probes and caches it.
// Inconclusive probes are cached as InBacklog and not retried until the cache is cleared.
func (r *Resolver) Check(ctx context.Context, board domain.BoardID, key domain.IssueKey) domain.MembershipStatus {
    ck := cache.Key{Scope: board, Issue: key}
    if st, ok := r.cache.Get(ck); ok { return st }
    st := r.probe(ctx, board, key).status()
    r.cache.Set(ck, st)
    return st
}

// BoardHint asks the tracker which boards list the issue and returns the first.
func (r *Resolver) BoardHint(ctx context.Context, key domain.IssueKey) domain.BoardID {
    ids, err := r.dir.BoardsForIssue(ctx, key)
    if err != nil {
        r.log.Debug().Err(err).Str("key", key.String()).Msg("issue board lookup failed")
        return ""
    }
    if len(ids) == 0 { return "" }
    return ids[0]
}

// Discover probes the project's boards in listing order and returns the first
// conclusive answer, which is also cached. ok is false when no board answers.
func (r *Resolver) Discover(ctx context.Context, key domain.IssueKey) (domain.Resolution, bool) {
    boards := r.projectBoards(ctx, key.Project())
    for _, b := range boards {
        if ctx.Err() != nil { break }
        p := r.probe(ctx, b, key)
        if p == inconclusive { continue }
        st := p.status()
        r.cache.Set(cache.Key{Scope: b, Issue: key}, st)
        r.log.Debug().Str("key", key.String()).Str("board", string(b)).Str("status", string(st)).Msg("board discovered")
        return domain.Resolution{BoardID: b, Status: st, Discovered: true}, true
    }
    return domain.Resolution{}, false
}

func (r *Resolver) projectBoards(ctx context.Context, project string) []domain.BoardID {
    if project == "" { return nil }
    var out []domain.BoardID
    start := 0
    for page := 0; page < r.opts.MaxPages; page++ {
        p, err := r.dir.BoardsForProject(ctx, project, start, r.opts.PageSize)
        if err != nil {
            r.log.Debug().Err(err).Str("project", project).Int("startAt", start).Msg("board listing failed")
            break
        }
        out = append(out, p.Boards...)
        if p.IsLast || len(p.Boards) == 0 { break }
        start += r.opts.PageSize
    }
    return out
}

func keyFilter(key domain.IssueKey) string { return fmt.Sprintf("issueKey=%s", key) }

// probe checks the backlog view first, then the active view. A failed
// request counts as no match.
func (r *Resolver) probe(ctx context.Context, board domain.BoardID, key domain.IssueKey) probeResult {
    jql := keyFilter(key)
    n, err := r.dir.BacklogMatches(ctx, board, jql, 1)
    if err != nil {
        r.log.Debug().Err(err).Str("board", string(board)).Str("key", key.String()).Msg("backlog probe failed")
    } else if n > 0 {
        return inBacklog
    }
    n, err = r.dir.BoardMatches(ctx, board, jql, 1)
    if err != nil {
        r.log.Debug().Err(err).Str("board", string(board)).Str("key", key.String()).Msg("board probe failed")
    } else if n > 0 {
        return onBoard
    }
    return inconclusive
}
