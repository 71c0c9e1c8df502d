/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "fmt"
    "net/url"
    "regexp"
    "strings"

    "github.com/HamedShams/jira-lens/internal/domain"
)

var (
    browseRe = regexp.MustCompile(`/browse/([A-Z]+-[0-9]+)`)
    boardsRe = regexp.MustCompile(`/boards/(\d+)`)
)

// PageRef is the issue (and board, when the URL names one) a page shows.
type PageRef struct {
    Key   domain.IssueKey
    Board domain.BoardID
}

// ParsePageURL reads the issue key from /browse/KEY or ?selectedIssue=KEY and
// the board from /boards/N, ?rapidView=N or ?boardId=N.
func ParsePageURL(raw string) (PageRef, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return PageRef{}, fmt.Errorf("parse page url: %w", err) }
    q := u.Query()

    var keyStr string
    if m := browseRe.FindStringSubmatch(u.Path); m != nil {
        keyStr = m[1]
    } else {
        keyStr = q.Get("selectedIssue")
    }
    if keyStr == "" { return PageRef{}, &domain.NotFoundError{What: "issue key in page url"} }
    key, err := domain.ParseIssueKey(keyStr)
    if err != nil { return PageRef{}, err }

    ref := PageRef{Key: key}
    if m := boardsRe.FindStringSubmatch(u.Path); m != nil {
        ref.Board = domain.BoardID(m[1])
    } else if v := q.Get("rapidView"); v != "" {
        ref.Board = domain.BoardID(v)
    } else if v := q.Get("boardId"); v != "" {
        ref.Board = domain.BoardID(v)
    }
    return ref, nil
}
