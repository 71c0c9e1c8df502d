/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "html"
    "strings"

    "github.com/HamedShams/jira-lens/internal/domain"
)

// CopyText is an issue reference formatted for the clipboard.
type CopyText struct {
    Key   domain.IssueKey `json:"key"`
    Title string          `json:"title"`
    URL   string          `json:"url"`
    Plain string          `json:"plain"`
    HTML  string          `json:"html"`
}

// Copy builds "KEY Title" and a linked HTML form of it. When the title cannot
// be fetched the key alone is used.
func (s *Service) Copy(ctx context.Context, rawKey string) (CopyText, error) {
    key, err := domain.ParseIssueKey(rawKey)
    if err != nil { return CopyText{}, err }
    title, err := s.jira.IssueSummary(ctx, key)
    if err != nil {
        s.log.Warn().Err(err).Str("key", key.String()).Msg("issue summary fetch failed; copying key only")
        title = ""
    }
    return formatCopy(s.cfg.JiraBaseURL, key, title), nil
}

func formatCopy(baseURL string, key domain.IssueKey, title string) CopyText {
    title = strings.TrimSpace(title)
    u := strings.TrimRight(baseURL, "/") + "/browse/" + key.String()
    link := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(u), key)
    out := CopyText{Key: key, Title: title, URL: u, Plain: key.String(), HTML: link}
    if title != "" {
        out.Plain += " " + title
        out.HTML += " " + html.EscapeString(title)
    }
    return out
}
