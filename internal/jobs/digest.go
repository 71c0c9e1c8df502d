/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
    "fmt"
    "strings"

    "github.com/HamedShams/jira-lens/internal/adapters/telegram"
    "github.com/HamedShams/jira-lens/internal/badge"
    "github.com/HamedShams/jira-lens/internal/domain"
)

// Telegram caps messages at 4096 chars; this keeps the digest well below it.
const maxDigestLines = 40

// renderDigest lists flagged issues with their card badge texts, as
// MarkdownV2 when markdown is set and as plain text otherwise.
func renderDigest(baseURL string, scanned int, findings []domain.Finding, markdown bool) string {
    esc := func(s string) string { return s }
    if markdown { esc = telegram.EscapeMarkdownV2 }
    var b strings.Builder
    title := fmt.Sprintf("Jira watch: %d of %d issues flagged", len(findings), scanned)
    if markdown { fmt.Fprintf(&b, "*%s*\n", esc(title)) } else { b.WriteString(title + "\n") }
    for i, f := range findings {
        if i == maxDigestLines {
            fmt.Fprintf(&b, "%s\n", esc(fmt.Sprintf("... and %d more", len(findings)-i)))
            break
        }
        var labels []string
        for _, bd := range badge.Card(f.Result) { labels = append(labels, bd.Text) }
        key := esc(string(f.Key))
        link := ""
        if baseURL != "" { link = baseURL + "/browse/" + string(f.Key) }
        switch {
        case link != "" && markdown:
            // inside (...) only ) and \ need escaping
            u := strings.NewReplacer(`\`, `\\`, ")", `\)`).Replace(link)
            key = fmt.Sprintf("[%s](%s)", key, u)
        case link != "":
            key += " " + link
        }
        fmt.Fprintf(&b, "%s %s: %s\n", esc("-"), key, esc(strings.Join(labels, ", ")))
    }
    return b.String()
}
