/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/retry"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL string
    token   string
    basic   string
    user    string
    pass    string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string
    retry   retry.Policy
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        token:   cfg.JiraPAT,
        basic:   getenvBasic(),
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    &http.Client{ Timeout: cfg.HTTPTimeout },
        log:     log.With().Str("component", "jira").Logger(),
        apiVer:  cfg.JiraAPIVersion,
        retry:   cfg.JiraRetry,
    }
}

// getenvBasic reads JIRA_BASIC_AUTH from environment if present (format: user:pass base64), optional
func getenvBasic() string {
    v := ""
    if s := strings.TrimSpace(os.Getenv("JIRA_BASIC_AUTH")); s != "" { v = s }
    return v
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) restPath(p string) string {
    if c.apiVer == "2" { return "/rest/api/2" + p }
    return "/rest/api/3" + p
}

func (c *Client) authorize(req *http.Request) {
    if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    } else if c.user != "" && c.pass != "" {
        req.SetBasicAuth(c.user, c.pass)
    } else if c.basic != "" {
        req.Header.Set("Authorization", "Basic "+c.basic)
    }
}

// doJSON issues one request under the client's retry policy. Every failure is
// returned as *domain.TransportError; 4xx other than 429 are not retried.
func (c *Client) doJSON(ctx context.Context, op, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, &domain.TransportError{Op: op, Err: errors.New("empty baseURL")} }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var out map[string]any
    err := c.retry.Do(ctx, func(attempt int) error {
        var r io.Reader
        if payload != nil { r = strings.NewReader(string(payload)) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return retry.Permanent(err) }
        req.Header.Set("Accept", "application/json")
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        c.authorize(req)
        start := time.Now()
        resp, err := c.http.Do(req)
        if err != nil {
            c.log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("jira request failed")
            return &domain.TransportError{Op: op, Err: err}
        }
        defer resp.Body.Close()
        c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("jira")
        if resp.StatusCode >= 300 {
            b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
            terr := &domain.TransportError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
            if terr.Retryable() { return terr }
            return retry.Permanent(terr)
        }
        out = nil
        if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
            return retry.Permanent(&domain.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)})
        }
        return nil
    })
    if err != nil { return nil, err }
    return out, nil
}

// IssueSnapshot fetches created/updated/status with the changelog expanded.
// Histories beyond the embedded page are read from the changelog endpoint.
func (c *Client) IssueSnapshot(ctx context.Context, key domain.IssueKey) (domain.IssueSnapshot, error) {
    q := url.Values{}
    q.Set("fields", "updated,created,status")
    q.Set("expand", "changelog")
    u := c.apiURL(c.restPath("/issue/"+url.PathEscape(key.String())), q)
    m, err := c.doJSON(ctx, "issue", http.MethodGet, u, nil)
    if err != nil { return domain.IssueSnapshot{}, err }

    fields, _ := m["fields"].(map[string]any)
    if fields == nil { return domain.IssueSnapshot{}, &domain.NotFoundError{What: "issue " + key.String()} }
    snap := domain.IssueSnapshot{Key: key}
    snap.CreatedAt = derefTime(parseTimeUTC(fields["created"]))
    snap.UpdatedAt = derefTime(parseTimeUTC(fields["updated"]))
    if snap.CreatedAt.IsZero() || snap.UpdatedAt.IsZero() {
        return domain.IssueSnapshot{}, &domain.NotFoundError{What: "created/updated timestamps of " + key.String()}
    }
    if st, ok := fields["status"].(map[string]any); ok { snap.CurrentStatus = toStrAny(st["name"]) }

    var histories []any
    total := 0
    if ch, ok := m["changelog"].(map[string]any); ok {
        histories, _ = ch["histories"].([]any)
        if v, ok := ch["total"].(float64); ok { total = int(v) }
    }
    // the embedded changelog is capped server side; page the rest
    for start := len(histories); total > start; {
        page, err := c.Changelog(ctx, key, start, 100)
        if err != nil {
            c.log.Debug().Err(err).Str("key", key.String()).Int("startAt", start).Msg("changelog page failed; using partial history")
            break
        }
        var vals []any
        if vv, ok := page["values"].([]any); ok { vals = vv } else if vv, ok := page["histories"].([]any); ok { vals = vv }
        if len(vals) == 0 { break }
        histories = append(histories, vals...)
        start += len(vals)
    }
    snap.History = historyEvents(histories)
    return snap, nil
}

// IssueSummary returns the issue's title.
func (c *Client) IssueSummary(ctx context.Context, key domain.IssueKey) (string, error) {
    q := url.Values{}
    q.Set("fields", "summary")
    m, err := c.doJSON(ctx, "issue-summary", http.MethodGet, c.apiURL(c.restPath("/issue/"+url.PathEscape(key.String())), q), nil)
    if err != nil { return "", err }
    fields, _ := m["fields"].(map[string]any)
    if fields == nil { return "", &domain.NotFoundError{What: "issue " + key.String()} }
    return strings.TrimSpace(toStrAny(fields["summary"])), nil
}

func (c *Client) Changelog(ctx context.Context, key domain.IssueKey, startAt, max int) (map[string]any, error) {
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    u := c.apiURL(c.restPath("/issue/"+url.PathEscape(key.String())+"/changelog"), q)
    return c.doJSON(ctx, "changelog", http.MethodGet, u, nil)
}

func historyEvents(histories []any) []domain.StatusChangeEvent {
    var events []domain.StatusChangeEvent
    for _, h0 := range histories {
        hv, _ := h0.(map[string]any)
        if hv == nil { continue }
        at := derefTime(parseTimeUTC(hv["created"]))
        items, _ := hv["items"].([]any)
        for _, it0 := range items {
            itm, _ := it0.(map[string]any)
            if itm == nil { continue }
            field := toStrAny(itm["field"])
            if field == "" { field = toStrAny(itm["fieldId"]) }
            events = append(events, domain.StatusChangeEvent{At: at, Field: field, To: toStrAny(itm["toString"])})
        }
    }
    return events
}

func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (domain.SearchPage, error) {
    if strings.TrimSpace(jql) == "" { return domain.SearchPage{}, errors.New("jira: empty jql") }
    var m map[string]any
    var err error
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", "key")
        m, err = c.doJSON(ctx, "search", http.MethodGet, c.apiURL("/rest/api/2/search", q), nil)
    } else {
        body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": []string{"key"}}
        m, err = c.doJSON(ctx, "search", http.MethodPost, c.apiURL("/rest/api/3/search", nil), body)
    }
    if err != nil { return domain.SearchPage{}, err }
    var out domain.SearchPage
    if v, ok := m["total"].(float64); ok { out.Total = int(v) }
    issues, _ := m["issues"].([]any)
    for _, i0 := range issues {
        im, _ := i0.(map[string]any)
        if im == nil { continue }
        k, err := domain.ParseIssueKey(toStrAny(im["key"]))
        if err != nil { c.log.Debug().Err(err).Msg("search: skipping issue"); continue }
        out.Keys = append(out.Keys, k)
    }
    return out, nil
}

// BoardsForProject lists one page of Jira Software boards for a project (Agile API).
func (c *Client) BoardsForProject(ctx context.Context, projectKey string, startAt, max int) (domain.BoardPage, error) {
    q := url.Values{}
    q.Set("projectKeyOrId", projectKey)
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    q.Set("startAt", fmt.Sprint(startAt))
    m, err := c.doJSON(ctx, "boards", http.MethodGet, c.apiURL("/rest/agile/1.0/board", q), nil)
    if err != nil { return domain.BoardPage{}, err }
    vals, _ := m["values"].([]any)
    page := domain.BoardPage{Boards: boardIDs(vals)}
    page.IsLast, _ = m["isLast"].(bool)
    // boards without an id still count towards the page size
    if len(vals) == 0 || (max > 0 && len(vals) < max) { page.IsLast = true }
    return page, nil
}

// BoardsForIssue returns the boards the tracker reports for an issue, in listing order.
func (c *Client) BoardsForIssue(ctx context.Context, key domain.IssueKey) ([]domain.BoardID, error) {
    u := c.apiURL("/rest/agile/1.0/issue/"+url.PathEscape(key.String())+"/board", nil)
    m, err := c.doJSON(ctx, "issue-boards", http.MethodGet, u, nil)
    if err != nil { return nil, err }
    vals, _ := m["values"].([]any)
    return boardIDs(vals), nil
}

// BacklogMatches counts issues in the board's backlog matching jql.
func (c *Client) BacklogMatches(ctx context.Context, board domain.BoardID, jql string, max int) (int, error) {
    if board == "" { return 0, errors.New("jira: invalid board id") }
    return c.boardQuery(ctx, "backlog", "/rest/agile/1.0/board/"+url.PathEscape(string(board))+"/backlog", jql, max)
}

// BoardMatches counts issues on the board (active view) matching jql.
func (c *Client) BoardMatches(ctx context.Context, board domain.BoardID, jql string, max int) (int, error) {
    if board == "" { return 0, errors.New("jira: invalid board id") }
    return c.boardQuery(ctx, "board-issues", "/rest/agile/1.0/board/"+url.PathEscape(string(board))+"/issue", jql, max)
}

func (c *Client) boardQuery(ctx context.Context, op, path, jql string, max int) (int, error) {
    q := url.Values{}
    if strings.TrimSpace(jql) != "" { q.Set("jql", jql) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    q.Set("fields", "key")
    m, err := c.doJSON(ctx, op, http.MethodGet, c.apiURL(path, q), nil)
    if err != nil { return 0, err }
    return matchCount(m), nil
}

// matchCount prefers the reported total and falls back to the page length.
func matchCount(m map[string]any) int {
    if v, ok := m["total"].(float64); ok { return int(v) }
    issues, _ := m["issues"].([]any)
    return len(issues)
}

func boardIDs(vals []any) []domain.BoardID {
    out := make([]domain.BoardID, 0, len(vals))
    for _, v0 := range vals {
        b, _ := v0.(map[string]any)
        if b == nil { continue }
        id := idString(b["id"])
        if id == "" { id = idString(b["boardId"]) }
        if id != "" { out = append(out, domain.BoardID(id)) }
    }
    return out
}

func idString(v any) string {
    switch vv := v.(type) {
    case float64:
        if vv <= 0 { return "" }
        return strconv.FormatInt(int64(vv), 10)
    case string:
        return strings.TrimSpace(vv)
    case json.Number:
        return vv.String()
    }
    return ""
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func derefTime(t *time.Time) time.Time { if t == nil { return time.Time{} }; return *t }

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}
