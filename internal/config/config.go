/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "log"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/jira-lens/internal/classify"
    "github.com/HamedShams/jira-lens/internal/retry"
)

type Config struct {
    AppEnv   string
    TZ       string
    HTTPAddr string

    DBDSN string

    JiraBaseURL    string
    JiraPAT        string
    JiraUsername   string
    JiraPassword   string
    JiraAPIVersion string
    JiraRetry      retry.Policy
    HTTPTimeout    time.Duration

    BoardPageSize int
    BoardMaxPages int

    WatchJQL      string
    WatchCron     string
    WatchMaxIssues int
    WorkersJira   int
    Rescan        retry.Policy

    TelegramToken   string
    TelegramChatIDs []int64

    Classification classify.Config
}

// DefaultClassification is the fixed workflow configuration. It is not read
// from the environment.
var DefaultClassification = classify.NewConfig(
    30, 14, 14,
    []string{"In Progress", "Tech Review", "Merged", "Testing", "Ready for Release"},
    []string{"Done", "Done (deployed to prod)", "Closed"},
)

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func parseInt64s(csv string) []int64 {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]int64, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        n, err := strconv.ParseInt(p, 10, 64)
        if err == nil { out = append(out, n) }
    }
    return out
}

func Load() Config {
    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        TZ:       getenv("APP_TZ", "UTC"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        DBDSN: getenv("DB_DSN", ""),

        JiraBaseURL:    strings.TrimRight(getenv("JIRA_BASE_URL", ""), "/"),
        JiraPAT:        getenv("JIRA_PAT", ""),
        JiraUsername:   getenv("JIRA_USERNAME", ""),
        JiraPassword:   getenv("JIRA_PASSWORD", ""),
        JiraAPIVersion: getenv("JIRA_API_VERSION", "3"),
        JiraRetry:      retry.Policy{MaxAttempts: atoi("JIRA_RETRY_ATTEMPTS", 1), Delay: dur("JIRA_RETRY_DELAY", 300*time.Millisecond)},
        HTTPTimeout:    dur("HTTP_TIMEOUT", 15*time.Second),

        BoardPageSize: atoi("BOARD_PAGE_SIZE", 50),
        BoardMaxPages: atoi("BOARD_MAX_PAGES", 20),

        WatchJQL:       getenv("WATCH_JQL", ""),
        WatchCron:      getenv("WATCH_CRON", "0 9 * * MON-FRI"),
        WatchMaxIssues: atoi("WATCH_MAX_ISSUES", 200),
        WorkersJira:    atoi("WORKERS_JIRA", 6),
        Rescan:         retry.Policy{MaxAttempts: atoi("RESCAN_ATTEMPTS", 10), Delay: dur("RESCAN_DELAY", 300*time.Millisecond)},

        TelegramToken:   getenv("TELEGRAM_BOT_TOKEN", ""),
        TelegramChatIDs: parseInt64s(getenv("TELEGRAM_CHAT_IDS", "")),

        Classification: DefaultClassification,
    }
    if cfg.JiraAPIVersion != "2" { cfg.JiraAPIVersion = "3" }
    if cfg.BoardPageSize <= 0 { cfg.BoardPageSize = 50 }
    if cfg.BoardMaxPages <= 0 { cfg.BoardMaxPages = 20 }

    // set global timezone if available
    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    } else {
        log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
    }
    return cfg
}
