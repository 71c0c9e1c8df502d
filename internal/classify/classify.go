/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package classify derives stale / never-progressed / stuck-in-status flags
// from an issue snapshot. Everything here is a pure function of its inputs.
package classify

import (
    "sort"
    "strings"
    "time"

    "github.com/HamedShams/jira-lens/internal/domain"
)

const day = 24 * time.Hour

// Config holds the workflow thresholds. Status sets are stored lower-cased;
// build it with NewConfig so every lookup is case-insensitive.
type Config struct {
    StaleThresholdDays float64
    PingPongMinAgeDays float64
    StuckInStatusDays  float64
    progress           map[string]struct{}
    done               map[string]struct{}
}

func NewConfig(staleDays, pingPongDays, stuckDays float64, progress, done []string) Config {
    return Config{
        StaleThresholdDays: staleDays,
        PingPongMinAgeDays: pingPongDays,
        StuckInStatusDays:  stuckDays,
        progress:           statusSet(progress),
        done:               statusSet(done),
    }
}

func statusSet(names []string) map[string]struct{} {
    m := make(map[string]struct{}, len(names))
    for _, n := range names {
        n = canon(n)
        if n != "" { m[n] = struct{}{} }
    }
    return m
}

func canon(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (c Config) IsProgress(status string) bool { _, ok := c.progress[canon(status)]; return ok }
func (c Config) IsDone(status string) bool     { _, ok := c.done[canon(status)]; return ok }

// ProgressStatuses returns the canonical progress set, sorted.
func (c Config) ProgressStatuses() []string { return keys(c.progress) }
func (c Config) DoneStatuses() []string     { return keys(c.done) }

func keys(m map[string]struct{}) []string {
    out := make([]string, 0, len(m))
    for k := range m { out = append(out, k) }
    sort.Strings(out)
    return out
}

func daysBetween(from, to time.Time) float64 { return float64(to.Sub(from)) / float64(day) }

// Classify computes the flags for s at instant now. Done issues short-circuit
// with every flag false.
func Classify(s domain.IssueSnapshot, cfg Config, now time.Time) domain.ClassificationResult {
    if cfg.IsDone(s.CurrentStatus) {
        return domain.ClassificationResult{IsDone: true, CurrentStatus: s.CurrentStatus}
    }
    res := domain.ClassificationResult{CurrentStatus: s.CurrentStatus}

    res.DaysSinceUpdate = daysBetween(s.UpdatedAt, now)
    res.IsStale = res.DaysSinceUpdate > cfg.StaleThresholdDays

    res.DaysSinceCreation = daysBetween(s.CreatedAt, now)
    res.IsPingPong = !touchedProgress(s, cfg) && res.DaysSinceCreation > cfg.PingPongMinAgeDays

    res.DaysInCurrentStatus = daysBetween(statusChangedAt(s), now)
    res.IsStuckInStatus = cfg.IsProgress(s.CurrentStatus) && res.DaysInCurrentStatus > cfg.StuckInStatusDays
    return res
}

func touchedProgress(s domain.IssueSnapshot, cfg Config) bool {
    if cfg.IsProgress(s.CurrentStatus) { return true }
    for _, e := range s.History {
        if e.IsStatus() && cfg.IsProgress(e.To) { return true }
    }
    return false
}

// statusChangedAt is the time of the most recent transition into the current
// status, or CreatedAt when history has none. Equal timestamps keep history order.
func statusChangedAt(s domain.IssueSnapshot) time.Time {
    hist := make([]domain.StatusChangeEvent, len(s.History))
    copy(hist, s.History)
    sort.SliceStable(hist, func(i, j int) bool { return hist[i].At.After(hist[j].At) })
    cur := canon(s.CurrentStatus)
    for _, e := range hist {
        if e.IsStatus() && canon(e.To) == cur { return e.At }
    }
    return s.CreatedAt
}
