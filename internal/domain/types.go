/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
    "regexp"
    "strings"
    "time"
)

var issueKeyRe = regexp.MustCompile(`^([A-Z]+)-([1-9][0-9]*)$`)

// IssueKey is a validated PROJECT-NUMBER identifier.
type IssueKey string

// ParseIssueKey trims s and checks it against the PROJECT-NUMBER shape.
func ParseIssueKey(s string) (IssueKey, error) {
    s = strings.TrimSpace(s)
    if !issueKeyRe.MatchString(s) { return "", &MalformedKeyError{Key: s} }
    return IssueKey(s), nil
}

func (k IssueKey) String() string { return string(k) }

// Project returns the upper-cased portion before the separator.
func (k IssueKey) Project() string {
    p, _, _ := strings.Cut(string(k), "-")
    return strings.ToUpper(p)
}

type BoardID string

type MembershipStatus string

const (
    OnBoard   MembershipStatus = "board"
    InBacklog MembershipStatus = "backlog"
)

// Resolution is the resolver's answer. BoardID is empty when no board context
// could be found; Status is then InBacklog.
type Resolution struct {
    BoardID    BoardID          `json:"board_id"`
    Status     MembershipStatus `json:"status"`
    Discovered bool             `json:"discovered"`
}

// StatusChangeEvent is one changelog item. Only Field == "status" matters to the classifier.
type StatusChangeEvent struct {
    At    time.Time
    Field string
    To    string
}

func (e StatusChangeEvent) IsStatus() bool { return strings.EqualFold(e.Field, "status") }

type IssueSnapshot struct {
    Key           IssueKey
    CreatedAt     time.Time
    UpdatedAt     time.Time
    CurrentStatus string
    History       []StatusChangeEvent
}

type ClassificationResult struct {
    IsDone              bool    `json:"is_done"`
    IsStale             bool    `json:"is_stale"`
    IsPingPong          bool    `json:"is_ping_pong"`
    IsStuckInStatus     bool    `json:"is_stuck_in_status"`
    DaysSinceUpdate     float64 `json:"days_since_update"`
    DaysSinceCreation   float64 `json:"days_since_creation"`
    DaysInCurrentStatus float64 `json:"days_in_current_status"`
    CurrentStatus       string  `json:"current_status"`
}

// Flagged reports whether any of the three classifications is raised.
func (r ClassificationResult) Flagged() bool { return r.IsStale || r.IsPingPong || r.IsStuckInStatus }

// Finding is one classified issue produced by a watch scan.
type Finding struct {
    Key    IssueKey
    Result ClassificationResult
}

// BoardPage is one page of the board directory listing.
type BoardPage struct {
    Boards []BoardID
    IsLast bool
}

// SearchPage is one page of a JQL search, keys only.
type SearchPage struct {
    Keys  []IssueKey
    Total int
}
