/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package badge

import (
    "fmt"
    "math"

    "github.com/HamedShams/jira-lens/internal/domain"
)

type Kind string

const (
    KindBoard         Kind = "board"
    KindBacklog       Kind = "backlog"
    KindStale         Kind = "stale"
    KindPingPong      Kind = "ping_pong"
    KindStuckInStatus Kind = "stuck_in_status"
)

// Badge is what a client needs to draw one indicator.
type Badge struct {
    Kind       Kind   `json:"kind"`
    Text       string `json:"text"`
    Background string `json:"background"`
    Border     string `json:"border,omitempty"`
    Color      string `json:"color"`
}

func Membership(st domain.MembershipStatus) Badge {
    if st == domain.OnBoard {
        return Badge{Kind: KindBoard, Text: "BOARD", Background: "#E3FCEF", Color: "#006644"}
    }
    return Badge{Kind: KindBacklog, Text: "BACKLOG", Background: "#DEEBFF", Color: "#0747A6"}
}

func wholeDays(d float64) int { return int(math.Floor(d)) }

func stale(r domain.ClassificationResult) Badge {
    return Badge{Kind: KindStale, Text: fmt.Sprintf("Stale (%dd)", wholeDays(r.DaysSinceUpdate)), Background: "#fff0f0", Border: "#ccc", Color: "#666"}
}

func pingPong(r domain.ClassificationResult) Badge {
    return Badge{Kind: KindPingPong, Text: fmt.Sprintf("Stuck (%dd)", wholeDays(r.DaysSinceCreation)), Background: "#fff8e1", Border: "#ff9900", Color: "#cc7a00"}
}

func stuck(r domain.ClassificationResult) Badge {
    return Badge{Kind: KindStuckInStatus, Text: fmt.Sprintf("Stuck: %s (%dd)", r.CurrentStatus, wholeDays(r.DaysInCurrentStatus)), Background: "#f3e5f5", Border: "#7b1fa2", Color: "#7b1fa2"}
}

// Card returns one badge per raised flag, for board cards.
func Card(r domain.ClassificationResult) []Badge {
    if r.IsDone { return nil }
    var out []Badge
    if r.IsStale { out = append(out, stale(r)) }
    if r.IsPingPong { out = append(out, pingPong(r)) }
    if r.IsStuckInStatus { out = append(out, stuck(r)) }
    return out
}

// Detail returns the single badge shown on an issue view: stale, then
// never-started, then stuck-in-status.
func Detail(r domain.ClassificationResult) (Badge, bool) {
    b := Card(r)
    if len(b) == 0 { return Badge{}, false }
    return b[0], true
}
