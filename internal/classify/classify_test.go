package classify

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/HamedShams/jira-lens/internal/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time { return now.Add(-time.Duration(d * float64(24*time.Hour))) }

func testConfig() Config {
    return NewConfig(30, 14, 14, []string{"In Progress"}, []string{"Done"})
}

func TestClassify_StaleAndNeverStarted(t *testing.T) {
    s := domain.IssueSnapshot{CreatedAt: daysAgo(40), UpdatedAt: daysAgo(35), CurrentStatus: "To Do"}
    r := Classify(s, testConfig(), now)
    assert.False(t, r.IsDone)
    assert.True(t, r.IsStale)
    assert.True(t, r.IsPingPong)
    assert.False(t, r.IsStuckInStatus)
    assert.InDelta(t, 35, r.DaysSinceUpdate, 1e-9)
    assert.InDelta(t, 40, r.DaysSinceCreation, 1e-9)
    assert.InDelta(t, 40, r.DaysInCurrentStatus, 1e-9)
    assert.Equal(t, "To Do", r.CurrentStatus)
}

func TestClassify_DoneShortCircuits(t *testing.T) {
    s := domain.IssueSnapshot{CreatedAt: daysAgo(40), UpdatedAt: daysAgo(35), CurrentStatus: "Done"}
    r := Classify(s, testConfig(), now)
    assert.Equal(t, domain.ClassificationResult{IsDone: true, CurrentStatus: "Done"}, r)
}

func TestClassify_DoneIgnoresHistoryAndCase(t *testing.T) {
    s := domain.IssueSnapshot{
        CreatedAt: daysAgo(400), UpdatedAt: daysAgo(300), CurrentStatus: "dONE",
        History: []domain.StatusChangeEvent{
            {At: daysAgo(350), Field: "status", To: "In Progress"},
            {At: daysAgo(300), Field: "status", To: "Done"},
        },
    }
    r := Classify(s, testConfig(), now)
    assert.True(t, r.IsDone)
    assert.False(t, r.Flagged())
    assert.Zero(t, r.DaysSinceUpdate)
}

func TestClassify_StaleBoundaryIsStrict(t *testing.T) {
    cfg := testConfig()
    s := domain.IssueSnapshot{CreatedAt: daysAgo(30), UpdatedAt: daysAgo(30), CurrentStatus: "In Progress"}
    assert.False(t, Classify(s, cfg, now).IsStale)

    s.UpdatedAt = daysAgo(30).Add(-time.Second)
    assert.True(t, Classify(s, cfg, now).IsStale)
}

func TestClassify_ProgressEventClearsPingPong(t *testing.T) {
    cfg := testConfig()
    s := domain.IssueSnapshot{CreatedAt: daysAgo(500), UpdatedAt: daysAgo(1), CurrentStatus: "To Do"}
    assert.True(t, Classify(s, cfg, now).IsPingPong)

    s.History = []domain.StatusChangeEvent{
        {At: daysAgo(400), Field: "assignee", To: "In Progress"},
        {At: daysAgo(300), Field: "status", To: "in progress"},
        {At: daysAgo(200), Field: "status", To: "To Do"},
    }
    r := Classify(s, cfg, now)
    assert.False(t, r.IsPingPong)
    assert.False(t, r.IsStale)
}

func TestClassify_NonStatusFieldDoesNotCount(t *testing.T) {
    s := domain.IssueSnapshot{
        CreatedAt: daysAgo(20), UpdatedAt: daysAgo(1), CurrentStatus: "To Do",
        History: []domain.StatusChangeEvent{{At: daysAgo(10), Field: "resolution", To: "In Progress"}},
    }
    assert.True(t, Classify(s, testConfig(), now).IsPingPong)
}

func TestClassify_YoungIssueIsNotPingPong(t *testing.T) {
    s := domain.IssueSnapshot{CreatedAt: daysAgo(14), UpdatedAt: daysAgo(14), CurrentStatus: "Backlog"}
    assert.False(t, Classify(s, testConfig(), now).IsPingPong)
}

func TestClassify_StuckInStatusUsesMostRecentEntry(t *testing.T) {
    s := domain.IssueSnapshot{
        CreatedAt: daysAgo(60), UpdatedAt: daysAgo(2), CurrentStatus: "In Progress",
        // out of order on purpose
        History: []domain.StatusChangeEvent{
            {At: daysAgo(10), Field: "status", To: "In Progress"},
            {At: daysAgo(50), Field: "status", To: "In Progress"},
            {At: daysAgo(30), Field: "status", To: "To Do"},
        },
    }
    r := Classify(s, testConfig(), now)
    assert.InDelta(t, 10, r.DaysInCurrentStatus, 1e-9)
    assert.False(t, r.IsStuckInStatus)

    s.History = s.History[1:]
    r = Classify(s, testConfig(), now)
    assert.InDelta(t, 50, r.DaysInCurrentStatus, 1e-9)
    assert.True(t, r.IsStuckInStatus)
    assert.False(t, r.IsPingPong)
}

func TestClassify_StuckFallsBackToCreatedAt(t *testing.T) {
    s := domain.IssueSnapshot{CreatedAt: daysAgo(20), UpdatedAt: daysAgo(1), CurrentStatus: "In Progress"}
    r := Classify(s, testConfig(), now)
    assert.InDelta(t, 20, r.DaysInCurrentStatus, 1e-9)
    assert.True(t, r.IsStuckInStatus)
}

func TestClassify_StuckRequiresProgressStatus(t *testing.T) {
    cfg := testConfig()
    s := domain.IssueSnapshot{
        CreatedAt: daysAgo(60), UpdatedAt: daysAgo(1), CurrentStatus: "In Progress",
        History: []domain.StatusChangeEvent{{At: daysAgo(40), Field: "status", To: "In Progress"}},
    }
    assert.True(t, Classify(s, cfg, now).IsStuckInStatus)

    s.CurrentStatus = "Blocked"
    s.History = []domain.StatusChangeEvent{{At: daysAgo(40), Field: "status", To: "Blocked"}}
    assert.False(t, Classify(s, cfg, now).IsStuckInStatus)
}

func TestClassify_FlagsAreIndependent(t *testing.T) {
    s := domain.IssueSnapshot{CreatedAt: daysAgo(90), UpdatedAt: daysAgo(45), CurrentStatus: "In Progress"}
    r := Classify(s, testConfig(), now)
    assert.True(t, r.IsStale)
    assert.True(t, r.IsStuckInStatus)
    assert.False(t, r.IsPingPong)
}

func TestClassify_DoesNotMutateHistory(t *testing.T) {
    hist := []domain.StatusChangeEvent{
        {At: daysAgo(50), Field: "status", To: "In Progress"},
        {At: daysAgo(10), Field: "status", To: "To Do"},
    }
    s := domain.IssueSnapshot{CreatedAt: daysAgo(60), UpdatedAt: daysAgo(1), CurrentStatus: "In Progress", History: hist}
    _ = Classify(s, testConfig(), now)
    assert.Equal(t, daysAgo(50), hist[0].At)
    assert.Equal(t, daysAgo(10), hist[1].At)
}

func TestNewConfig_CanonicalizesStatuses(t *testing.T) {
    cfg := NewConfig(1, 1, 1, []string{" In Progress ", "TECH REVIEW", ""}, []string{"Done", "closed"})
    assert.True(t, cfg.IsProgress("in progress"))
    assert.True(t, cfg.IsProgress("Tech Review"))
    assert.True(t, cfg.IsDone("CLOSED"))
    assert.False(t, cfg.IsDone(""))
    assert.Equal(t, []string{"in progress", "tech review"}, cfg.ProgressStatuses())
    assert.Equal(t, []string{"closed", "done"}, cfg.DoneStatuses())
}
