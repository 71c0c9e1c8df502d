package jobs

import (
    "context"
    "errors"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/HamedShams/jira-lens/internal/adapters/telegram"
    "github.com/HamedShams/jira-lens/internal/config"
    "github.com/HamedShams/jira-lens/internal/domain"
    "github.com/HamedShams/jira-lens/internal/repo"
)

type fakeScan struct {
    scanned  int
    findings []domain.Finding
    err      error
    calls    int
}

func (f *fakeScan) Scan(ctx context.Context) (int, []domain.Finding, error) {
    f.calls++
    return f.scanned, f.findings, f.err
}

type fakeStore struct {
    mu       sync.Mutex
    locked   bool
    unlocks  int
    inserted []domain.Finding
    finished struct{ scanned, flagged int; success bool; err string }
}

func (s *fakeStore) TryAdvisoryLock(ctx context.Context, key int64) (func(context.Context) error, bool, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.locked { return nil, false, nil }
    s.locked = true
    return func(context.Context) error {
        s.mu.Lock(); defer s.mu.Unlock()
        s.locked = false; s.unlocks++
        return nil
    }, true, nil
}

func (s *fakeStore) StartScanRun(ctx context.Context, jql string) (int64, error) { return 7, nil }

func (s *fakeStore) FinishScanRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error {
    s.finished.scanned, s.finished.flagged, s.finished.success, s.finished.err = scanned, flagged, success, errStr
    return nil
}

func (s *fakeStore) InsertFindings(ctx context.Context, runID int64, f []domain.Finding) error {
    s.inserted = append(s.inserted, f...)
    return nil
}

func (s *fakeStore) GetLastRun(ctx context.Context) (*repo.LastRun, error) {
    return &repo.LastRun{ID: 7, IssuesFlagged: s.finished.flagged}, nil
}

type fakeNotifier struct {
    sent     map[int64]string
    plain    map[int64]string
    rejectMD error
}

func (n *fakeNotifier) SendMarkdownV2(ctx context.Context, chatID int64, text string) error {
    if n.rejectMD != nil { return n.rejectMD }
    if n.sent == nil { n.sent = map[int64]string{} }
    n.sent[chatID] = text
    return nil
}

func (n *fakeNotifier) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
    if n.plain == nil { n.plain = map[int64]string{} }
    n.plain[chatID] = text
    return nil
}

func sampleFindings() []domain.Finding {
    return []domain.Finding{
        {Key: "AB-1", Result: domain.ClassificationResult{IsStale: true, DaysSinceUpdate: 40.2}},
        {Key: "AB-9", Result: domain.ClassificationResult{IsStuckInStatus: true, CurrentStatus: "Testing", DaysInCurrentStatus: 16}},
    }
}

func testConfig() config.Config {
    return config.Config{TZ: "UTC", WatchJQL: "project = AB", WatchCron: "0 9 * * MON-FRI", TelegramChatIDs: []int64{11, 22}}
}

func TestRunNow_RecordsAndNotifies(t *testing.T) {
    svc := &fakeScan{scanned: 12, findings: sampleFindings()}
    st := &fakeStore{}
    n := &fakeNotifier{}
    cr := NewCron(testConfig(), zerolog.Nop(), svc, st, n)

    require.NoError(t, cr.RunNow(context.Background()))
    assert.Len(t, st.inserted, 2)
    assert.Equal(t, 12, st.finished.scanned)
    assert.Equal(t, 2, st.finished.flagged)
    assert.True(t, st.finished.success)
    assert.Equal(t, 1, st.unlocks)
    require.Len(t, n.sent, 2)
    assert.Contains(t, n.sent[11], `AB\-1`)
    assert.Contains(t, n.sent[11], `Stale \(40d\)`)
    assert.Contains(t, n.sent[22], `Stuck: Testing \(16d\)`)

    lr, err := cr.LastRun(context.Background())
    require.NoError(t, err)
    assert.EqualValues(t, 7, lr.ID)
}

func TestRunNow_LockHeldElsewhere(t *testing.T) {
    svc := &fakeScan{}
    st := &fakeStore{locked: true}
    cr := NewCron(testConfig(), zerolog.Nop(), svc, st, nil)
    assert.ErrorIs(t, cr.RunNow(context.Background()), ErrBusy)
    assert.Equal(t, 0, svc.calls)
}

func TestRunNow_ScanFailureRecordedWithoutDigest(t *testing.T) {
    svc := &fakeScan{err: errors.New("jira down")}
    st := &fakeStore{}
    n := &fakeNotifier{}
    cr := NewCron(testConfig(), zerolog.Nop(), svc, st, n)

    assert.Error(t, cr.RunNow(context.Background()))
    assert.False(t, st.finished.success)
    assert.Equal(t, "jira down", st.finished.err)
    assert.Empty(t, n.sent)
    assert.Equal(t, 1, st.unlocks)
}

func TestRunNow_FallsBackToPlainWhenMarkdownRejected(t *testing.T) {
    n := &fakeNotifier{rejectMD: &telegram.APIError{Method: "sendMessage", Status: 400, Body: "can't parse entities"}}
    cfg := testConfig()
    cfg.JiraBaseURL = "https://x.atlassian.net"
    cr := NewCron(cfg, zerolog.Nop(), &fakeScan{scanned: 5, findings: sampleFindings()}, nil, n)

    require.NoError(t, cr.RunNow(context.Background()))
    require.Len(t, n.plain, 2)
    assert.Contains(t, n.plain[11], "Jira watch: 2 of 5 issues flagged")
    assert.Contains(t, n.plain[11], "- AB-1 https://x.atlassian.net/browse/AB-1: Stale (40d)")
    assert.NotContains(t, n.plain[11], `\`)

    // other failures are not retried as plain text
    n = &fakeNotifier{rejectMD: &telegram.APIError{Method: "sendMessage", Status: 500}}
    cr = NewCron(cfg, zerolog.Nop(), &fakeScan{scanned: 5, findings: sampleFindings()}, nil, n)
    require.NoError(t, cr.RunNow(context.Background()))
    assert.Empty(t, n.plain)
}

func TestLastRun_InMemoryWithoutStore(t *testing.T) {
    cr := NewCron(testConfig(), zerolog.Nop(), &fakeScan{scanned: 3, findings: sampleFindings()[:1]}, nil, nil)
    fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
    cr.now = func() time.Time { return fixed }

    _, err := cr.LastRun(context.Background())
    var nf *domain.NotFoundError
    require.ErrorAs(t, err, &nf)

    require.NoError(t, cr.RunNow(context.Background()))
    lr, err := cr.LastRun(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 3, lr.IssuesScanned)
    assert.Equal(t, []string{"AB-1"}, lr.Findings)
    assert.Equal(t, fixed, lr.StartedAt)
    assert.True(t, lr.Success)
}

func TestNewCron_SchedulesOnlyWithJQL(t *testing.T) {
    cr := NewCron(testConfig(), zerolog.Nop(), &fakeScan{}, nil, nil)
    assert.Len(t, cr.c.Entries(), 1)

    cfg := testConfig(); cfg.WatchJQL = ""
    assert.Empty(t, NewCron(cfg, zerolog.Nop(), &fakeScan{}, nil, nil).c.Entries())

    cfg = testConfig(); cfg.WatchCron = "not a schedule"
    assert.Empty(t, NewCron(cfg, zerolog.Nop(), &fakeScan{}, nil, nil).c.Entries())
}

func TestRenderDigest(t *testing.T) {
    var many []domain.Finding
    for i := 0; i < maxDigestLines+3; i++ {
        many = append(many, domain.Finding{Key: "AB-1", Result: domain.ClassificationResult{IsStale: true}})
    }
    out := renderDigest("https://x.atlassian.net", 50, many, true)
    assert.True(t, strings.HasPrefix(out, `*Jira watch: 43 of 50 issues flagged*`))
    assert.Contains(t, out, `[AB\-1](https://x.atlassian.net/browse/AB-1)`)
    assert.Contains(t, out, `\.\.\. and 3 more`)
}
