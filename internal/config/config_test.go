package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
    for _, k := range []string{"APP_ENV", "JIRA_API_VERSION", "BOARD_PAGE_SIZE", "JIRA_RETRY_ATTEMPTS", "TELEGRAM_CHAT_IDS", "APP_TZ"} {
        t.Setenv(k, "")
    }
    cfg := Load()
    assert.Equal(t, "dev", cfg.AppEnv)
    assert.Equal(t, "3", cfg.JiraAPIVersion)
    assert.Equal(t, 50, cfg.BoardPageSize)
    assert.Equal(t, 20, cfg.BoardMaxPages)
    assert.Equal(t, 1, cfg.JiraRetry.MaxAttempts)
    assert.Nil(t, cfg.TelegramChatIDs)
    assert.True(t, cfg.Classification.IsProgress("tech review"))
    assert.True(t, cfg.Classification.IsDone("done (deployed to prod)"))
    assert.Equal(t, 30.0, cfg.Classification.StaleThresholdDays)
}

func TestLoad_FromEnv(t *testing.T) {
    t.Setenv("APP_TZ", "UTC")
    t.Setenv("JIRA_BASE_URL", "https://acme.atlassian.net/")
    t.Setenv("JIRA_API_VERSION", "2")
    t.Setenv("JIRA_RETRY_ATTEMPTS", "3")
    t.Setenv("JIRA_RETRY_DELAY", "1s")
    t.Setenv("BOARD_PAGE_SIZE", "-4")
    t.Setenv("HTTP_TIMEOUT", "not-a-duration")
    t.Setenv("TELEGRAM_CHAT_IDS", "12, x, -99,")
    cfg := Load()
    assert.Equal(t, "https://acme.atlassian.net", cfg.JiraBaseURL)
    assert.Equal(t, "2", cfg.JiraAPIVersion)
    assert.Equal(t, 3, cfg.JiraRetry.MaxAttempts)
    assert.Equal(t, time.Second, cfg.JiraRetry.Delay)
    assert.Equal(t, 50, cfg.BoardPageSize)
    assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
    assert.Equal(t, []int64{12, -99}, cfg.TelegramChatIDs)
}

func TestLoad_UnknownAPIVersionFallsBackToV3(t *testing.T) {
    t.Setenv("JIRA_API_VERSION", "9")
    assert.Equal(t, "3", Load().JiraAPIVersion)
}
