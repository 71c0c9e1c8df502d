package telegram

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/HamedShams/jira-lens/internal/config"
)

func TestSendMessage(t *testing.T) {
    var got map[string]any
    var path string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        path = r.URL.Path
        got = nil
        require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
        w.Write([]byte(`{"ok":true}`))
    }))
    defer srv.Close()

    c := NewClient(config.Config{TelegramToken: "T0K"}, zerolog.Nop()).WithAPI(srv.URL)
    require.NoError(t, c.SendMarkdownV2(context.Background(), 42, "hi"))
    assert.Equal(t, "/botT0K/sendMessage", path)
    assert.EqualValues(t, 42, got["chat_id"])
    assert.Equal(t, "MarkdownV2", got["parse_mode"])

    require.NoError(t, c.SendMessagePlain(context.Background(), 42, "hi"))
    _, hasMode := got["parse_mode"]
    assert.False(t, hasMode)
}

func TestSendMessage_Errors(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, `{"ok":false}`, http.StatusBadRequest)
    }))
    defer srv.Close()

    c := NewClient(config.Config{TelegramToken: "T0K"}, zerolog.Nop()).WithAPI(srv.URL)
    err := c.SendMessagePlain(context.Background(), 1, "x")
    require.Error(t, err)
    assert.Contains(t, err.Error(), "status=400")
    var apiErr *APIError
    require.ErrorAs(t, err, &apiErr)
    assert.Equal(t, http.StatusBadRequest, apiErr.Status)

    assert.Error(t, c.SendMessagePlain(context.Background(), 0, "x"))
    assert.False(t, NewClient(config.Config{}, zerolog.Nop()).Enabled())
}

func TestEscapeMarkdownV2(t *testing.T) {
    assert.Equal(t, `AB\-1 \(stale\)`, EscapeMarkdownV2("AB-1 (stale)"))
}
