package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/relay"
)

func TestClientGetMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/getMe", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":12345,"is_bot":true,"first_name":"Relay","username":"relay_bot"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12345), user.ID)
	require.Equal(t, "relay_bot", user.Username)
	require.True(t, user.IsBot)
}

func TestClientGetUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/getUpdates", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.EqualValues(t, 7, payload["offset"])
		require.EqualValues(t, 50, payload["timeout"])

		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"from":{"id":42,"username":"alice"},"chat":{"id":100,"type":"private"},"date":1700000000,"text":"hello"}},
			{"update_id":8,"message":{"message_id":2,"from":{"id":43},"chat":{"id":101,"type":"private"},"date":1700000001}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	updates, err := client.GetUpdates(context.Background(), 7, 50*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.Equal(t, int64(7), updates[0].UpdateID)
	require.Equal(t, "hello", updates[0].Message.Text)
	require.Equal(t, int64(42), updates[0].Message.From.ID)
	require.Empty(t, updates[1].Message.Text)
}

func TestClientSendMessage(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.SendMessage(context.Background(), 100, "hi there"))
	require.EqualValues(t, 100, got["chat_id"])
	require.Equal(t, "hi there", got["text"])
	require.Equal(t, "HTML", got["parse_mode"])
}

func TestClientSendPlainMessageOmitsParseMode(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.SendPlainMessage(context.Background(), 100, "plain text"))
	require.Equal(t, "plain text", got["text"])
	require.NotContains(t, got, "parse_mode")
}

func TestClientSendTyping(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/sendChatAction", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.SendTyping(context.Background(), 100))
	require.Equal(t, "typing", got["action"])
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	err := client.SendMessage(context.Background(), 100, "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 429, apiErr.Code)
	require.Equal(t, 5, apiErr.RetryAfter)
	require.Equal(t, "sendMessage", apiErr.Method)
}

func TestClientErrorsNeverContainToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "secret-token-value")
	client.HTTPClient = &http.Client{Timeout: 100 * time.Millisecond}

	err := client.SendMessage(context.Background(), 100, "hi")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "secret-token-value")
}

func TestClientRequiresToken(t *testing.T) {
	client := NewClient("", "")
	_, err := client.GetMe(context.Background())
	require.Error(t, err)
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []relay.Inbound
}

func (h *recordingHandler) Handle(ctx context.Context, in relay.Inbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, in)
}

func (h *recordingHandler) snapshot() []relay.Inbound {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]relay.Inbound(nil), h.seen...)
}

func TestPollerDeliversAndAdvancesOffset(t *testing.T) {
	var offsets []int64
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Offset int64 `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		mu.Lock()
		offsets = append(offsets, payload.Offset)
		calls := len(offsets)
		mu.Unlock()

		if calls == 1 {
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"from":{"id":42,"username":"alice"},"chat":{"id":100,"type":"private"},"date":1700000000,"text":"first"}},
				{"update_id":11,"message":{"message_id":2,"from":{"id":42,"username":"alice"},"chat":{"id":100,"type":"private"},"date":1700000001,"text":"second"}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer server.Close()

	handler := &recordingHandler{}
	poller := &Poller{
		Client:      NewClient(server.URL, "test-token"),
		Handler:     handler,
		PollTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(handler.snapshot()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	seen := handler.snapshot()
	texts := []string{seen[0].Text, seen[1].Text}
	require.ElementsMatch(t, []string{"first", "second"}, texts)
	require.True(t, poller.Healthy())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 2)
	require.Equal(t, int64(0), offsets[0])
	require.Equal(t, int64(12), offsets[1])
}

func TestPollerSkipsUpdatesWithoutSender(t *testing.T) {
	update := Update{UpdateID: 5, Message: &Message{Chat: Chat{ID: 1}}}
	_, ok := toInbound(update)
	require.False(t, ok)

	_, ok = toInbound(Update{UpdateID: 6})
	require.False(t, ok)

	in, ok := toInbound(Update{UpdateID: 7, Message: &Message{
		From: &User{ID: 42, Username: "alice"},
		Chat: Chat{ID: 100},
		Text: "hi",
	}})
	require.True(t, ok)
	require.Equal(t, int64(42), in.UserID)
	require.Equal(t, "alice", in.Username)
}

func TestPollerSurvivesPollErrors(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"boom"}`))
	}))
	defer server.Close()

	poller := &Poller{
		Client:      NewClient(server.URL, "test-token"),
		Handler:     &recordingHandler{},
		PollTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := poller.Run(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
	require.False(t, poller.Healthy())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, calls, int32(1))
}
