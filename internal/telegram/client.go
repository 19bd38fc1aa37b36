package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client over direct HTTP.
//
// Only the handful of methods the relay needs are implemented. Error
// strings never contain the bot token, even when the underlying HTTP
// error embeds the request URL.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	// ParseMode is applied to outgoing messages. Telegram rejects
	// malformed markup with a 400, which surfaces as an APIError.
	ParseMode string
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, token string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}

	return &Client{
		BaseURL:   url,
		Token:     strings.TrimSpace(token),
		ParseMode: "HTML",
	}
}

// GetMe verifies the token and returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", struct{}{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates long-polls for new updates at or after offset. Timeout is
// the server-side hold duration; the HTTP request itself is given a
// little extra slack on top.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout,omitempty"`
		AllowedUpdates []string `json:"allowed_updates,omitempty"`
	}{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout+10*time.Second)
		defer cancel()
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage delivers text to a chat using the configured parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, c.ParseMode)
}

// SendPlainMessage delivers text without a parse mode, so content that
// Telegram would reject as malformed markup still goes through.
func (c *Client) SendPlainMessage(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, "")
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	payload := struct {
		ChatID    int64  `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode,omitempty"`
	}{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendTyping shows the "typing..." indicator in a chat.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	payload := struct {
		ChatID int64  `json:"chat_id"`
		Action string `json:"action"`
	}{
		ChatID: chatID,
		Action: "typing",
	}
	return c.call(ctx, "sendChatAction", payload, nil)
}

// call posts a JSON payload to a bot method and decodes the envelope.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	if c == nil || c.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/bot" + c.Token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %s", method, c.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: request failed: %s", method, c.redact(err))
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}

	if !envelope.Ok {
		apiErr := &APIError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}

	return nil
}

// redact strips the bot token out of error text. Transport errors embed
// the full request URL, which would otherwise leak the token into logs.
func (c *Client) redact(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	if c != nil && c.Token != "" {
		text = strings.ReplaceAll(text, c.Token, "<token>")
	}
	return text
}
