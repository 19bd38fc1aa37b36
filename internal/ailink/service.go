package ailink

import (
	"context"
	"fmt"
	"time"

	"github.com/chatrelay/chatrelay/internal/ailink/driver"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	defaultTimeout = 60 * time.Second
)

// Service wraps a completion driver with the relay's fixed conversation
// shape: one system prompt plus the user's message, no history.
type Service struct {
	Driver       driver.Driver
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
}

// Reply is the result of a successful completion call.
//
// Text may be empty even on success; callers decide how to surface that.
type Reply struct {
	Text         string
	FinishReason string
	Usage        driver.Usage
}

// Complete requests a completion for a single user message.
//
// The call is bounded by the configured timeout so a stalled provider
// cannot hold a conversation open indefinitely.
func (s *Service) Complete(ctx context.Context, userText string) (*Reply, error) {
	if s == nil || s.Driver == nil {
		return nil, fmt.Errorf("completion driver not configured")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]driver.Message, 0, 2)
	if s.SystemPrompt != "" {
		messages = append(messages, driver.Message{Role: roleSystem, Content: s.SystemPrompt})
	}
	messages = append(messages, driver.Message{Role: roleUser, Content: userText})

	req := &driver.Request{
		Model:    s.Model,
		Messages: messages,
	}
	if s.Temperature > 0 {
		temp := s.Temperature
		req.Temperature = &temp
	}
	if s.MaxTokens > 0 {
		tokens := s.MaxTokens
		req.MaxTokens = &tokens
	}

	resp, err := s.Driver.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("driver returned no response")
	}

	reply := &Reply{
		Text:         resp.Text,
		FinishReason: resp.FinishReason,
	}
	if resp.Usage != nil {
		reply.Usage = *resp.Usage
	}

	return reply, nil
}
