package relay

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chatrelay/chatrelay/internal/ailink"
)

// Messages is the user-facing text catalog. Every reply the bot sends
// comes from here, so operators can restyle the bot from a single YAML
// file without touching code.
//
// Texts may contain {bot_name}, {max_requests} and {max_length}
// placeholders, substituted at render time.
type Messages struct {
	Welcome             string `yaml:"welcome"`
	Help                string `yaml:"help"`
	RateLimited         string `yaml:"rate_limited"`
	TooLong             string `yaml:"too_long"`
	QuotaExceeded       string `yaml:"quota_exceeded"`
	ProviderRateLimited string `yaml:"provider_rate_limited"`
	ProviderUnavailable string `yaml:"provider_unavailable"`
	GenericError        string `yaml:"generic_error"`
}

// MessageVars are the substitution values for catalog placeholders.
type MessageVars struct {
	BotName     string
	MaxRequests int
	MaxLength   int
}

// DefaultMessages returns the built-in catalog.
func DefaultMessages() Messages {
	return Messages{
		Welcome: `🤖 Welcome to {bot_name}!

I'm here to help you with any questions or conversations you'd like to have. I'm powered by OpenAI's advanced AI technology.

Available commands:
/start - Show this welcome message
/help - Get help and usage information

Just send me a message and I'll do my best to help you!`,
		Help: `📚 Help & Usage Information

How to use this bot:
• Simply send me any message or question
• I'll process it using OpenAI's AI and respond
• I can help with various topics including:
  - General questions and conversations
  - Creative writing and brainstorming
  - Problem solving and analysis
  - Educational content and explanations

Commands:
/start - Show welcome message
/help - Show this help message

Rate Limits:
• Maximum {max_requests} requests per minute per user
• This helps prevent API abuse and ensures fair usage

Tips:
• Be specific in your questions for better responses
• I can handle messages up to {max_length} characters
• If you encounter any issues, please try again later

Need more help? Just ask me anything!`,
		RateLimited:         "⏰ You're sending messages too quickly. Please wait a moment before trying again.",
		TooLong:             "❌ Your message is too long. Please keep it under {max_length} characters.",
		QuotaExceeded:       "❌ API quota exceeded. Please try again later.",
		ProviderRateLimited: "❌ API rate limit exceeded. Please try again later.",
		ProviderUnavailable: "❌ I'm having trouble connecting to the AI service. Please try again later.",
		GenericError:        "❌ Sorry, I encountered an error processing your request. Please try again later.",
	}
}

// LoadMessages returns the default catalog with non-empty fields from
// the YAML file at path layered on top. An empty path means defaults only.
func LoadMessages(path string) (Messages, error) {
	base := DefaultMessages()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-provided path
	if err != nil {
		return base, fmt.Errorf("read messages file: %w", err)
	}

	var overlay Messages
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return base, fmt.Errorf("parse messages file %s: %w", path, err)
	}

	merge := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	merge(&base.Welcome, overlay.Welcome)
	merge(&base.Help, overlay.Help)
	merge(&base.RateLimited, overlay.RateLimited)
	merge(&base.TooLong, overlay.TooLong)
	merge(&base.QuotaExceeded, overlay.QuotaExceeded)
	merge(&base.ProviderRateLimited, overlay.ProviderRateLimited)
	merge(&base.ProviderUnavailable, overlay.ProviderUnavailable)
	merge(&base.GenericError, overlay.GenericError)

	return base, nil
}

// Render substitutes placeholders in every catalog entry.
func (m Messages) Render(vars MessageVars) Messages {
	replacer := strings.NewReplacer(
		"{bot_name}", vars.BotName,
		"{max_requests}", strconv.Itoa(vars.MaxRequests),
		"{max_length}", strconv.Itoa(vars.MaxLength),
	)

	m.Welcome = replacer.Replace(m.Welcome)
	m.Help = replacer.Replace(m.Help)
	m.RateLimited = replacer.Replace(m.RateLimited)
	m.TooLong = replacer.Replace(m.TooLong)
	m.QuotaExceeded = replacer.Replace(m.QuotaExceeded)
	m.ProviderRateLimited = replacer.Replace(m.ProviderRateLimited)
	m.ProviderUnavailable = replacer.Replace(m.ProviderUnavailable)
	m.GenericError = replacer.Replace(m.GenericError)
	return m
}

// ForKind maps an error kind to its user-facing text. An empty provider
// reply reads the same as a provider outage to the user.
func (m Messages) ForKind(kind ailink.ErrorKind) string {
	switch kind {
	case ailink.KindQuotaExceeded:
		return m.QuotaExceeded
	case ailink.KindProviderRateLimited:
		return m.ProviderRateLimited
	case ailink.KindProviderUnavailable, ailink.KindEmptyResponse:
		return m.ProviderUnavailable
	default:
		return m.GenericError
	}
}
