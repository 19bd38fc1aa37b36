package relay

// Inbound is a single user message after transport decoding.
type Inbound struct {
	UpdateID int64
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

// MessageClass is the result of classifying an inbound message.
type MessageClass string

const (
	// ClassCommand is a message starting with a slash.
	ClassCommand MessageClass = "command"

	// ClassEmpty is a message without a text payload, such as a sticker
	// or photo. It is dropped without a reply and without consuming
	// rate-limit quota.
	ClassEmpty MessageClass = "empty"

	// ClassTooLong exceeds the configured character limit. It is rejected
	// before the rate limiter runs, so oversized messages never consume quota.
	ClassTooLong MessageClass = "too_long"

	// ClassChat is a normal message headed for the completion provider.
	ClassChat MessageClass = "chat"
)

// Outcome labels how a message was ultimately handled, for metrics and
// the usage audit store.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeCommand     Outcome = "command"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeTooLong     Outcome = "too_long"
	OutcomeDropped     Outcome = "dropped"
	OutcomeFailed      Outcome = "failed"
)

// UsageRecord is one audit row per handled message. It carries token
// counts and outcome labels only, never message text.
type UsageRecord struct {
	MessageID        string
	UserID           int64
	Outcome          Outcome
	ErrorKind        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	DurationMillis   int64
}
