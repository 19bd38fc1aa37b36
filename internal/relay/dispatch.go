package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatrelay/chatrelay/internal/ailink"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/observability"
)

// Transport delivers replies back to the chat platform. SendMessage uses
// the platform's rich formatting; SendPlainMessage skips it, for error
// texts that must deliver even when formatting would be rejected.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPlainMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Completer produces a completion for a single user message.
type Completer interface {
	Complete(ctx context.Context, text string) (*ailink.Reply, error)
}

// Recorder persists per-message usage records. Implementations must not
// store message text.
type Recorder interface {
	RecordOutcome(ctx context.Context, rec UsageRecord) error
}

// Dispatcher runs one inbound message through classification, rate
// limiting and completion, and sends at most one reply for it.
//
// Typing indicators and record writes are best effort: their failures are
// logged and never change what the user receives.
type Dispatcher struct {
	Transport Transport
	Completer Completer
	Limiter   *RateLimiter
	Validator *Validator
	Messages  Messages
	Recorder  Recorder

	// NewID generates per-message correlation IDs. Defaults to uuid.
	NewID func() string
}

// Handle processes a single inbound message end to end. It never returns
// an error: every failure path ends in a logged outcome and, where the
// message warranted one, a reply.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) {
	start := time.Now()
	messageID := d.newID()

	class := d.Validator.Classify(in.Text)

	switch class {
	case ClassEmpty:
		logDebug("Dropping message without text",
			zap.String("message_id", messageID),
			zap.Int64("user_id", in.UserID))
		d.finish(ctx, messageID, in, OutcomeDropped, "", nil, start)

	case ClassCommand:
		d.handleCommand(ctx, messageID, in)
		d.finish(ctx, messageID, in, OutcomeCommand, "", nil, start)

	case ClassTooLong:
		logInfo("Rejecting oversized message",
			zap.String("message_id", messageID),
			zap.Int64("user_id", in.UserID))
		d.replyPlain(ctx, messageID, in.ChatID, d.Messages.TooLong)
		d.finish(ctx, messageID, in, OutcomeTooLong, "", nil, start)

	case ClassChat:
		d.handleChat(ctx, messageID, in, start)
	}
}

// handleCommand answers /start and /help. Unknown commands get no reply.
func (d *Dispatcher) handleCommand(ctx context.Context, messageID string, in Inbound) {
	name := Command(in.Text)
	logInfo("Handling command",
		zap.String("message_id", messageID),
		zap.Int64("user_id", in.UserID),
		zap.String("command", name))

	switch name {
	case "start":
		d.reply(ctx, messageID, in.ChatID, d.Messages.Welcome)
	case "help":
		d.reply(ctx, messageID, in.ChatID, d.Messages.Help)
	}
}

func (d *Dispatcher) handleChat(ctx context.Context, messageID string, in Inbound, start time.Time) {
	if d.Limiter != nil && !d.Limiter.Allow(in.UserID) {
		logWarn("Rate limit exceeded",
			zap.String("message_id", messageID),
			zap.Int64("user_id", in.UserID))
		metrics.RecordRateLimited()
		d.replyPlain(ctx, messageID, in.ChatID, d.Messages.RateLimited)
		d.finish(ctx, messageID, in, OutcomeRateLimited, "", nil, start)
		return
	}

	// best effort, the user just sees no typing bubble if it fails
	if err := d.Transport.SendTyping(ctx, in.ChatID); err != nil {
		logWarn("Failed to send typing indicator",
			zap.String("message_id", messageID),
			zap.Int64("chat_id", in.ChatID),
			zap.Error(err))
	}

	reply, err := d.Completer.Complete(ctx, in.Text)
	if err != nil {
		kind := ailink.ClassifyError(err)
		logError("Completion failed",
			zap.String("message_id", messageID),
			zap.Int64("user_id", in.UserID),
			zap.String("error_kind", string(kind)),
			zap.Error(err))
		metrics.RecordProviderError(string(kind))
		d.replyPlain(ctx, messageID, in.ChatID, d.Messages.ForKind(kind))
		d.finish(ctx, messageID, in, OutcomeFailed, string(kind), nil, start)
		return
	}

	if reply.Text == "" {
		kind := ailink.KindEmptyResponse
		logError("Provider returned empty response",
			zap.String("message_id", messageID),
			zap.Int64("user_id", in.UserID))
		metrics.RecordProviderError(string(kind))
		d.replyPlain(ctx, messageID, in.ChatID, d.Messages.ForKind(kind))
		d.finish(ctx, messageID, in, OutcomeFailed, string(kind), reply, start)
		return
	}

	d.reply(ctx, messageID, in.ChatID, reply.Text)
	logInfo("Completed message",
		zap.String("message_id", messageID),
		zap.Int64("user_id", in.UserID),
		zap.Int("total_tokens", reply.Usage.TotalTokens))
	d.finish(ctx, messageID, in, OutcomeCompleted, "", reply, start)
}

// reply sends the single formatted reply for this message. Delivery
// failures are logged; there is no retry.
func (d *Dispatcher) reply(ctx context.Context, messageID string, chatID int64, text string) {
	d.deliver(messageID, chatID, d.Transport.SendMessage(ctx, chatID, text))
}

// replyPlain sends an unformatted reply, used for error texts.
func (d *Dispatcher) replyPlain(ctx context.Context, messageID string, chatID int64, text string) {
	d.deliver(messageID, chatID, d.Transport.SendPlainMessage(ctx, chatID, text))
}

func (d *Dispatcher) deliver(messageID string, chatID int64, err error) {
	metrics.RecordDelivery(err == nil)
	if err != nil {
		logError("Failed to deliver reply",
			zap.String("message_id", messageID),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

func (d *Dispatcher) finish(ctx context.Context, messageID string, in Inbound, outcome Outcome, errorKind string, reply *ailink.Reply, start time.Time) {
	metrics.RecordMessage(string(outcome))

	if d.Recorder == nil {
		return
	}

	rec := UsageRecord{
		MessageID:      messageID,
		UserID:         in.UserID,
		Outcome:        outcome,
		ErrorKind:      errorKind,
		DurationMillis: time.Since(start).Milliseconds(),
	}
	if reply != nil {
		rec.PromptTokens = reply.Usage.PromptTokens
		rec.CompletionTokens = reply.Usage.CompletionTokens
		rec.TotalTokens = reply.Usage.TotalTokens
	}

	if err := d.Recorder.RecordOutcome(ctx, rec); err != nil {
		logWarn("Failed to record usage",
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

func (d *Dispatcher) newID() string {
	if d != nil && d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func logDebug(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug(msg, fields...)
	}
}

func logInfo(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info(msg, fields...)
	}
}

func logWarn(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Warn(msg, fields...)
	}
}

func logError(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Error(msg, fields...)
	}
}
