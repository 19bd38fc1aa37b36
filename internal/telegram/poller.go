package telegram

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/relay"
)

const (
	defaultPollTimeout = 50 * time.Second
	pollRetryDelay     = 3 * time.Second
)

// Handler consumes one decoded inbound message.
type Handler interface {
	Handle(ctx context.Context, in relay.Inbound)
}

// Poller drives the long-poll loop: fetch updates, advance the offset,
// hand each message to the handler on its own goroutine.
//
// Each update is confirmed by advancing the offset past it on the next
// getUpdates call, so a message is delivered to the handler at most once
// per process lifetime.
type Poller struct {
	Client      *Client
	Handler     Handler
	PollTimeout time.Duration

	offset  int64
	healthy atomic.Bool
	wg      sync.WaitGroup
}

// Run polls until the context is cancelled, then waits for in-flight
// handlers to finish. Poll failures are retried after a short delay and
// never terminate the loop.
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()

	timeout := p.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.Client.GetUpdates(ctx, p.offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.healthy.Store(false)
			metrics.RecordPoll(false)
			if !sleep(ctx, pollRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		p.healthy.Store(true)
		metrics.RecordPoll(true)

		for _, update := range updates {
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}

			in, ok := toInbound(update)
			if !ok {
				continue
			}

			p.wg.Add(1)
			go func(in relay.Inbound) {
				defer p.wg.Done()
				p.Handler.Handle(ctx, in)
			}(in)
		}
	}
}

// Healthy reports whether the most recent poll attempt succeeded.
func (p *Poller) Healthy() bool {
	return p != nil && p.healthy.Load()
}

// toInbound extracts the relay-relevant fields from an update. Updates
// without a message or a sender are skipped.
func toInbound(update Update) (relay.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return relay.Inbound{}, false
	}

	in := relay.Inbound{
		UpdateID: update.UpdateID,
		ChatID:   msg.Chat.ID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		Text:     msg.Text,
	}
	return in, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
