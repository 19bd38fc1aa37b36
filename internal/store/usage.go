package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chatrelay/chatrelay/internal/relay"
)

// Usage rows carry outcome labels and token counts only. Message text is
// never written to the store.
const usageSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	message_id        TEXT PRIMARY KEY,
	user_id           INTEGER NOT NULL,
	outcome           TEXT NOT NULL,
	error_kind        TEXT NOT NULL DEFAULT '',
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
CREATE INDEX IF NOT EXISTS idx_usage_outcome ON usage_records(outcome);
`

// Migrate creates the usage tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store not open")
	}
	if _, err := s.DB.ExecContext(ctx, usageSchema); err != nil {
		return fmt.Errorf("migrate usage schema: %w", err)
	}
	return nil
}

// RecordOutcome inserts one audit row per handled message.
func (s *Store) RecordOutcome(ctx context.Context, rec relay.UsageRecord) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store not open")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO usage_records
			(message_id, user_id, outcome, error_kind, prompt_tokens, completion_tokens, total_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MessageID, rec.UserID, string(rec.Outcome), rec.ErrorKind,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.DurationMillis,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// OutcomeCount is an aggregate over one outcome label.
type OutcomeCount struct {
	Outcome     string
	Count       int64
	TotalTokens int64
}

// OutcomeSummary aggregates records per outcome.
func (s *Store) OutcomeSummary(ctx context.Context) ([]OutcomeCount, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store not open")
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT outcome, COUNT(*), COALESCE(SUM(total_tokens), 0)
		FROM usage_records
		GROUP BY outcome
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query outcome summary: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var result []OutcomeCount
	for rows.Next() {
		var oc OutcomeCount
		if err := rows.Scan(&oc.Outcome, &oc.Count, &oc.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan outcome summary: %w", err)
		}
		result = append(result, oc)
	}
	return result, rows.Err()
}

// UserUsage is an aggregate over one user.
type UserUsage struct {
	UserID      int64
	Messages    int64
	TotalTokens int64
	LastSeen    string
}

// TopUsers returns the heaviest users by message count.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]UserUsage, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store not open")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT user_id, COUNT(*), COALESCE(SUM(total_tokens), 0), MAX(created_at)
		FROM usage_records
		GROUP BY user_id
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var result []UserUsage
	for rows.Next() {
		var uu UserUsage
		if err := rows.Scan(&uu.UserID, &uu.Messages, &uu.TotalTokens, &uu.LastSeen); err != nil {
			return nil, fmt.Errorf("scan top users: %w", err)
		}
		result = append(result, uu)
	}
	return result, rows.Err()
}

// Totals summarizes the whole table.
type Totals struct {
	Messages    int64
	Users       int64
	TotalTokens int64
	ErrorCount  int64
}

// UsageTotals returns overall counters for the stats command.
func (s *Store) UsageTotals(ctx context.Context) (*Totals, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("store not open")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT user_id),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM usage_records`)

	var t Totals
	if err := row.Scan(&t.Messages, &t.Users, &t.TotalTokens, &t.ErrorCount); err != nil {
		if err == sql.ErrNoRows {
			return &Totals{}, nil
		}
		return nil, fmt.Errorf("query usage totals: %w", err)
	}
	return &t, nil
}
