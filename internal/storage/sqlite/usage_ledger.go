package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/usage"
)

// usageLedger implements usage.Ledger.
type usageLedger struct {
	store *Store
}

var _ usage.Ledger = (*usageLedger)(nil)

// Report appends one usage record.
func (l *usageLedger) Report(ctx context.Context, rec usage.Record) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO usage_records (type, amount, user_id, recorded_at)
		VALUES (?, ?, ?, ?)
	`, string(rec.Type), rec.Amount, rec.UserID, time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// TotalTokens sums recorded token usage since the given time. A zero time
// sums everything.
func (s *Store) TotalTokens(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM usage_records
		WHERE type = ? AND recorded_at >= ?
	`, string(usage.RecordTypeTokens), since.UTC().Format(time.RFC3339Nano)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing usage: %w", err)
	}
	return total, nil
}
