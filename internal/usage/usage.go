// Package usage estimates token consumption and reports it to the usage
// ledger as a best-effort side channel.
package usage

import (
	"context"

	"go.uber.org/zap"
)

// RecordTypeTokens is the ledger record type for token consumption.
const RecordTypeTokens = "tokens"

// Record is a single usage ledger entry.
type Record struct {
	// Type classifies the usage (currently always RecordTypeTokens).
	Type string `json:"type"`

	// Amount is the token count.
	Amount int `json:"amount"`

	// UserID attributes the usage; empty for anonymous queries.
	UserID string `json:"user_id,omitempty"`
}

// Ledger is the external usage accounting collaborator.
type Ledger interface {
	Report(ctx context.Context, rec Record) error
}

// EstimateTokens approximates token count as characters divided by four,
// rounded up.
func EstimateTokens(prompt, response string) int {
	chars := len(prompt) + len(response)
	return (chars + 3) / 4
}

// Reporter reports usage to a ledger. Reporting failures are logged and
// swallowed; they must never fail the query that produced the usage.
type Reporter struct {
	ledger Ledger
	logger *zap.Logger
}

// NewReporter creates a usage reporter. A nil ledger disables reporting.
func NewReporter(ledger Ledger, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		ledger: ledger,
		logger: logger,
	}
}

// Report sends a token usage record to the ledger, best effort.
func (r *Reporter) Report(ctx context.Context, userID string, tokens int) {
	if r.ledger == nil {
		return
	}

	rec := Record{
		Type:   RecordTypeTokens,
		Amount: tokens,
		UserID: userID,
	}

	if err := r.ledger.Report(ctx, rec); err != nil {
		r.logger.Warn("failed to report usage",
			zap.Error(err),
			zap.Int("tokens", tokens),
			zap.String("user_id", userID),
		)
		return
	}

	r.logger.Debug("reported usage",
		zap.Int("tokens", tokens),
		zap.String("user_id", userID),
	)
}
