package usage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		response string
		want     int
	}{
		{"empty", "", "", 0},
		{"exact multiple", strings.Repeat("a", 100), "", 25},
		{"rounds up", "abcde", "", 2}, // 5 chars -> ceil(5/4) = 2
		{"one char", "a", "", 1},
		{"prompt and response", strings.Repeat("a", 10), strings.Repeat("b", 10), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.prompt, tt.response))
		})
	}
}

type fakeLedger struct {
	records []Record
	err     error
}

func (f *fakeLedger) Report(_ context.Context, rec Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func TestReporter_Report(t *testing.T) {
	ledger := &fakeLedger{}
	r := NewReporter(ledger, zap.NewNop())

	r.Report(context.Background(), "user-1", 42)

	assert.Len(t, ledger.records, 1)
	assert.Equal(t, RecordTypeTokens, ledger.records[0].Type)
	assert.Equal(t, 42, ledger.records[0].Amount)
	assert.Equal(t, "user-1", ledger.records[0].UserID)
}

func TestReporter_SwallowsLedgerErrors(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("ledger unavailable")}
	r := NewReporter(ledger, zap.NewNop())

	// Must not panic or propagate.
	r.Report(context.Background(), "", 10)
	assert.Empty(t, ledger.records)
}

func TestReporter_NilLedger(t *testing.T) {
	r := NewReporter(nil, nil)
	r.Report(context.Background(), "user-1", 10)
}
