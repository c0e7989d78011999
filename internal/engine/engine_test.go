package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/usage"
)

type fakeProvider struct {
	mu         sync.Mutex
	calls      int
	lastPrompt string
	failures   int
	failErr    error
	response   string
}

func (f *fakeProvider) Generate(_ context.Context, req generation.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = req.Prompt
	if f.failures > 0 {
		f.failures--
		return "", f.failErr
	}
	return f.response, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLedger struct {
	mu      sync.Mutex
	records []usage.Record
	err     error
}

func (f *fakeLedger) Report(_ context.Context, rec usage.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		SimilarityTopK:          5,
		VectorDistanceThreshold: 0.3,
		MaxTokens:               4000,
		Model:                   "gpt-4",
	}
}

func newTestEngine(t *testing.T, provider generation.Provider, ledger usage.Ledger) *Engine {
	t.Helper()

	docs := document.NewStore()
	index, err := retrieval.NewIndex(retrieval.NewLexicalScorer())
	require.NoError(t, err)
	chk, err := chunker.New(500, 50)
	require.NoError(t, err)

	e, err := NewEngine(
		testRetrievalConfig(),
		config.GenerationConfig{Timeout: time.Second},
		docs,
		index,
		chk,
		provider,
		usage.NewReporter(ledger, zap.NewNop()),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return e
}

func testDocument(id string) document.Document {
	words := make([]string, 2000)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i%400)
	}
	return document.Document{
		ID:      id,
		Title:   "Cultivation Guide",
		Content: "mushroom cultivation substrate moisture spawn " + strings.Join(words, " "),
		Metadata: document.Metadata{
			Source:      "docs.example.com",
			Type:        document.TypeDocumentation,
			LastUpdated: time.Now(),
			URL:         "https://docs.example.com/guide",
		},
	}
}

func TestNewEngine_Validation(t *testing.T) {
	docs := document.NewStore()
	index, err := retrieval.NewIndex(retrieval.NewLexicalScorer())
	require.NoError(t, err)
	chk, err := chunker.New(500, 50)
	require.NoError(t, err)
	provider := &fakeProvider{response: "answer"}

	tests := []struct {
		name string
		fn   func() (*Engine, error)
	}{
		{"nil store", func() (*Engine, error) {
			return NewEngine(testRetrievalConfig(), config.GenerationConfig{}, nil, index, chk, provider, nil, nil)
		}},
		{"nil index", func() (*Engine, error) {
			return NewEngine(testRetrievalConfig(), config.GenerationConfig{}, docs, nil, chk, provider, nil, nil)
		}},
		{"nil chunker", func() (*Engine, error) {
			return NewEngine(testRetrievalConfig(), config.GenerationConfig{}, docs, index, nil, provider, nil, nil)
		}},
		{"nil provider", func() (*Engine, error) {
			return NewEngine(testRetrievalConfig(), config.GenerationConfig{}, docs, index, chk, nil, nil, nil)
		}},
		{"zero top k", func() (*Engine, error) {
			return NewEngine(config.RetrievalConfig{}, config.GenerationConfig{}, docs, index, chk, provider, nil, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.Error(t, err)
		})
	}
}

func TestEngine_Query_EmptyQuestion(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{response: "answer"}, nil)

	_, err := e.Query(context.Background(), "   ", "user-1")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestEngine_Query_InsufficientContext(t *testing.T) {
	provider := &fakeProvider{response: "should not be called"}
	e := newTestEngine(t, provider, nil)

	resp, err := e.Query(context.Background(), "anything at all", "user-1")
	require.NoError(t, err)

	assert.Equal(t, InsufficientContextAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Empty(t, resp.Chunks)
	assert.Zero(t, resp.Metadata.TokensUsed)
	assert.Zero(t, provider.callCount(), "provider must not run without grounding")
}

func TestEngine_Query_EndToEnd(t *testing.T) {
	provider := &fakeProvider{response: "Keep substrate moist. [Source: Cultivation Guide (docs.example.com)]"}
	ledger := &fakeLedger{}
	e := newTestEngine(t, provider, ledger)

	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))

	resp, err := e.Query(context.Background(), "mushroom cultivation substrate moisture spawn", "user-1")
	require.NoError(t, err)

	assert.Equal(t, provider.response, resp.Answer)
	assert.NotEmpty(t, resp.Chunks)
	assert.LessOrEqual(t, len(resp.Chunks), 5)
	for _, c := range resp.Chunks {
		assert.Equal(t, "doc1", c.DocumentID)
		assert.GreaterOrEqual(t, c.Metadata.Similarity, 0.3)
	}

	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "Cultivation Guide", resp.Citations[0].Title)
	assert.Equal(t, "docs.example.com", resp.Citations[0].Source)
	assert.Equal(t, "https://docs.example.com/guide", resp.Citations[0].URL)

	assert.Positive(t, resp.Metadata.TokensUsed)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, usage.RecordTypeTokens, ledger.records[0].Type)
	assert.Equal(t, resp.Metadata.TokensUsed, ledger.records[0].Amount)
	assert.Equal(t, "user-1", ledger.records[0].UserID)

	assert.Contains(t, provider.lastPrompt, "Source: Cultivation Guide (docs.example.com)")
	assert.Contains(t, provider.lastPrompt, "QUESTION: mushroom cultivation substrate moisture spawn")
}

func TestEngine_Query_RetriesTransientOnce(t *testing.T) {
	provider := &fakeProvider{
		response: "recovered answer",
		failures: 1,
		failErr:  generation.NewError("rate limited", true, nil),
	}
	e := newTestEngine(t, provider, nil)
	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))

	resp, err := e.Query(context.Background(), "mushroom cultivation substrate", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", resp.Answer)
	assert.Equal(t, 2, provider.callCount())
}

func TestEngine_Query_TransientFailsAfterRetry(t *testing.T) {
	provider := &fakeProvider{
		failures: 2,
		failErr:  generation.NewError("still overloaded", true, nil),
	}
	e := newTestEngine(t, provider, nil)
	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))

	_, err := e.Query(context.Background(), "mushroom cultivation substrate", "user-1")
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
	assert.Equal(t, 2, provider.callCount())
}

func TestEngine_Query_PermanentErrorNoRetry(t *testing.T) {
	provider := &fakeProvider{
		failures: 1,
		failErr:  generation.NewError("invalid model", false, nil),
	}
	e := newTestEngine(t, provider, nil)
	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))

	_, err := e.Query(context.Background(), "mushroom cultivation substrate", "user-1")
	require.Error(t, err)
	assert.False(t, generation.IsTransient(err))
	assert.Equal(t, 1, provider.callCount())
}

func TestEngine_Query_UsageFailureDoesNotFailQuery(t *testing.T) {
	provider := &fakeProvider{response: "answer"}
	ledger := &fakeLedger{err: errors.New("ledger down")}
	e := newTestEngine(t, provider, ledger)
	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))

	resp, err := e.Query(context.Background(), "mushroom cultivation substrate", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Answer)
}

func TestEngine_RemoveDocument(t *testing.T) {
	provider := &fakeProvider{response: "answer"}
	e := newTestEngine(t, provider, nil)

	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))
	require.NoError(t, e.RemoveDocument(context.Background(), "doc1"))

	resp, err := e.Query(context.Background(), "mushroom cultivation substrate", "user-1")
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextAnswer, resp.Answer)

	err = e.RemoveDocument(context.Background(), "doc1")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestEngine_AddDocument_Duplicate(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{response: "answer"}, nil)

	require.NoError(t, e.AddDocument(context.Background(), testDocument("doc1")))
	err := e.AddDocument(context.Background(), testDocument("doc1"))
	assert.ErrorIs(t, err, document.ErrExists)
}

func TestEngine_Closed(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{response: "answer"}, nil)
	require.NoError(t, e.Close())

	_, err := e.Query(context.Background(), "question", "user-1")
	assert.Error(t, err)
	assert.Error(t, e.AddDocument(context.Background(), testDocument("doc1")))
}
