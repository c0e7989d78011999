// Package engine orchestrates the RAG query path: retrieval, grounded
// generation, citation extraction, and usage reporting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/citation"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/usage"
)

const instrumentationName = "github.com/fyrsmithlabs/ragd/internal/engine"

// InsufficientContextAnswer is returned when no chunk clears the similarity
// threshold. An explicit statement beats a hallucinated answer.
const InsufficientContextAnswer = "I don't have enough information in the knowledge base to answer that question."

// ErrEmptyQuestion is returned for empty or whitespace-only questions,
// rejected before any retrieval work.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Response is the structured result of a query.
type Response struct {
	Answer    string              `json:"answer"`
	Citations []citation.Citation `json:"citations"`
	Chunks    []chunker.Chunk     `json:"chunks"`
	Metadata  ResponseMetadata    `json:"metadata"`
}

// ResponseMetadata carries per-query accounting.
type ResponseMetadata struct {
	TokensUsed     int           `json:"tokens_used"`
	RetrievalTime  time.Duration `json:"retrieval_time"`
	GenerationTime time.Duration `json:"generation_time"`
}

// Engine wires the document store, chunk index, provider boundary, and
// side channels into the query path. Construct one per corpus and inject
// it; it owns no ambient state.
type Engine struct {
	retrievalCfg config.RetrievalConfig
	genTimeout   time.Duration

	docs      *document.Store
	index     *retrieval.Index
	chunks    *chunker.Chunker
	prompts   *generation.PromptBuilder
	provider  generation.Provider
	citations *citation.Extractor
	usage     *usage.Reporter
	logger    *zap.Logger

	tracer       trace.Tracer
	meter        metric.Meter
	queryCounter metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewEngine creates a query engine.
func NewEngine(
	retrievalCfg config.RetrievalConfig,
	genCfg config.GenerationConfig,
	docs *document.Store,
	index *retrieval.Index,
	chunks *chunker.Chunker,
	provider generation.Provider,
	reporter *usage.Reporter,
	logger *zap.Logger,
) (*Engine, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	if index == nil {
		return nil, errors.New("retrieval index is required")
	}
	if chunks == nil {
		return nil, errors.New("chunker is required")
	}
	if provider == nil {
		return nil, errors.New("generation provider is required")
	}
	if retrievalCfg.SimilarityTopK <= 0 {
		return nil, fmt.Errorf("similarity top k must be positive, got %d", retrievalCfg.SimilarityTopK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = usage.NewReporter(nil, logger)
	}

	e := &Engine{
		retrievalCfg: retrievalCfg,
		genTimeout:   genCfg.Timeout,
		docs:         docs,
		index:        index,
		chunks:       chunks,
		prompts:      generation.NewPromptBuilder(),
		provider:     provider,
		citations:    citation.NewExtractor(),
		usage:        reporter,
		logger:       logger,
		tracer:       otel.Tracer(instrumentationName),
		meter:        otel.Meter(instrumentationName),
	}

	e.initMetrics()

	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.queryCounter, err = e.meter.Int64Counter(
		"ragd.engine.queries_total",
		metric.WithDescription("Total number of RAG queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		e.logger.Warn("failed to create query counter", zap.Error(err))
	}
}

// AddDocument ingests a document: it is stored, chunked, and committed to
// the index in one step so readers never see a partial chunk set.
func (e *Engine) AddDocument(ctx context.Context, doc document.Document) error {
	ctx, span := e.tracer.Start(ctx, "engine.add_document")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", doc.ID))

	if err := e.checkOpen(); err != nil {
		return err
	}

	if err := e.docs.Add(doc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("adding document: %w", err)
	}

	chunks := e.chunks.Chunk(doc)
	e.index.UpsertDocument(doc.ID, chunks)

	e.logger.Info("added document",
		zap.String("id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("chunks", len(chunks)),
	)

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	return nil
}

// RemoveDocument removes a document and all of its chunks.
func (e *Engine) RemoveDocument(ctx context.Context, id string) error {
	ctx, span := e.tracer.Start(ctx, "engine.remove_document")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", id))

	if err := e.checkOpen(); err != nil {
		return err
	}

	if err := e.docs.Remove(id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("removing document: %w", err)
	}
	e.index.RemoveDocument(id)

	e.logger.Info("removed document", zap.String("id", id))
	return nil
}

// Query answers a question grounded in the indexed corpus.
//
// Empty retrieval is not an error: it yields an explicit insufficiency
// answer. Provider failures come back as *generation.Error after a single
// retry for transient classifications; a timeout never produces a partial
// citation set.
func (e *Engine) Query(ctx context.Context, question, userID string) (*Response, error) {
	ctx, span := e.tracer.Start(ctx, "engine.query")
	defer span.End()

	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(question) == "" {
		e.recordQuery(ctx, "validation_error")
		return nil, ErrEmptyQuestion
	}

	retrievalStart := time.Now()
	chunks, err := e.index.Retrieve(ctx, question, e.retrievalCfg.SimilarityTopK, e.retrievalCfg.VectorDistanceThreshold)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	retrievalTime := time.Since(retrievalStart)
	span.SetAttributes(attribute.Int("chunks_retrieved", len(chunks)))

	if len(chunks) == 0 {
		e.logger.Debug("no grounding available", zap.String("question", question))
		e.recordQuery(ctx, "insufficient_context")
		return &Response{
			Answer:    InsufficientContextAnswer,
			Citations: []citation.Citation{},
			Chunks:    []chunker.Chunk{},
			Metadata:  ResponseMetadata{RetrievalTime: retrievalTime},
		}, nil
	}

	prompt := e.prompts.Build(question, chunks)

	generationStart := time.Now()
	answer, err := e.generate(ctx, prompt)
	generationTime := time.Since(generationStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recordQuery(ctx, "generation_error")
		e.logger.Error("generation failed",
			zap.Error(err),
			zap.Bool("transient", generation.IsTransient(err)),
		)
		return nil, err
	}

	tokensUsed := usage.EstimateTokens(prompt, answer)
	e.usage.Report(ctx, userID, tokensUsed)

	e.recordQuery(ctx, "ok")
	e.logger.Info("answered query",
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens_used", tokensUsed),
		zap.Duration("retrieval_time", retrievalTime),
		zap.Duration("generation_time", generationTime),
	)

	return &Response{
		Answer:    answer,
		Citations: e.citations.Extract(chunks),
		Chunks:    chunks,
		Metadata: ResponseMetadata{
			TokensUsed:     tokensUsed,
			RetrievalTime:  retrievalTime,
			GenerationTime: generationTime,
		},
	}, nil
}

// generate calls the provider bounded by the configured timeout, retrying
// once on transient failures.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	req := generation.Request{
		Prompt:    prompt,
		Model:     e.retrievalCfg.Model,
		MaxTokens: e.retrievalCfg.MaxTokens,
	}

	answer, err := e.generateOnce(ctx, req)
	if err != nil && generation.IsTransient(err) {
		e.logger.Warn("transient generation failure, retrying once", zap.Error(err))
		answer, err = e.generateOnce(ctx, req)
	}
	return answer, err
}

func (e *Engine) generateOnce(ctx context.Context, req generation.Request) (string, error) {
	callCtx := ctx
	if e.genTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.genTimeout)
		defer cancel()
	}
	return e.provider.Generate(callCtx, req)
}

func (e *Engine) recordQuery(ctx context.Context, result string) {
	if e.queryCounter != nil {
		e.queryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("result", result),
		))
	}
}

func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return errors.New("engine is closed")
	}
	return nil
}

// Close closes the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
