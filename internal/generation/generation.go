// Package generation builds grounding prompts and delegates text generation
// to an external language-model provider.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
)

// Provider is the external text-generation collaborator. Implementations
// must honor context cancellation; callers bound every Generate call with
// a timeout.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request carries one generation call.
type Request struct {
	Prompt    string
	Model     string
	MaxTokens int
}

// Error wraps a provider failure with a transient classification.
// Transient errors (timeouts, rate limits, 5xx) are eligible for a single
// caller-level retry.
type Error struct {
	Message   string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a generation error.
func NewError(message string, transient bool, err error) *Error {
	return &Error{Message: message, Transient: transient, Err: err}
}

// IsTransient reports whether err is a transient generation error.
func IsTransient(err error) bool {
	var genErr *Error
	return errors.As(err, &genErr) && genErr.Transient
}

// PromptBuilder constructs grounding prompts from retrieved chunks.
type PromptBuilder struct{}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build constructs a single prompt that lists each chunk prefixed by its
// provenance and instructs the model to answer only from that context, cite
// sources in bracketed form, and state insufficiency explicitly.
func (b *PromptBuilder) Build(question string, chunks []chunker.Chunk) string {
	var sb strings.Builder

	sb.WriteString("You are an AI assistant with access to specialized documentation and code references.\n\n")
	sb.WriteString("Your role is to provide accurate and concise answers based on the retrieved context below.\n\n")
	sb.WriteString("CONTEXT:\n")
	sb.WriteString(b.formatContext(chunks))
	sb.WriteString("\n\nQUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("1. Answer the question using ONLY the information provided in the context above\n")
	sb.WriteString("2. If the context doesn't contain enough information, clearly state that\n")
	sb.WriteString("3. Include proper citations at the end of your answer\n")
	sb.WriteString("4. Use the format: [Source: Title (source)]\n")
	sb.WriteString("5. Be concise but comprehensive\n")
	sb.WriteString("6. Focus on practical, actionable information\n\n")
	sb.WriteString("ANSWER:")

	return sb.String()
}

// formatContext joins chunks with their provenance headers.
func (b *PromptBuilder) formatContext(chunks []chunker.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("Source: %s (%s)\n%s", c.Metadata.Title, c.Metadata.Source, c.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
