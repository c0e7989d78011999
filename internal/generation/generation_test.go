package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
)

func TestPromptBuilder_Build(t *testing.T) {
	b := NewPromptBuilder()
	chunks := []chunker.Chunk{
		{
			Content:  "Spawn rates depend on substrate moisture.",
			Metadata: chunker.Metadata{Title: "Cultivation Guide", Source: "docs.example.com"},
		},
		{
			Content:  "Harvest when caps flatten.",
			Metadata: chunker.Metadata{Title: "Harvest Guide", Source: "docs.example.com"},
		},
	}

	prompt := b.Build("When should I harvest?", chunks)

	assert.Contains(t, prompt, "Source: Cultivation Guide (docs.example.com)")
	assert.Contains(t, prompt, "Source: Harvest Guide (docs.example.com)")
	assert.Contains(t, prompt, "Spawn rates depend on substrate moisture.")
	assert.Contains(t, prompt, "QUESTION: When should I harvest?")
	assert.Contains(t, prompt, "ONLY the information provided in the context")
	assert.Contains(t, prompt, "[Source: Title (source)]")
	assert.Contains(t, prompt, "doesn't contain enough information, clearly state that")

	// Chunks are separated so provenance stays attached to its content.
	assert.Equal(t, 1, strings.Count(prompt, "\n\n---\n\n"))
}

func TestError_Transient(t *testing.T) {
	transient := NewError("rate limited", true, nil)
	permanent := NewError("bad request", false, nil)

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(permanent))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.Contains(t, transient.Error(), "generation failed")
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewError("request failed", true, inner)
	assert.ErrorIs(t, err, inner)
}

func TestNewHTTPProvider_Validation(t *testing.T) {
	_, err := NewHTTPProvider("", "http://localhost")
	require.Error(t, err)

	_, err = NewHTTPProvider("key", "")
	require.Error(t, err)
}

func TestHTTPProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"grounded answer"}}]}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("test-key", srv.URL)
	require.NoError(t, err)

	answer, err := p.Generate(context.Background(), Request{Prompt: "q", Model: "gpt-4", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)
}

func TestHTTPProvider_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded","message":"try again"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("test-key", srv.URL)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"invalid_request","message":"bad model"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("test-key", srv.URL)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "bad model")
}

func TestHTTPProvider_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("test-key", srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Generate(ctx, Request{Prompt: "q"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestHTTPProvider_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider("test-key", srv.URL)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
