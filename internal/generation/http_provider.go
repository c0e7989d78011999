package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPProvider implements Provider against a chat-completions style
// HTTP JSON API.
type HTTPProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// completionRequest is the provider wire request.
type completionRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	Messages  []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionResponse is the provider wire response.
type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewHTTPProvider creates a provider client. The HTTP client carries no
// timeout of its own; callers bound each call through the context.
func NewHTTPProvider(apiKey, baseURL string) (*HTTPProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	return &HTTPProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// Generate sends one completion request and returns the generated text.
func (p *HTTPProvider) Generate(ctx context.Context, req Request) (string, error) {
	payload := completionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []completionMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", NewError("failed to marshal request", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", NewError("failed to create request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return "", NewError("request failed", true, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError("failed to read response", true, err)
	}

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500

		var errResp apiError
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return "", NewError(fmt.Sprintf("API error (%d): %s", resp.StatusCode, errResp.Error.Message), transient, nil)
		}
		return "", NewError(fmt.Sprintf("API error (%d)", resp.StatusCode), transient, nil)
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", NewError("failed to parse response", false, err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", NewError("empty response from API", false, nil)
	}

	return completion.Choices[0].Message.Content, nil
}
