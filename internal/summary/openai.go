package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/pkg/models"
)

// ErrNoAPIKey is returned when the openai summarizer is selected
// without a configured key.
var ErrNoAPIKey = errors.New("summary: api key not configured")

const systemPrompt = "You summarize cross-source investment consensus facts in one short paragraph. " +
	"Mention agreement, splits, notable shifts, and new directions. " +
	"State only what the facts support; no advice."

// HTTPSummarizer calls an OpenAI-compatible chat completions endpoint.
// The structured facts go into the prompt verbatim as JSON; the reply
// is bounded before storage.
type HTTPSummarizer struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// HTTPOption configures the HTTP summarizer.
type HTTPOption func(*HTTPSummarizer)

// WithModel sets the model name.
func WithModel(model string) HTTPOption {
	return func(s *HTTPSummarizer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) HTTPOption {
	return func(s *HTTPSummarizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSummarizer) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSummarizer) { s.client = client }
}

// NewHTTPSummarizer creates a summarizer for an OpenAI-compatible
// endpoint (the full chat completions URL).
func NewHTTPSummarizer(endpoint, apiKey string, opts ...HTTPOption) (*HTTPSummarizer, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := &HTTPSummarizer{
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     "gpt-4o-mini",
		maxTokens: 512,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPSummarizer) Name() string { return "openai" }

// String identifies the summarizer without exposing the key.
func (s *HTTPSummarizer) String() string {
	return fmt.Sprintf("openai(%s, model %s, key %s)", s.endpoint, s.model, config.MaskKey(s.apiKey))
}

// Summarize sends the facts to the endpoint and returns the bounded
// reply.
func (s *HTTPSummarizer) Summarize(ctx context.Context, date string, facts models.SummaryFacts) (string, error) {
	payload, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("summary: marshal facts: %w", err)
	}

	body := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Date %s. Facts:\n%s", date, payload)},
		},
		Temperature: 0,
		MaxTokens:   s.maxTokens,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("summary: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary: call %s: %w", s.endpoint, err)
	}
	defer resp.Body.Close()

	if err := s.checkError(resp); err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("summary: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("summary: empty response from %s", s.endpoint)
	}
	return Bound(result.Choices[0].Message.Content), nil
}

func (s *HTTPSummarizer) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Error.Message)
		}
		return fmt.Errorf("summary: API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("summary: HTTP %d: %s", resp.StatusCode, string(body))
}

// ── Wire types ──

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
