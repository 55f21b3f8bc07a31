package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 300 * time.Second

// OllamaOptions configures the chat provider.
type OllamaOptions struct {
	URL         string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// ollamaProvider speaks the Ollama /api/chat wire format: non-streaming
// request, single message object back.
type ollamaProvider struct {
	url         string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
}

// NewOllamaProvider builds a provider for the given endpoint.
func NewOllamaProvider(opts OllamaOptions) (LLMProvider, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, fmt.Errorf("model endpoint URL is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &ollamaProvider{
		url:         url,
		model:       model,
		apiKey:      strings.TrimSpace(opts.APIKey),
		temperature: opts.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *ollamaProvider) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOpts    `json:"options"`
}

type ollamaOpts struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

func (p *ollamaProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if p == nil {
		return "", fmt.Errorf("provider not initialized")
	}

	payload := ollamaRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOpts{Temperature: p.temperature},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("model API request failed: status=%d body=%s", resp.StatusCode, truncateBody(body))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("model API error: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
