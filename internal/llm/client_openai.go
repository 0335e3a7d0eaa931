package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qatriage/internal/logging"
)

// OpenAIClient implements Client for OpenAI-compatible chat completions.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// NewOpenAIClient creates a new OpenAI client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &OpenAIClient{
		apiKey:      strings.TrimSpace(config.APIKey),
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
		// The per-call context carries the deadline; the transport timeout is a backstop.
		httpClient: &http.Client{Timeout: config.Timeout + 5*time.Second},
	}
}

// OpenAIMessage represents a message in the conversation.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest represents the chat completions request body.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

// OpenAIResponse represents the chat completions response body.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// GenerateText sends the system and user prompts as a two-message exchange.
func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		logging.APIWarn("[OpenAI] GenerateText: API key not configured")
		return "", &CredentialError{
			Provider: ProviderOpenAI,
			EnvVar:   "OPENAI_API_KEY",
			Msg:      "no API key configured for the OpenAI backend",
		}
	}

	ctx, cancel := withCallTimeout(ctx, c.timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryAPI, "[OpenAI] GenerateText")
	logging.APIDebug("[OpenAI] GenerateText: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	reqBody := OpenAIRequest{
		Model: c.model,
		Messages: []OpenAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		logging.APIError("[OpenAI] GenerateText: request failed after %v: %v", timer.Stop(), err)
		return "", &ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		logging.APIError("[OpenAI] GenerateText: credential rejected (status %d)", resp.StatusCode)
		return "", &CredentialError{
			Provider: ProviderOpenAI,
			EnvVar:   "OPENAI_API_KEY",
			Msg:      fmt.Sprintf("API key rejected with status %d: %s", resp.StatusCode, truncate(string(body), 300)),
		}
	}

	if resp.StatusCode != http.StatusOK {
		logging.APIError("[OpenAI] GenerateText: status %d", resp.StatusCode)
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(body), 500))}
	}

	var openaiResp OpenAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if openaiResp.Error != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("API error: %s", openaiResp.Error.Message)}
	}

	if len(openaiResp.Choices) == 0 || openaiResp.Choices[0].Message.Content == nil {
		logging.APIWarn("[OpenAI] GenerateText: reply carried no content")
		return "", nil
	}

	response := *openaiResp.Choices[0].Message.Content
	logging.API("[OpenAI] GenerateText: completed in %v response_len=%d tokens=%d", timer.Stop(), len(response), openaiResp.Usage.TotalTokens)
	return response, nil
}

// SetModel changes the model used for completions.
func (c *OpenAIClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
