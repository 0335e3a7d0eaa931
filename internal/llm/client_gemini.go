package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"qatriage/internal/logging"

	"google.golang.org/genai"
)

// GeminiClient implements Client on top of the Google GenAI SDK.
type GeminiClient struct {
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// NewGeminiClient creates a Gemini client. The SDK client is built lazily on
// the first call so a missing key surfaces as a CredentialError there.
func NewGeminiClient(config GeminiConfig) *GeminiClient {
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	return &GeminiClient{
		apiKey:      strings.TrimSpace(config.APIKey),
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
	}
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return c.client, c.clientErr
}

// GenerateText sends the system prompt as the system instruction and the user
// prompt as the single user turn.
func (c *GeminiClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		logging.APIWarn("[Gemini] GenerateText: API key not configured")
		return "", &CredentialError{
			Provider: ProviderGemini,
			EnvVar:   "GEMINI_API_KEY",
			Msg:      "no API key configured for the Gemini backend",
		}
	}

	ctx, cancel := withCallTimeout(ctx, c.timeout)
	defer cancel()

	client, err := c.sdk(ctx)
	if err != nil {
		return "", c.classify(fmt.Errorf("failed to create GenAI client: %w", err))
	}

	timer := logging.StartTimer(logging.CategoryAPI, "[Gemini] GenerateText")
	logging.APIDebug("[Gemini] GenerateText: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	temperature := float32(c.temperature)
	result, err := client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       &temperature,
		},
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		logging.APIError("[Gemini] GenerateText: failed after %v: %v", timer.Stop(), err)
		return "", c.classify(err)
	}

	if result == nil || len(result.Candidates) == 0 {
		logging.APIWarn("[Gemini] GenerateText: reply carried no candidates")
		return "", nil
	}

	response := result.Text()
	logging.API("[Gemini] GenerateText: completed in %v response_len=%d", timer.Stop(), len(response))
	return response, nil
}

// classify maps SDK errors onto the package error taxonomy.
func (c *GeminiClient) classify(err error) error {
	if IsCredentialError(err) || strings.Contains(err.Error(), "UNAUTHENTICATED") || strings.Contains(err.Error(), "PERMISSION_DENIED") {
		return &CredentialError{Provider: ProviderGemini, EnvVar: "GEMINI_API_KEY", Msg: err.Error()}
	}
	return &ProviderError{Provider: ProviderGemini, Err: err}
}

// SetModel changes the model used for completions.
func (c *GeminiClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
