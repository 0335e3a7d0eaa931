package llm

import (
	"context"
	"testing"

	"qatriage/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientFromConfig_OpenAI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.LLM.Temperature = 0.1

	client, err := NewClientFromConfig(cfg)
	require.NoError(t, err)

	oa, ok := client.(*OpenAIClient)
	require.True(t, ok, "expected *OpenAIClient, got %T", client)
	assert.Equal(t, "gpt-4o-mini", oa.GetModel())
	assert.Equal(t, 0.1, oa.temperature)
	assert.Equal(t, cfg.GetLLMTimeout(), oa.timeout)
}

func TestNewClientFromConfig_Gemini(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "gemini"

	client, err := NewClientFromConfig(cfg)
	require.NoError(t, err)

	gm, ok := client.(*GeminiClient)
	require.True(t, ok, "expected *GeminiClient, got %T", client)
	assert.Equal(t, "gemini-2.5-flash", gm.GetModel(), "default OpenAI model must not leak into the gemini backend")

	// No key configured: the credential condition surfaces per call, before any SDK work.
	_, err = client.GenerateText(context.Background(), "s", "u")
	assert.True(t, IsCredentialError(err))
}

func TestNewClientFromConfig_Unknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "router"

	_, err := NewClientFromConfig(cfg)
	assert.Error(t, err)
}
