package openai

import (
	"testing"

	"github.com/poiesic/papermill/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"), ai.WithAPIKey("none"))

	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	defer provider.Close()

	assert.NotNil(t, provider.Embedder())
	require.NotNil(t, provider.ChatCompleter())
	assert.Equal(t, "qwen2.5:7b", provider.ChatCompleter().Model())
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
}

func TestNewProviderRequiresKeys(t *testing.T) {
	_, err := NewProvider(ai.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIKey")
}

func TestConstructorsValidateOwnService(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingAPIKey("embed-key"))

	_, err := NewEmbedder(cfg)
	require.NoError(t, err)

	_, err = NewChatCompleter(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatAPIKey")
}
