package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatCompleter sends a single user prompt to a chat model and returns the
// text of the first reply.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)

	// Model reports the model identifier recorded alongside generated output.
	Model() string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChatCompleter returns the chat completion service.
	ChatCompleter() ChatCompleter

	// Close releases resources held by the provider and its services.
	Close() error
}
