// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ChatCompleter,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedTexts(ctx, []string{"test"})
//
//	// Custom behavior injection
//	chat := mock.NewMockChatCompleter()
//	chat.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
//	    return `{"one_liner_en": "fixed"}`, nil
//	}
//
//	// Check call counts
//	count := chat.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockChatCompleter: Answers every prompt with DefaultReply
//   - MockProvider: Aggregates mock embedder and chat completer
package mock
