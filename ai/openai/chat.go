// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/papermill/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the model answers without any completion.
var ErrNoChoices = errors.New("chat completion returned no choices")

const systemPrompt = "You are a careful research assistant. Reply with a single JSON object and nothing else."

// ChatCompleter implements ai.ChatCompleter using OpenAI-compatible chat APIs.
type ChatCompleter struct {
	client      llms.Model
	model       string
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

func newChatCompleter(config *ai.Config) (*ChatCompleter, error) {
	if err := config.ValidateChat(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.ChatAPIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &ChatCompleter{
		client:      client,
		model:       config.ChatModel,
		temperature: config.Temperature,
		timeout:     config.ChatTimeout,
		logger:      slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatCompleter creates a chat completer using the provided configuration.
func NewChatCompleter(config *ai.Config) (ai.ChatCompleter, error) {
	return newChatCompleter(config)
}

// Model returns the configured chat model identifier.
func (c *ChatCompleter) Model() string {
	return c.model
}

// Complete sends prompt as the user turn and returns the first choice's text.
// The reply is returned untouched; callers decide how to parse it.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(c.temperature), llms.WithJSONMode())
	if err != nil {
		c.logger.Error("failed to generate content", "model", c.model, "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		c.logger.Warn("no choices returned from model", "model", c.model)
		return "", ErrNoChoices
	}

	return response.Choices[0].Content, nil
}
