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

package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion service API.
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model identifier used to summarize documents.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	ChatModel string

	// EmbeddingAPIKey and ChatAPIKey are sent as bearer tokens. Local servers
	// that ignore authentication still need a placeholder such as "none".
	EmbeddingAPIKey string
	ChatAPIKey      string

	// EmbeddingTimeout bounds a single embedding request.
	EmbeddingTimeout time.Duration

	// ChatTimeout bounds a single chat completion request.
	ChatTimeout time.Duration

	// Temperature is the sampling temperature for chat completions.
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithAPIKey sets the same API key for both services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
		c.ChatAPIKey = key
	}
}

func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

func WithChatAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.ChatAPIKey = key
	}
}

// WithTimeouts sets the per-request timeouts.
func WithTimeouts(embedding, chat time.Duration) ConfigOption {
	return func(c *Config) {
		c.EmbeddingTimeout = embedding
		c.ChatTimeout = chat
	}
}

// WithTemperature sets the chat sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// API keys are left empty and must be supplied.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:    defaultHost,
		ChatHost:         defaultHost,
		EmbeddingModel:   "embeddinggemma",
		ChatModel:        "qwen2.5:7b",
		EmbeddingTimeout: 60 * time.Second,
		ChatTimeout:      120 * time.Second,
		Temperature:      0.3,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithAPIKey("none"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// ValidateEmbedding checks the settings needed by the embedding service.
// It normalizes the configuration first.
func (c *Config) ValidateEmbedding() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.EmbeddingAPIKey == "" {
		return errors.New("ai config: EmbeddingAPIKey is required")
	}
	if c.EmbeddingTimeout < 0 {
		return errors.New("ai config: EmbeddingTimeout must not be negative")
	}
	return nil
}

// ValidateChat checks the settings needed by the chat service.
// It normalizes the configuration first.
func (c *Config) ValidateChat() error {
	c.Normalize()

	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.ChatAPIKey == "" {
		return errors.New("ai config: ChatAPIKey is required")
	}
	if c.ChatTimeout < 0 {
		return errors.New("ai config: ChatTimeout must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}

// Validate checks that both services are fully configured.
func (c *Config) Validate() error {
	if err := c.ValidateEmbedding(); err != nil {
		return err
	}
	return c.ValidateChat()
}
