package adapter

import (
	"context"

	"ai-chat-backend/internal/domain/model"
)

// ModelInfo describes a model.
type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// Usage for a single generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationStream is a finite, non-restartable pull stream of reply
// fragments. Recv returns one non-empty fragment, or io.EOF at normal end,
// or the producer's failure. Close releases producer resources and must be
// safe to call on every exit path, including after an error or a cancelled
// context.
type GenerationStream interface {
	Recv() (string, error)
	Close() error
}

// Generator is the port for LLM invocation: prior turns plus the new user
// text in, a lazy fragment stream out. Implementations stop producing once
// ctx is cancelled.
type Generator interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(ctx context.Context, model string) (ModelInfo, error)

	// CountTokens returns prompt tokens for the given turns
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error)

	Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (GenerationStream, error)
}
