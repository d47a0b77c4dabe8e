package ai

import (
	"context"
	"io"
	"strings"
	"time"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*ScriptGenerator)(nil)

// ScriptGenerator implements adapter.Generator for local/dev runs without a
// provider key. It echoes the user message back word by word with a small
// delay per fragment so streaming behavior is observable.
type ScriptGenerator struct {
	delay time.Duration
}

func NewScriptGenerator(delay time.Duration) *ScriptGenerator {
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	return &ScriptGenerator{delay: delay}
}

func (g *ScriptGenerator) ListModels(ctx context.Context) ([]string, error) {
	return []string{"script-dev"}, nil
}

func (g *ScriptGenerator) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        "script-dev",
		Description: "Scripted echo generator for development",
		Supports:    []string{"text", "stream"},
	}, nil
}

// CountTokens approximates one token per whitespace-separated word.
func (g *ScriptGenerator) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	total := 0
	for _, t := range turns {
		total += len(strings.Fields(t.Content))
	}
	return total, nil
}

func (g *ScriptGenerator) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	words := strings.Fields("You said: " + userText)
	frags := make([]string, 0, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		frags = append(frags, w)
	}
	return &scriptStream{ctx: ctx, frags: frags, delay: g.delay}, nil
}

type scriptStream struct {
	ctx   context.Context
	frags []string
	delay time.Duration
	pos   int
}

func (s *scriptStream) Recv() (string, error) {
	if s.pos >= len(s.frags) {
		return "", io.EOF
	}
	select {
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	case <-time.After(s.delay):
	}
	frag := s.frags[s.pos]
	s.pos++
	return frag, nil
}

func (s *scriptStream) Close() error {
	s.pos = len(s.frags)
	return nil
}
