// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"strings"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*MultiGenerator)(nil)

// MultiGenerator routes by model name to a provider generator. It does not
// inject any default model; each provider is responsible for its own.
type MultiGenerator struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.Generator
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
}

func NewMultiGenerator(
	defaultProvider string,
	byProvider map[string]adapter.Generator,
	modelToProvider map[string]string,
) *MultiGenerator {
	return &MultiGenerator{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiGenerator) resolveProvider(modelName string) string {
	if p := m.modelToProvider[modelName]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiGenerator) pick(modelName string) adapter.Generator {
	prov := m.resolveProvider(modelName)
	if g := m.byProvider[prov]; g != nil {
		return g
	}
	// last resort: first available
	for _, g := range m.byProvider {
		if g != nil {
			return g
		}
	}
	return nil
}

func (m *MultiGenerator) ListModels(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(m.modelToProvider)+4)

	for modelName := range m.modelToProvider {
		if _, ok := seen[modelName]; !ok {
			seen[modelName] = struct{}{}
			out = append(out, modelName)
		}
	}

	for _, g := range m.byProvider {
		list, _ := g.ListModels(ctx)
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out, nil
}

func (m *MultiGenerator) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	g := m.pick(modelName)
	if g == nil {
		return adapter.ModelInfo{Name: modelName}, nil
	}
	return g.GetModelInfo(ctx, modelName)
}

func (m *MultiGenerator) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	g := m.pick(modelName)
	if g == nil {
		return 0, nil
	}
	return g.CountTokens(ctx, modelName, turns)
}

func (m *MultiGenerator) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	g := m.pick(modelName)
	if g == nil {
		return nil, errNoProvider
	}
	return g.Stream(ctx, modelName, history, userText)
}
