// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/infra/metrics"
)

var _ adapter.Generator = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	models := g.client.Models.All(ctx)
	var out []string
	for m := range models {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	m, err := g.client.Models.Get(ctx, modelName, nil)
	if err != nil {
		return adapter.ModelInfo{Name: modelName}, fmt.Errorf("gemini model info: %w", err)
	}
	return adapter.ModelInfo{
		Name:        m.Name,
		Description: m.Description,
		MaxTokens:   int(m.InputTokenLimit),
		Supports:    m.SupportedActions,
	}, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	contents := toGenAIHistory(turns)
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(modelName, g.defaultModel), contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	chat, err := g.client.Chats.Create(
		ctx,
		modelOrDefault(modelName, g.defaultModel),
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(g.maxOut),
		},
		toGenAIHistory(history),
	)
	if err != nil {
		return nil, err
	}

	seq := chat.SendMessageStream(ctx, genai.Part{Text: userText})
	next, stop := iter.Pull2(seq)
	return &geminiStream{
		next:    next,
		stop:    stop,
		model:   modelOrDefault(modelName, g.defaultModel),
		started: time.Now(),
	}, nil
}

type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	model   string
	started time.Time
	usage   adapter.Usage
	done    bool
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			s.finish(true)
			return "", io.EOF
		}
		if err != nil {
			s.finish(false)
			return "", err
		}
		if resp != nil && resp.UsageMetadata != nil {
			s.usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			s.usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if text := firstCandidateText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}

func (s *geminiStream) finish(success bool) {
	if s.done {
		return
	}
	s.done = true
	metrics.ObserveGenLatencyMs("gemini", s.model, success, float64(time.Since(s.started).Milliseconds()))
	if success {
		metrics.AddGenTokens("gemini", s.model, s.usage.PromptTokens, s.usage.CompletionTokens)
	} else {
		metrics.IncGenStreamError("gemini", s.model)
	}
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return ""
	}
	return c.Content.Parts[0].Text
}

func toGenAIHistory(turns []model.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}
	return out
}

func modelOrDefault(modelName, def string) string {
	if strings.TrimSpace(modelName) != "" {
		return modelName
	}
	return def
}
