package ai

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/pkoukk/tiktoken-go"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Generator = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.Generator over the Chat Completions
// streaming API.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
	maxOut       int
}

func NewOpenAIAdapter(apiKey, baseURL, defaultModel string, maxOut int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
		maxOut:       maxOut,
	}, nil
}

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{o.defaultModel}, nil
}

func (o *OpenAIAdapter) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	if modelName == "" {
		modelName = o.defaultModel
	}
	return adapter.ModelInfo{
		Name:        modelName,
		Description: "OpenAI Chat Completions model",
		MaxTokens:   o.maxOut,
		Supports:    []string{"text", "stream"},
	}, nil
}

// CountTokens uses tiktoken locally; four extra tokens per turn approximate
// the chat framing overhead.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	if modelName == "" {
		modelName = o.defaultModel
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for _, t := range turns {
		total += len(enc.Encode(t.Content, nil, nil)) + 4
	}
	return total, nil
}

func (o *OpenAIAdapter) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	if modelName == "" {
		modelName = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case model.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(userText))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelName),
		Messages: msgs,
	}
	if o.maxOut > 0 {
		params.MaxTokens = openai.Int(int64(o.maxOut))
	}

	s := o.client.Chat.Completions.NewStreaming(ctx, params)
	return &openaiStream{s: s, model: modelName, started: time.Now()}, nil
}

type openaiStream struct {
	s       *ssestream.Stream[openai.ChatCompletionChunk]
	model   string
	started time.Time
	tokens  int
	done    bool
}

func (st *openaiStream) Recv() (string, error) {
	for st.s.Next() {
		chunk := st.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			st.tokens++
			return delta, nil
		}
	}
	if err := st.s.Err(); err != nil {
		st.finish(false)
		return "", err
	}
	st.finish(true)
	return "", io.EOF
}

func (st *openaiStream) Close() error {
	return st.s.Close()
}

func (st *openaiStream) finish(success bool) {
	if st.done {
		return
	}
	st.done = true
	metrics.ObserveGenLatencyMs("openai", st.model, success, float64(time.Since(st.started).Milliseconds()))
	if success {
		metrics.AddGenTokens("openai", st.model, 0, st.tokens)
	} else {
		metrics.IncGenStreamError("openai", st.model)
	}
}
