package ai

import (
	"context"
	"errors"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
)

var errNoProvider = errors.New("no generator provider available")

// Compile-time check
var _ adapter.Generator = (*limitedGenerator)(nil)

// limitedGenerator caps concurrent generations with a semaphore. The slot is
// held for the full life of the stream and released by Close, so callers must
// close streams on every exit path (the session controller defers it).
type limitedGenerator struct {
	inner adapter.Generator
	sem   chan struct{}
}

func NewLimitedGenerator(inner adapter.Generator, maxConcurrent int) adapter.Generator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedGenerator) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	return l.inner.GetModelInfo(ctx, modelName)
}

func (l *limitedGenerator) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	return l.inner.CountTokens(ctx, modelName, turns)
}

func (l *limitedGenerator) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s, err := l.inner.Stream(ctx, modelName, history, userText)
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &limitedStream{GenerationStream: s, release: func() { <-l.sem }}, nil
}

type limitedStream struct {
	adapter.GenerationStream
	release  func()
	released bool
}

func (s *limitedStream) Close() error {
	if !s.released {
		s.released = true
		defer s.release()
	}
	return s.GenerationStream.Close()
}
