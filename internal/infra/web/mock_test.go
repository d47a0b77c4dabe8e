package web

import (
	"context"
	"time"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/usecase"
)

// fakeChatUC scripts the use case so handler tests exercise only the
// transport layer.
type fakeChatUC struct {
	frags    []string
	errKind  string
	err      error
	reply    string
	history  []model.Turn
	histErr  error
	lastID   string
	lastText string
}

var _ usecase.ChatUseCase = (*fakeChatUC)(nil)

func (f *fakeChatUC) StreamTurn(ctx context.Context, threadID, message string, sink usecase.FragmentSink) error {
	f.lastID, f.lastText = threadID, message
	if f.err != nil {
		if f.errKind != "" {
			_ = sink.ErrorMarker(f.errKind, f.err.Error())
		}
		return f.err
	}
	for _, frag := range f.frags {
		if err := sink.Fragment(frag); err != nil {
			return context.Canceled
		}
	}
	return sink.Done()
}

func (f *fakeChatUC) SendTurn(ctx context.Context, threadID, message string) (string, error) {
	f.lastID, f.lastText = threadID, message
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChatUC) History(ctx context.Context, threadID string) ([]model.Turn, error) {
	f.lastID = threadID
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history, nil
}

// fakeThreads covers the admin surface.
type fakeThreads struct {
	threads []model.Thread
	deleted []string
}

func (f *fakeThreads) Load(ctx context.Context, threadID string) (model.History, int64, error) {
	return model.NewHistory(nil), 0, nil
}

func (f *fakeThreads) AppendTurns(ctx context.Context, threadID string, expectedVersion int64, turns []model.Turn) error {
	return nil
}

func (f *fakeThreads) ListThreads(ctx context.Context, offset, limit int) ([]model.Thread, error) {
	return f.threads, nil
}

func (f *fakeThreads) FindIdleThreads(ctx context.Context, idleSince time.Time, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeThreads) DeleteThread(ctx context.Context, threadID string) error {
	for _, t := range f.threads {
		if t.ID == threadID {
			f.deleted = append(f.deleted, threadID)
			return nil
		}
	}
	return domain.ErrNotFound
}
