package repository

import (
	"context"
	"time"

	"ai-chat-backend/internal/domain/model"
)

// ThreadRepository is the port for durable thread history.
//
// Load never fails on an unseen thread id: it returns an empty history with
// version 0. AppendTurns is atomic: either every turn in the batch is durably
// appended after the last committed turn, or none is. It must fail with
// domain.ErrConflict when the thread's version no longer matches
// expectedVersion. A successful append bumps the thread's updated_at, which
// the retention worker uses to find idle threads.
type ThreadRepository interface {
	Load(ctx context.Context, threadID string) (model.History, int64, error)
	AppendTurns(ctx context.Context, threadID string, expectedVersion int64, turns []model.Turn) error
	ListThreads(ctx context.Context, offset, limit int) ([]model.Thread, error)
	FindIdleThreads(ctx context.Context, idleSince time.Time, limit int) ([]string, error)
	DeleteThread(ctx context.Context, threadID string) error
}
