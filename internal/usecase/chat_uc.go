// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/domain/ports/repository"
	"ai-chat-backend/internal/infra/logging"
	"ai-chat-backend/internal/infra/metrics"
)

// FragmentSink receives reply fragments in production order. Fragment must
// flush immediately; a returned error means the client is gone and is treated
// as cancellation. ErrorMarker reports a failure kind to the client before the
// stream closes; it is never called for cancellation.
type FragmentSink interface {
	Fragment(delta string) error
	Done() error
	ErrorMarker(kind, detail string) error
}

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	// StreamTurn handles one turn for a thread, relaying fragments to sink as
	// they arrive. The user and assistant turns are committed as one atomic
	// batch after generation ends; on any failure or cancellation nothing is
	// committed and the thread lock is released.
	StreamTurn(ctx context.Context, threadID, message string, sink FragmentSink) error

	// SendTurn is the batch variant: same state machine, accumulated reply.
	SendTurn(ctx context.Context, threadID, message string) (string, error)

	History(ctx context.Context, threadID string) ([]model.Turn, error)
}

// Failure kinds surfaced on the wire.
const (
	KindEmptyMessage     = "empty_message"
	KindStoreUnavailable = "store_unavailable"
	KindConflict         = "conflict"
	KindGeneration       = "generation_failed"
)

type chatUC struct {
	threads   repository.ThreadRepository
	gen       adapter.Generator
	locks     *ThreadLocks
	modelName string
	budget    int // prompt tokens granted to hydrated history
	log       *zerolog.Logger
}

func NewChatUseCase(threads repository.ThreadRepository, gen adapter.Generator, locks *ThreadLocks, modelName string, historyBudget int, logger *zerolog.Logger) *chatUC {
	return &chatUC{
		threads:   threads,
		gen:       gen,
		locks:     locks,
		modelName: modelName,
		budget:    historyBudget,
		log:       logger,
	}
}

func (c *chatUC) StreamTurn(ctx context.Context, threadID, message string, sink FragmentSink) error {
	return c.handleTurn(ctx, threadID, message, sink, "stream")
}

func (c *chatUC) SendTurn(ctx context.Context, threadID, message string) (string, error) {
	var buf bufferSink
	if err := c.handleTurn(ctx, threadID, message, &buf, "batch"); err != nil {
		return "", err
	}
	return buf.sb.String(), nil
}

func (c *chatUC) History(ctx context.Context, threadID string) ([]model.Turn, error) {
	history, _, err := c.threads.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return history.Snapshot(), nil
}

// handleTurn drives one request through
// lock -> hydrate -> stream -> commit -> release.
func (c *chatUC) handleTurn(ctx context.Context, threadID, message string, sink FragmentSink, mode string) error {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.handleTurn")()

	// Validation happens before any lock or store access.
	message = strings.TrimSpace(message)
	if message == "" {
		metrics.IncTurnFailure(KindEmptyMessage)
		return domain.ErrEmptyMessage
	}
	if threadID == "" {
		threadID = model.DefaultThreadID
	}

	start := time.Now()
	lockStart := time.Now()
	unlock := c.locks.Lock(threadID)
	metrics.ObserveLockWait(time.Since(lockStart))
	defer unlock()

	history, version, err := c.threads.Load(ctx, threadID)
	if err != nil {
		return c.fail(log, sink, mode, start, KindStoreUnavailable, domain.ErrStoreUnavailable)
	}

	userTurn := model.NewTurn(model.RoleUser, message)
	window := c.trimToBudget(ctx, history.Snapshot())

	stream, err := c.gen.Stream(ctx, c.modelName, window, message)
	if err != nil {
		return c.fail(log, sink, mode, start, KindGeneration, &domain.GenerationError{Cause: err})
	}
	defer stream.Close()

	var reply strings.Builder
	fragments := 0
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if cancelled(ctx, err) {
				return c.cancel(log, start, mode, fragments)
			}
			return c.fail(log, sink, mode, start, KindGeneration, &domain.GenerationError{Cause: err})
		}
		if frag == "" {
			continue
		}
		reply.WriteString(frag)
		fragments++
		if err := sink.Fragment(frag); err != nil {
			// The client went away mid-stream; stop pulling and discard.
			return c.cancel(log, start, mode, fragments)
		}
	}
	if ctx.Err() != nil {
		return c.cancel(log, start, mode, fragments)
	}

	// A zero-fragment generation is valid and still commits an empty
	// assistant turn so the caller is never left waiting.
	assistantTurn := model.NewTurn(model.RoleAssistant, reply.String())
	if err := c.threads.AppendTurns(ctx, threadID, version, []model.Turn{userTurn, assistantTurn}); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncCommitConflict()
			return c.fail(log, sink, mode, start, KindConflict, domain.ErrConflict)
		}
		return c.fail(log, sink, mode, start, KindStoreUnavailable, domain.ErrStoreUnavailable)
	}

	metrics.IncTurnsCommitted()
	metrics.ObserveFragments(fragments)
	metrics.ObserveTurn(mode, true, time.Since(start))
	log.Info().Str("thread_id", threadID).Int("fragments", fragments).
		Int("reply_len", reply.Len()).Msg("turn committed")

	if err := sink.Done(); err != nil {
		log.Debug().Err(err).Msg("client gone before terminal marker")
	}
	return nil
}

// fail emits an error marker (short diagnostic only), records metrics, and
// returns err. The thread lock is released by the caller's defer; nothing has
// been committed.
func (c *chatUC) fail(log *zerolog.Logger, sink FragmentSink, mode string, start time.Time, kind string, err error) error {
	metrics.IncTurnFailure(kind)
	metrics.ObserveTurn(mode, false, time.Since(start))
	log.Error().Err(err).Str("kind", kind).Msg("turn failed")
	if serr := sink.ErrorMarker(kind, err.Error()); serr != nil {
		log.Debug().Err(serr).Msg("client gone before error marker")
	}
	return err
}

// cancel is the silent cleanup path: the partial accumulator is discarded,
// nothing is committed, and no marker is sent. The client already went away.
func (c *chatUC) cancel(log *zerolog.Logger, start time.Time, mode string, fragments int) error {
	metrics.IncTurnsCancelled()
	metrics.ObserveTurn(mode, false, time.Since(start))
	log.Info().Int("fragments_discarded", fragments).Msg("turn cancelled")
	return context.Canceled
}

func cancelled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// bufferSink accumulates the full reply for the non-streaming endpoint.
type bufferSink struct {
	sb strings.Builder
}

func (b *bufferSink) Fragment(delta string) error           { b.sb.WriteString(delta); return nil }
func (b *bufferSink) Done() error                           { return nil }
func (b *bufferSink) ErrorMarker(kind, detail string) error { return nil }
