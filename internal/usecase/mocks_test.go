// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
)

// ---- Thread repository fake ----

type storedThread struct {
	version   int64
	turns     []model.Turn
	updatedAt time.Time
}

// memThreadRepo is a small in-memory implementation used by unit tests.
type memThreadRepo struct {
	mu        sync.Mutex
	threads   map[string]*storedThread
	loadErr   error // used by tests to simulate store outages
	appendErr error
}

func newMemThreadRepo() *memThreadRepo {
	return &memThreadRepo{threads: make(map[string]*storedThread)}
}

func (m *memThreadRepo) Load(ctx context.Context, threadID string) (model.History, int64, error) {
	if m.loadErr != nil {
		return model.History{}, 0, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return model.NewHistory(nil), 0, nil
	}
	return model.NewHistory(t.turns), t.version, nil
}

func (m *memThreadRepo) AppendTurns(ctx context.Context, threadID string, expectedVersion int64, turns []model.Turn) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		if expectedVersion != 0 {
			return domain.ErrConflict
		}
		m.threads[threadID] = &storedThread{
			version:   1,
			turns:     append([]model.Turn(nil), turns...),
			updatedAt: time.Now(),
		}
		return nil
	}
	if t.version != expectedVersion {
		return domain.ErrConflict
	}
	t.turns = append(t.turns, turns...)
	t.version++
	t.updatedAt = time.Now()
	return nil
}

func (m *memThreadRepo) ListThreads(ctx context.Context, offset, limit int) ([]model.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Thread, 0, len(m.threads))
	for id, t := range m.threads {
		out = append(out, model.Thread{ID: id, Version: t.version, TurnCount: len(t.turns), UpdatedAt: t.updatedAt})
	}
	return out, nil
}

func (m *memThreadRepo) FindIdleThreads(ctx context.Context, idleSince time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, t := range m.threads {
		if t.updatedAt.Before(idleSince) {
			out = append(out, id)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memThreadRepo) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.threads, threadID)
	return nil
}

// snapshot returns a copy of one thread's turns for assertions.
func (m *memThreadRepo) snapshot(threadID string) []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil
	}
	return append([]model.Turn(nil), t.turns...)
}

func (m *memThreadRepo) version(threadID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return 0
	}
	return t.version
}

// ---- Generator fake ----

// fakeGenerator streams a scripted fragment list. failAfter >= 0 makes Recv
// return failErr once that many fragments were produced; delay paces Recv so
// tests can cancel mid-stream.
type fakeGenerator struct {
	mu          sync.Mutex
	frags       []string
	failAfter   int
	failErr     error
	streamErr   error
	delay       time.Duration
	tokensPer   int   // per-turn cost reported by CountTokens
	countErr    error // simulate counting unavailability
	lastHistory []model.Turn
	closed      int
}

func newFakeGenerator(frags ...string) *fakeGenerator {
	return &fakeGenerator{frags: frags, failAfter: -1, tokensPer: 1}
}

func (f *fakeGenerator) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeGenerator) GetModelInfo(ctx context.Context, modelName string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: modelName}, nil
}

func (f *fakeGenerator) CountTokens(ctx context.Context, modelName string, turns []model.Turn) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.tokensPer * len(turns), nil
}

func (f *fakeGenerator) Stream(ctx context.Context, modelName string, history []model.Turn, userText string) (adapter.GenerationStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.lastHistory = append([]model.Turn(nil), history...)
	return &fakeStream{
		ctx:       ctx,
		frags:     append([]string(nil), f.frags...),
		failAfter: f.failAfter,
		failErr:   f.failErr,
		delay:     f.delay,
		onClose:   func() { f.mu.Lock(); f.closed++; f.mu.Unlock() },
	}, nil
}

func (f *fakeGenerator) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeGenerator) history() []model.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Turn(nil), f.lastHistory...)
}

type fakeStream struct {
	ctx       context.Context
	frags     []string
	failAfter int
	failErr   error
	delay     time.Duration
	pos       int
	onClose   func()
	closeOnce sync.Once
}

func (s *fakeStream) Recv() (string, error) {
	if s.delay > 0 {
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-time.After(s.delay):
		}
	} else if s.ctx.Err() != nil {
		return "", s.ctx.Err()
	}
	if s.failAfter >= 0 && s.pos >= s.failAfter {
		return "", s.failErr
	}
	if s.pos >= len(s.frags) {
		return "", io.EOF
	}
	frag := s.frags[s.pos]
	s.pos++
	return frag, nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// ---- Sink fake ----

// captureSink records everything the controller emits. failAt > 0 makes the
// Nth Fragment call fail, simulating a client that went away.
type captureSink struct {
	mu        sync.Mutex
	frags     []string
	done      bool
	errKind   string
	errDetail string
	failAt    int
	onFrag    func(n int) // called after each accepted fragment
	clientErr error
}

func (c *captureSink) Fragment(delta string) error {
	c.mu.Lock()
	n := len(c.frags) + 1
	if c.failAt > 0 && n >= c.failAt {
		c.mu.Unlock()
		if c.clientErr != nil {
			return c.clientErr
		}
		return io.ErrClosedPipe
	}
	c.frags = append(c.frags, delta)
	cb := c.onFrag
	c.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (c *captureSink) Done() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	return nil
}

func (c *captureSink) ErrorMarker(kind, detail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errKind = kind
	c.errDetail = detail
	return nil
}

func (c *captureSink) fragments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frags...)
}

func (c *captureSink) doneCalled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *captureSink) kind() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errKind
}
