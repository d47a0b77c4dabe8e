package ai

import (
	"context"
	"testing"
	"time"
)

func TestLimitedGeneratorCapsConcurrentStreams(t *testing.T) {
	inner := &stubGen{name: "inner"}
	g := NewLimitedGenerator(inner, 1)
	ctx := context.Background()

	first, err := g.Stream(ctx, "m", nil, "one")
	if err != nil {
		t.Fatal(err)
	}

	// The second stream must wait for the first slot.
	acquired := make(chan struct{})
	go func() {
		s, err := g.Stream(ctx, "m", nil, "two")
		if err == nil {
			s.Close()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second stream started while the slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("slot was not released by Close")
	}
}

func TestLimitedGeneratorDoubleCloseReleasesOnce(t *testing.T) {
	inner := &stubGen{name: "inner"}
	g := NewLimitedGenerator(inner, 1)
	ctx := context.Background()

	s, err := g.Stream(ctx, "m", nil, "one")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()

	// Exactly one slot exists; a double release would have freed two.
	s2, err := g.Stream(ctx, "m", nil, "two")
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := g.Stream(blocked, "m", nil, "three"); err == nil {
		t.Fatal("third stream acquired a slot that should not exist")
	}
}

func TestLimitedGeneratorRespectsCancelledContext(t *testing.T) {
	inner := &stubGen{name: "inner"}
	g := NewLimitedGenerator(inner, 1)

	held, err := g.Stream(context.Background(), "m", nil, "one")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Stream(ctx, "m", nil, "two"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestLimitedGeneratorZeroLimitPassesThrough(t *testing.T) {
	inner := &stubGen{name: "inner"}
	if g := NewLimitedGenerator(inner, 0); g != inner {
		t.Fatal("zero limit should return the inner generator unchanged")
	}
}
