package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := zerolog.Nop()
	p := NewPool(2, &log)
	p.Start(ctx)
	defer p.Stop()

	var done int32
	for i := 0; i < 10; i++ {
		err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&done) != 10 {
		if time.Now().After(deadline) {
			t.Fatalf("ran %d of 10 tasks", atomic.LoadInt32(&done))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolRejectsNilTask(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log)
	if err := p.Submit(nil); err == nil {
		t.Fatal("nil task accepted")
	}
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log) // never started, queue capacity 4

	blocker := func(ctx context.Context) error { return errors.New("unused") }
	rejected := false
	for i := 0; i < 10; i++ {
		if err := p.Submit(blocker); err != nil {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Fatal("saturated pool kept accepting tasks")
	}
}
