package taskq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(WithCapacity(8), WithWorkers(2))
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		ok := p.Enqueue(func(context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		if !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := ran == 5
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("tasks did not finish, ran=%d", ran)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
}

func TestErrorsReachSink(t *testing.T) {
	errCh := make(chan error, 1)
	p := New(WithWorkers(1), WithErrorSink(func(err error) { errCh <- err }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	boom := errors.New("boom")
	if !p.Enqueue(func(context.Context) error { return boom }) {
		t.Fatal("enqueue rejected")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Fatalf("sink got %v, want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error never reached sink")
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	// No workers running: the queue fills and further tasks are rejected
	// instead of blocking the caller.
	p := New(WithCapacity(2))
	ok1 := p.Enqueue(func(context.Context) error { return nil })
	ok2 := p.Enqueue(func(context.Context) error { return nil })
	ok3 := p.Enqueue(func(context.Context) error { return nil })
	if !ok1 || !ok2 {
		t.Fatal("queue rejected tasks under capacity")
	}
	if ok3 {
		t.Fatal("full queue accepted a task")
	}
	if p.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", p.Len())
	}
}

func TestClosedPoolRejects(t *testing.T) {
	p := New()
	p.Close()
	if p.Enqueue(func(context.Context) error { return nil }) {
		t.Fatal("closed pool accepted a task")
	}
}
