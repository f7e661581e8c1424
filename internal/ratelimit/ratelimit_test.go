package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWindow_AllowsUpToLimit(t *testing.T) {
	w := NewWindow(60*time.Second, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := w.Allow(ctx, "user1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d expected allowed", i+1)
		}
	}

	ok, err := w.Allow(ctx, "user1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("6th attempt within window should be rejected")
	}
}

func TestWindow_PrunesExpiredEntries(t *testing.T) {
	w := NewWindow(10*time.Millisecond, 1)
	ctx := context.Background()

	ok, err := w.Allow(ctx, "user1")
	if err != nil || !ok {
		t.Fatalf("first attempt expected allowed, ok=%v err=%v", ok, err)
	}

	ok, _ = w.Allow(ctx, "user1")
	if ok {
		t.Fatal("second attempt within window should be rejected")
	}

	time.Sleep(20 * time.Millisecond)

	ok, err = w.Allow(ctx, "user1")
	if err != nil || !ok {
		t.Fatalf("attempt after window elapsed expected allowed, ok=%v err=%v", ok, err)
	}
}

func TestWindow_KeysAreIndependent(t *testing.T) {
	w := NewWindow(60*time.Second, 1)
	ctx := context.Background()

	ok1, _ := w.Allow(ctx, "a")
	ok2, _ := w.Allow(ctx, "b")
	if !ok1 || !ok2 {
		t.Fatal("distinct keys should not share a budget")
	}
}

func TestWindow_Reset(t *testing.T) {
	w := NewWindow(60*time.Second, 1)
	ctx := context.Background()

	w.Allow(ctx, "user1")
	ok, _ := w.Allow(ctx, "user1")
	if ok {
		t.Fatal("expected rejection before reset")
	}

	w.Reset("user1")
	ok, _ = w.Allow(ctx, "user1")
	if !ok {
		t.Fatal("expected allowed after reset")
	}
}

func TestWindow_Concurrent(t *testing.T) {
	w := NewWindow(time.Minute, 1000)
	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Allow(ctx, "shared")
		}()
	}
	wg.Wait()
}
