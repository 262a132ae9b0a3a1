package security

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4, 2)
	ctx := context.Background()
	password := []byte("secret123")
	hash, err := h.Hash(ctx, password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if hash == string(password) {
		t.Fatal("hash must not equal plaintext")
	}
	if err := h.Compare(ctx, hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4, 1)
	ctx := context.Background()
	hash, _ := h.Hash(ctx, []byte("secret123"))
	for _, candidate := range []string{"wrong", "secret1234", "Secret123", ""} {
		if err := h.Compare(ctx, hash, []byte(candidate)); err == nil {
			t.Errorf("Compare(%q) should fail", candidate)
		}
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12, 0)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h.Workers < 1 {
		t.Errorf("Workers should default to GOMAXPROCS, got %d", h.Workers)
	}
	h0 := NewHasher(0, 1)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if NewHasher(99, 1).Cost != 31 {
		t.Error("cost above max should be clamped to 31")
	}
}

func TestHasher_ConcurrentUseWithSingleWorker(t *testing.T) {
	h := NewHasher(4, 1)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hash, err := h.Hash(ctx, []byte("pw"))
			if err != nil {
				errs <- err
				return
			}
			errs <- h.Compare(ctx, hash, []byte("pw"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent hash: %v", err)
		}
	}
}

func TestHasher_CanceledContextWhileWaiting(t *testing.T) {
	h := NewHasher(4, 1)
	// Occupy the only slot.
	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, []byte("pw")); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
