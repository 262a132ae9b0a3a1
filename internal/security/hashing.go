package security

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
//
// Every bcrypt call runs on a separate goroutine and at most Workers run at once,
// so request handlers waiting on a hash do not starve the rest of the server of CPU.
type Hasher struct {
	Cost    int
	Workers int
	slots   *semaphore.Weighted
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31) and worker bound.
// workers <= 0 means GOMAXPROCS.
func NewHasher(cost, workers int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{Cost: cost, Workers: workers, slots: semaphore.NewWeighted(int64(workers))}
}

// Hash produces a bcrypt hash of password. Returns the hash as a string suitable for storage.
func (h *Hasher) Hash(ctx context.Context, password []byte) (string, error) {
	var hash []byte
	err := h.run(ctx, func() error {
		var err error
		hash, err = bcrypt.GenerateFromPassword(password, h.Cost)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare verifies password against the stored hash using constant-time
// comparison. Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid hash.
func (h *Hasher) Compare(ctx context.Context, hash string, password []byte) error {
	return h.run(ctx, func() error {
		return bcrypt.CompareHashAndPassword([]byte(hash), password)
	})
}

func (h *Hasher) run(ctx context.Context, fn func() error) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer h.slots.Release(1)
		done <- fn()
	}()
	return <-done
}
