package telemetry

import (
	"context"
	"log"
	"sync"
	"time"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

var inflight sync.WaitGroup

// EmitAsync emits event in its own goroutine so the request is never blocked on telemetry.
// A zero CreatedAt is stamped before the goroutine starts. Nil emitter or event is a no-op.
// The emit runs on a fresh context: a canceled request still records its event.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: emit %s: %v", event.Type, err)
		}
	}()
}

// Drain waits until every emit started by EmitAsync has finished or ctx is done.
// Call it after the HTTP server stops and before the log provider shuts down.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
