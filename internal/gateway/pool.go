package gateway

import (
	"context"

	seiserrors "github.com/seisgate/seisgate/pkg/errors"
)

// workerPool caps the number of concurrent native calls. The native runtime
// blocks for the full duration of every call, so an unbounded fan-out would
// exhaust file handles and memory; excess requests queue here for a slot.
type workerPool struct {
	slots chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{slots: make(chan struct{}, size)}
}

// acquire blocks until a worker slot is free or the context ends.
func (p *workerPool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctxError(ctx, "timed out waiting for a worker slot")
	}
}

func (p *workerPool) release() {
	<-p.slots
}

// ctxError converts a context termination into a structured error.
func ctxError(ctx context.Context, message string) *seiserrors.SeisGateError {
	if ctx.Err() == context.Canceled {
		return seiserrors.New(seiserrors.ErrCodeOperationCanceled, message)
	}
	return seiserrors.New(seiserrors.ErrCodeOperationTimeout, message)
}
