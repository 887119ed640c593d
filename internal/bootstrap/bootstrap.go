// Package bootstrap boots a numeric engine exactly once and lets any number
// of callers wait for it.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/logger"
)

// Bootstrap is a one-time, awaitable engine initialization.
// The zero value is not usable; call New.
type Bootstrap struct {
	boot engine.BootFunc

	once sync.Once
	done chan struct{}
	eng  engine.Engine
	err  error
}

// New wraps boot. Nothing runs until the first Ready.
func New(boot engine.BootFunc) *Bootstrap {
	return &Bootstrap{
		boot: boot,
		done: make(chan struct{}),
	}
}

// Ready starts the boot if nobody has yet and waits for it. Every caller
// gets the same engine or the same error. A failed boot is never retried.
//
// ctx only bounds the wait. The boot itself keeps running when a caller
// gives up.
func (b *Bootstrap) Ready(ctx context.Context) (engine.Engine, error) {
	b.once.Do(func() { go b.run() })
	select {
	case <-b.done:
		return b.eng, b.err
	default:
	}
	select {
	case <-b.done:
		return b.eng, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the boot has finished, successfully or not.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.done
}

func (b *Bootstrap) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			b.eng = nil
			b.err = fmt.Errorf("%w: boot panicked: %v", engine.ErrEngineUnavailable, r)
		}
		if b.err != nil {
			logger.Logger().Warn("engine boot failed", "err", b.err)
		}
	}()

	eng, err := b.boot(context.Background())
	switch {
	case err != nil:
		b.err = fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	case eng == nil:
		b.err = fmt.Errorf("%w: boot returned no engine", engine.ErrEngineUnavailable)
	default:
		b.eng = eng
	}
}

var (
	sharedMux sync.Mutex
	shared    = map[string]*Bootstrap{}
)

// Shared returns the process-wide bootstrap for an engine kind. boot is only
// used by the first caller for that kind.
func Shared(kind string, boot engine.BootFunc) *Bootstrap {
	sharedMux.Lock()
	defer sharedMux.Unlock()
	if b, ok := shared[kind]; ok {
		return b
	}
	b := New(boot)
	shared[kind] = b
	return b
}
