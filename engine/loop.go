package engine

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrLoopNotStarted = errors.New("engine: loop not started")
	ErrLoopStopped    = errors.New("engine: loop stopped")
)

const defaultQueueSize = 256

// command はループのゴルーチン上で実行される処理です。
type command func(ctx context.Context)

// inbox はローカル入力をループへ渡すキューです。
// GameState に触れる処理はすべてここを通してループ上で直列に実行される。
type inbox struct {
	queue chan command

	started atomic.Bool
	stopped atomic.Bool

	done chan struct{}
}

func newInbox(size int) *inbox {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &inbox{
		queue: make(chan command, size),
		done:  make(chan struct{}),
	}
}

func (in *inbox) start() bool {
	return in.started.CompareAndSwap(false, true)
}

// stop 以降の submit は ErrLoopStopped になる。キューは閉じない。
func (in *inbox) stop() {
	if in.stopped.CompareAndSwap(false, true) {
		close(in.done)
	}
}

func (in *inbox) submit(ctx context.Context, cmd command) error {
	if !in.started.Load() {
		return ErrLoopNotStarted
	}
	if in.stopped.Load() {
		return ErrLoopStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-in.done:
		return ErrLoopStopped
	case in.queue <- cmd:
		return nil
	}
}

// call は fn をループ上で実行し、その戻り値を待ちます。
func call[T any](ctx context.Context, in *inbox, fn func(ctx context.Context) T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	err := in.submit(ctx, func(ctx context.Context) {
		reply <- fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-in.done:
		return zero, ErrLoopStopped
	}
}
