package session

import (
	"context"
	"io"
	"sync"
)

// Chan is a channel-backed Stream implementation for producers. Values sent
// before Close are delivered in order; Close ends the stream with io.EOF and
// Fail ends it with the given error once buffered values are drained.
type Chan[T any] struct {
	ch chan T

	mu     sync.Mutex
	err    error
	closed bool
}

// NewChan returns a Chan with the given buffer size.
func NewChan[T any](buf int) *Chan[T] {
	return &Chan[T]{ch: make(chan T, buf)}
}

// Send delivers one value, blocking until there is room or ctx is cancelled.
// Send must not be called after Close or Fail.
func (c *Chan[T]) Send(ctx context.Context, v T) error {
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream normally.
func (c *Chan[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Fail ends the stream with err. The first call wins.
func (c *Chan[T]) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.ch)
}

// Recv implements Stream.
func (c *Chan[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-c.ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			if err != nil {
				return zero, err
			}
			return zero, io.EOF
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
