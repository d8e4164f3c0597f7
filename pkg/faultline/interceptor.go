// interceptor.go feeds panics and stray goroutine errors into the pipeline
// and chains previously-installed handlers.

package faultline

import (
	"context"
	"fmt"
	"sync"
)

// ErrorHandler observes every captured occurrence after the pipeline has
// finished with it. Handlers run in registration order; registering never
// replaces earlier handlers, so prior application behavior is preserved.
type ErrorHandler func(err error, fatal bool)

type handlerChain struct {
	mu       sync.Mutex
	handlers []ErrorHandler
}

func (c *handlerChain) append(h ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// invoke runs the chain against a snapshot taken under the lock, so a
// handler registering another handler does not deadlock.
func (c *handlerChain) invoke(err error, fatal bool) {
	c.mu.Lock()
	handlers := make([]ErrorHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(err, fatal)
	}
}

// recoveredError normalizes a recovered panic value into an error.
func recoveredError(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// AddErrorHandler appends a handler to the capture chain. The pipeline
// completes before handlers run, and handlers run in registration order.
func (c *Client) AddErrorHandler(h ErrorHandler) {
	c.handlers.append(h)
}

// Recover captures an in-flight panic as a fatal occurrence and returns the
// recovered value without re-panicking. It must be deferred directly:
//
//	defer client.Recover(ctx)
func (c *Client) Recover(ctx context.Context) any {
	r := recover()
	if r == nil {
		return nil
	}
	c.capture(ctx, recoveredError(r), captureFrames(2), true)
	return r
}

// Go runs fn on its own goroutine. A returned error is captured as a
// non-fatal occurrence, the way an unhandled rejection would be; a panic is
// captured as fatal. Neither propagates to the host.
func (c *Client) Go(ctx context.Context, fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.capture(ctx, recoveredError(r), captureFrames(2), true)
			}
		}()
		if err := fn(); err != nil {
			c.capture(ctx, err, framesFor(err, 1), false)
		}
	}()
}

// CaptureError records err as a non-fatal occurrence. Errors implementing
// FrameProvider supply their own fault-site frames; otherwise the current
// stack is captured.
func (c *Client) CaptureError(ctx context.Context, err error) {
	if !c.enabled("CaptureError") {
		return
	}
	c.capture(ctx, err, framesFor(err, 1), false)
}

// capture runs the pipeline to completion, then re-invokes the chained
// handlers.
func (c *Client) capture(ctx context.Context, err error, frames []StackFrame, fatal bool) {
	if !c.enabled("capture") {
		return
	}
	c.router.processOccurrence(ctx, err, frames, fatal)
	c.handlers.invoke(err, fatal)
}
