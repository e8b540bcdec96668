package sdk

import "sync"

// Executor runs result callbacks. All asynchronous results of one Client are
// delivered through the Executor chosen when the Client was built.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// GoExecutor runs every callback on a fresh goroutine. Callbacks may run
// concurrently with each other.
var GoExecutor Executor = ExecutorFunc(func(fn func()) { go fn() })

// SerialExecutor runs callbacks one at a time, in submission order, on a
// single goroutine it owns. Execute never blocks.
type SerialExecutor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewSerialExecutor starts the delivery goroutine.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// Execute queues fn. After Close, fn runs on its own goroutine so that it
// still runs exactly once.
func (e *SerialExecutor) Execute(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go fn()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
	e.cond.Signal()
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// Close stops accepting work and waits for queued callbacks to finish. It
// must not be called from inside a callback.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	<-e.done
}

// deliver runs call off the caller's goroutine and hands its result to cb
// through the client's executor, exactly once.
func deliver[T any](c *Client, call func() T, cb func(T)) {
	go func() {
		result := call()
		c.executor.Execute(func() { cb(result) })
	}()
}

// future is deliver with a one-shot channel in place of a callback. The
// channel receives one value and is then closed.
func future[T any](c *Client, call func() T) <-chan T {
	ch := make(chan T, 1)
	deliver(c, call, func(v T) {
		ch <- v
		close(ch)
	})
	return ch
}
