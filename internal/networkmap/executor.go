package networkmap

import (
	"fmt"
	"sync"
	"time"
)

// executor is a cooperative single-threaded task runner: every submitted
// function runs to completion before the next one starts, so the updater
// never needs internal locks around cache or state mutation.
type executor struct {
	tasks chan func()

	mu       sync.Mutex
	closed   bool
	timers   map[*time.Timer]struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		tasks:  make(chan func(), 256),
		timers: make(map[*time.Timer]struct{}),
		stopCh: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *executor) run() {
	defer e.wg.Done()
	for {
		select {
		case f := <-e.tasks:
			f()
		case <-e.stopCh:
			return
		}
	}
}

// submit enqueues f to run on the executor's goroutine. It is a no-op once
// the executor has been closed.
func (e *executor) submit(f func()) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	select {
	case e.tasks <- f:
	case <-e.stopCh:
	}
}

// schedule submits f to run after d, tracking the timer so close can cancel
// it if the executor shuts down first.
func (e *executor) schedule(d time.Duration, f func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		e.mu.Lock()
		delete(e.timers, timer)
		e.mu.Unlock()
		e.submit(f)
	})
	e.timers[timer] = struct{}{}
	e.mu.Unlock()
}

// close stops accepting new work, cancels outstanding scheduled timers, and
// waits up to timeout for the in-flight task (if any) to finish.
func (e *executor) close(timeout time.Duration) error {
	e.mu.Lock()
	e.closed = true
	for timer := range e.timers {
		timer.Stop()
	}
	e.timers = make(map[*time.Timer]struct{})
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stopCh) })

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("networkmap: executor did not drain within %s", timeout)
	}
}
