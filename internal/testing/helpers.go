// Package testing provides test helpers shared by the healthmon packages:
// goroutine error collection for concurrent writer tests, a controllable
// clock and record fixtures.
//
// Using t.Fatal() or t.FailNow() in goroutines causes undefined behavior because
// these methods call runtime.Goexit() which only terminates the current goroutine,
// not the test goroutine.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Error Channel Pattern
// =============================================================================

// GoroutineTest runs functions in goroutines and reports their errors from
// the test goroutine.
//
// Usage:
//
//	func TestConcurrentInsert(t *testing.T) {
//	    gt := NewGoroutineTest(t, 10*time.Second)
//
//	    for w := 0; w < 4; w++ {
//	        gt.Go(func(ctx context.Context) error {
//	            _, err := st.Insert(ctx, reading)
//	            return err
//	        })
//	    }
//	    gt.Wait()
//	}
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGoroutineTest creates a GoroutineTest whose context expires after
// timeout.
func NewGoroutineTest(t *testing.T, timeout time.Duration) *GoroutineTest {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &GoroutineTest{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs fn in a goroutine. A returned error fails the test at Wait.
func (gt *GoroutineTest) Go(fn func(ctx context.Context) error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(gt.ctx); err != nil {
			gt.mu.Lock()
			gt.errs = append(gt.errs, err)
			gt.mu.Unlock()
		}
	}()
}

// Errorf records a failure from inside a goroutine.
func (gt *GoroutineTest) Errorf(format string, args ...any) {
	gt.mu.Lock()
	gt.errs = append(gt.errs, fmt.Errorf(format, args...))
	gt.mu.Unlock()
}

// Wait waits for all goroutines and reports any errors. It must be called
// from the test goroutine.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()

	gt.wg.Wait()
	gt.cancel()

	gt.mu.Lock()
	defer gt.mu.Unlock()

	for _, err := range gt.errs {
		gt.t.Errorf("goroutine error: %v", err)
	}
	if len(gt.errs) > 0 {
		gt.t.FailNow()
	}
}

// Context returns the context passed to every goroutine.
func (gt *GoroutineTest) Context() context.Context {
	return gt.ctx
}

// =============================================================================
// Timing Helpers
// =============================================================================

// WithTimeout runs fn and returns its error, or a timeout error if fn does
// not return in time.
func WithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout after %v", timeout)
	}
}

// Eventually polls condition every interval until it holds or timeout
// passes.
func Eventually(timeout, interval time.Duration, condition func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(interval)
	}
	if condition() {
		return nil
	}
	return fmt.Errorf("condition not met within %v", timeout)
}
