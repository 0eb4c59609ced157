package obs

import (
	"context"
	"sync"
	"time"
)

// Shutdown coordinates graceful teardown of registered components,
// starting their stop functions in reverse registration order and
// running them concurrently, so their completion order is not fixed,
// and bounding the whole sequence with a timeout.
type Shutdown struct {
	mu       sync.Mutex
	fns      []func() error
	timeout  time.Duration
	logger   *Logger
}

// NewShutdown creates a shutdown coordinator bounded by timeout.
func NewShutdown(timeout time.Duration, logger *Logger) *Shutdown {
	if logger == nil {
		logger = Default("shutdown")
	}
	return &Shutdown{timeout: timeout, logger: logger}
}

// Register adds a teardown function, called during Run.
func (s *Shutdown) Register(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
}

// Run executes all registered teardown functions and returns the
// first error, if any, once every function has returned or the
// timeout elapses.
func (s *Shutdown) Run(ctx context.Context) error {
	s.mu.Lock()
	fns := append([]func() error(nil), s.fns...)
	s.mu.Unlock()

	s.logger.Info("starting graceful shutdown", Int("components", len(fns)))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	errCh := make(chan error, len(fns))
	var wg sync.WaitGroup
	for i := len(fns) - 1; i >= 0; i-- {
		wg.Add(1)
		fn := fns[i]
		go func() {
			defer wg.Done()
			errCh <- fn()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("shutdown timed out", Duration("timeout", s.timeout))
		return shutdownCtx.Err()
	}
	close(errCh)

	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
