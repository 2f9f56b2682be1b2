// Package health periodically probes storage backends and reports their
// availability, so a consuming content store can surface backend outages
// without waiting for an operation to fail.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/casfs/depot/logger"
	"github.com/casfs/depot/storage"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one backend. Probe must return nil when the backend is
// reachable.
type Check struct {
	Name     string
	Probe    func(ctx context.Context) error
	Interval time.Duration
	Timeout  time.Duration
}

// Result is the last observed state of a check.
type Result struct {
	Status    Status
	LastCheck time.Time
	LastError error
}

// Monitor runs registered checks on their intervals until stopped.
type Monitor struct {
	mu      sync.RWMutex
	checks  []*Check
	results map[string]Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewMonitor() *Monitor {
	return &Monitor{results: make(map[string]Result)}
}

// Register adds a check. Zero interval and timeout get defaults of 30s
// and 10s. Must be called before Start.
func (m *Monitor) Register(check *Check) {
	if check.Interval == 0 {
		check.Interval = 30 * time.Second
	}
	if check.Timeout == 0 {
		check.Timeout = 10 * time.Second
	}

	m.mu.Lock()
	m.checks = append(m.checks, check)
	m.results[check.Name] = Result{Status: StatusHealthy}
	m.mu.Unlock()
}

// Start launches one goroutine per registered check.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, check := range m.checks {
		m.wg.Add(1)
		go m.run(ctx, check)
	}
}

// Stop cancels all checks and waits for them to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Result returns the last observed state of the named check.
func (m *Monitor) Result(name string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[name]
	return res, ok
}

// Healthy reports whether every check is currently healthy.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, res := range m.results {
		if res.Status != StatusHealthy {
			return false
		}
	}
	return true
}

func (m *Monitor) run(ctx context.Context, check *Check) {
	defer m.wg.Done()

	ticker := time.NewTicker(check.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.perform(ctx, check)
		}
	}
}

func (m *Monitor) perform(ctx context.Context, check *Check) {
	// A panicking probe marks the component unhealthy instead of
	// crashing the monitor goroutine.
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("probe panic: %v", r)
			}
		}()
		probeCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		defer cancel()
		err = check.Probe(probeCtx)
	}()

	status := StatusHealthy
	if err != nil {
		status = StatusUnhealthy
		logger.Warn("health check failed", "check", check.Name, "error", err)
	}

	m.mu.Lock()
	m.results[check.Name] = Result{
		Status:    status,
		LastCheck: time.Now(),
		LastError: err,
	}
	m.mu.Unlock()
}

// StoreCheck builds a check that probes a Blobstore with a metadata-only
// existence call. The probe key does not need to exist; only backend
// errors other than not-found count as failures.
func StoreCheck(name string, store storage.Blobstore, interval time.Duration) *Check {
	return &Check{
		Name:     name,
		Interval: interval,
		Probe: func(ctx context.Context) error {
			_, err := store.Exists(ctx, ".depot-health-probe")
			return err
		},
	}
}
