package sweeper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

// Manager owns the background reconciliation loops: a frequent sweep over
// recent PENDING orders and a slower one for stale leftovers.
type Manager struct {
	service *Service

	sweepTicker *time.Ticker
	staleTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the singleton manager with its sweep service. Must be
// called once during startup before GetManager is used.
func InitManager(service *Service) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			service: service,
			stopCh:  make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global sweeper manager (singleton).
func GetManager() *Manager {
	return globalManager
}

// Start launches both sweep loops. Intervals come from env so deployments
// can tune gateway load without a rebuild.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Sweeper Manager] Starting payment reconciliation loops")

	sweepInterval := envMinutes("SWEEP_INTERVAL_MINUTES", 10)
	staleInterval := envMinutes("STALE_SWEEP_INTERVAL_MINUTES", 30)

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(sweepInterval)

	m.staleTicker = time.NewTicker(staleInterval)
	m.wg.Add(1)
	go m.staleWorker(staleInterval)

	log.Info("[Sweeper Manager] Started successfully")
}

// Stop halts both loops and waits for in-flight batches to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Sweeper Manager] Stopping payment reconciliation loops...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.staleTicker != nil {
		m.staleTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()

	log.Info("[Sweeper Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunSweepOnce exposes a manual trigger for a single sweep (admin use).
func (m *Manager) RunSweepOnce() (Summary, error) {
	return m.service.Sweep(context.Background())
}

func (m *Manager) sweepWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Sweeper Manager] Started pending sweep worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper Manager] Pending sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			if _, err := m.service.Sweep(context.Background()); err != nil {
				log.Errorf("[Sweeper Manager] Pending sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) staleWorker(interval time.Duration) {
	defer m.wg.Done()
	maxAge := envHours("STALE_MAX_AGE_HOURS", 2)
	log.Infof("[Sweeper Manager] Started stale sweep worker (interval: %s, max age: %s)", interval, maxAge)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper Manager] Stale sweep worker stopping")
			return
		case <-m.staleTicker.C:
			if _, err := m.service.SweepStale(context.Background(), maxAge); err != nil {
				log.Errorf("[Sweeper Manager] Stale sweep error: %v", err)
			}
		}
	}
}

func envMinutes(key string, fallback int) time.Duration {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return time.Duration(fallback) * time.Minute
}

func envHours(key string, fallback int) time.Duration {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return time.Duration(v) * time.Hour
	}
	return time.Duration(fallback) * time.Hour
}
