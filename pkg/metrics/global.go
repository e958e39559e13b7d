package metrics

import (
	"sync"
)

var (
	globalMetrics *Metrics
	mu            sync.RWMutex
)

// SetGlobal installs m as the process-wide instance.
func SetGlobal(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	globalMetrics = m
}

// Global returns the process metrics, creating them on first use.
func Global() *Metrics {
	mu.RLock()
	m := globalMetrics
	mu.RUnlock()
	if m != nil {
		return m
	}

	mu.Lock()
	defer mu.Unlock()
	if globalMetrics == nil {
		globalMetrics = NewMetrics()
	}
	return globalMetrics
}
