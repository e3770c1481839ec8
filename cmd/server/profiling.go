package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/Ko-stant/tilewall/internal/monitor"
	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/registry"
)

// ProfilingConfig holds configuration for profiling
type ProfilingConfig struct {
	Enabled bool
	Port    string
}

// StartProfiling starts the pprof server on its own port
func StartProfiling(config ProfilingConfig) {
	if !config.Enabled {
		return
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	go func() {
		log.Printf("Starting pprof server on :%s", config.Port)
		log.Printf("CPU profile: http://localhost:%s/debug/pprof/profile", config.Port)
		log.Printf("Goroutine profile: http://localhost:%s/debug/pprof/goroutine", config.Port)

		if err := http.ListenAndServe(":"+config.Port, nil); err != nil {
			log.Printf("pprof server failed: %v", err)
		}
	}()
}

// GetProfilingConfigFromEnv creates profiling config from environment variables
func GetProfilingConfigFromEnv() ProfilingConfig {
	port := os.Getenv("PPROF_PORT")
	if port == "" {
		port = "42069"
	}
	return ProfilingConfig{
		Enabled: os.Getenv("ENABLE_PROFILING") == "true",
		Port:    port,
	}
}

// WallMetrics tracks display client churn and process resources.
type WallMetrics struct {
	mu              sync.Mutex
	clientsJoined   int64
	clientsLost     int64
	peakClients     int64
	peakGoroutines  int
	peakMemoryUsage uint64
	startTime       time.Time
}

func NewWallMetrics() *WallMetrics {
	return &WallMetrics{startTime: time.Now()}
}

// Observe counts registry lifecycle events.
func (wm *WallMetrics) Observe(ev registry.Event) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	switch ev.(type) {
	case registry.NewClient:
		wm.clientsJoined++
	case registry.LostClient:
		wm.clientsLost++
	}
	if live := wm.clientsJoined - wm.clientsLost; live > wm.peakClients {
		wm.peakClients = live
	}
}

// UpdateSystemMetrics samples goroutine count and heap size.
func (wm *WallMetrics) UpdateSystemMetrics() {
	goroutines := runtime.NumGoroutine()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	wm.mu.Lock()
	defer wm.mu.Unlock()
	if goroutines > wm.peakGoroutines {
		wm.peakGoroutines = goroutines
	}
	if m.Alloc > wm.peakMemoryUsage {
		wm.peakMemoryUsage = m.Alloc
	}
}

// Snapshot returns the metrics as a monitor update.
func (wm *WallMetrics) Snapshot() protocol.MonitorUpdate {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return protocol.MonitorUpdate{
		"uptime":          time.Since(wm.startTime).Round(time.Second).String(),
		"clientsJoined":   wm.clientsJoined,
		"clientsLost":     wm.clientsLost,
		"clients":         wm.clientsJoined - wm.clientsLost,
		"peakClients":     wm.peakClients,
		"peakGoroutines":  wm.peakGoroutines,
		"peakMemoryBytes": wm.peakMemoryUsage,
	}
}

// LogMetrics logs current metrics
func (wm *WallMetrics) LogMetrics() {
	s := wm.Snapshot()
	log.Printf("=== Wall Metrics ===")
	log.Printf("Uptime: %v", s["uptime"])
	log.Printf("Clients: %v (joined %v, lost %v, peak %v)", s["clients"], s["clientsJoined"], s["clientsLost"], s["peakClients"])
	log.Printf("Peak goroutines: %v", s["peakGoroutines"])
	log.Printf("Peak memory usage: %v bytes", s["peakMemoryBytes"])
}

// StartMetricsReporting periodically logs metrics and pushes them to the
// monitor.
func StartMetricsReporting(metrics *WallMetrics, interval time.Duration, mon *monitor.Monitor) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			metrics.UpdateSystemMetrics()
			metrics.LogMetrics()
			mon.Update(metrics.Snapshot())
		}
	}()
}
