package metrics

import (
	"os"
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and an optional Prometheus-backed implementation enabled via env.

// Recorder defines the metrics surface used across the engine.
type Recorder interface {
	IncAnalysis(op string, success bool)
	ObserveAnalysisSeconds(op string, success bool, seconds float64)
	IncSynthesis(strategy string, fallback bool)
	IncLayout(algorithm string)
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncAnalysis(string, bool)                     {}
func (n *noopRecorder) ObserveAnalysisSeconds(string, bool, float64) {}
func (n *noopRecorder) IncSynthesis(string, bool)                    {}
func (n *noopRecorder) IncLayout(string)                             {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	recorder = r
}

// TimeAnalysis is a helper to time analysis operations.
func TimeAnalysis(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncAnalysis(op, success)
		Default().ObserveAnalysisSeconds(op, success, dur)
	}
}

// InitFromEnv enables the Prometheus exporter if METRICS_PROMETHEUS is set.
// It starts a small HTTP server on METRICS_ADDR (default :9090) with
// endpoints /metrics and /healthz.
func InitFromEnv() {
	if os.Getenv("METRICS_PROMETHEUS") == "" {
		return
	}
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	// If the exporter fails to install, keep the no-op recorder.
	_ = enablePrometheus(addr)
}
