//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	analysisTotal   *prom.CounterVec
	analysisSeconds *prom.HistogramVec
	synthesisTotal  *prom.CounterVec
	layoutTotal     *prom.CounterVec
}

func (p *promRecorder) IncAnalysis(op string, success bool) {
	p.analysisTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveAnalysisSeconds(op string, success bool, seconds float64) {
	p.analysisSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncSynthesis(strategy string, fallback bool) {
	p.synthesisTotal.WithLabelValues(strategy, fmt.Sprintf("%t", fallback)).Inc()
}

func (p *promRecorder) IncLayout(algorithm string) {
	p.layoutTotal.WithLabelValues(algorithm).Inc()
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := &promRecorder{
		analysisTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "relationship_analysis_total",
			Help: "Total number of relationship analysis operations",
		}, []string{"op", "success"}),
		analysisSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "relationship_analysis_seconds",
			Help:    "Relationship analysis duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		synthesisTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "synthesis_total",
			Help: "Total number of synthesis calls, labeled by fallback use",
		}, []string{"strategy", "fallback"}),
		layoutTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "graph_layout_total",
			Help: "Total number of graph layout operations",
		}, []string{"algorithm"}),
	}

	registry.MustRegister(p.analysisTotal, p.analysisSeconds, p.synthesisTotal, p.layoutTotal)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
