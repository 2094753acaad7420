// Package metrics provides Prometheus metrics for the finalization engine.
package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	blocksTotal       *prometheus.CounterVec   // 알고리즘별 확정 블록 수
	failuresTotal     *prometheus.CounterVec   // 알고리즘별 합의 실패 수
	miningDuration    *prometheus.HistogramVec // 블록 확정 소요 시간
	energyConsumed    prometheus.Counter       // 누적 에너지 비용
	chainHeight       prometheus.Gauge         // 현재 체인 높이
	algorithmSwitches prometheus.Counter       // 알고리즘 교체 횟수
	validationsTotal  *prometheus.CounterVec   // 결과별 체인 검증 횟수
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		blocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Total number of blocks finalized, by algorithm",
		}, []string{"algorithm"}),

		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_failures_total",
			Help:      "Total number of failed finalization attempts, by algorithm",
		}, []string{"algorithm"}),

		miningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mining_duration_seconds",
			Help:      "Time spent finalizing a block in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18), // 0.1ms to ~13s
		}, []string{"algorithm"}),

		energyConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_consumed_total",
			Help:      "Accumulated abstract energy cost of finalized blocks",
		}),

		chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_height",
			Help:      "Number of blocks in the chain, genesis included",
		}),

		algorithmSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "algorithm_switches_total",
			Help:      "Total number of algorithm switches",
		}),

		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total number of whole-chain validations, by result",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.blocksTotal,
		m.failuresTotal,
		m.miningDuration,
		m.energyConsumed,
		m.chainHeight,
		m.algorithmSwitches,
		m.validationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveBlock records a finalized block.
func (m *Metrics) ObserveBlock(algorithm string, elapsed time.Duration, energy float64) {
	m.blocksTotal.WithLabelValues(algorithm).Inc()
	m.miningDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	if energy > 0 {
		m.energyConsumed.Add(energy)
	}
}

// IncrementFailures increments the consensus failure counter.
func (m *Metrics) IncrementFailures(algorithm string) {
	m.failuresTotal.WithLabelValues(algorithm).Inc()
}

// SetChainHeight sets the current chain height.
func (m *Metrics) SetChainHeight(height int) {
	m.chainHeight.Set(float64(height))
}

// IncrementSwitches increments the algorithm switch counter.
func (m *Metrics) IncrementSwitches() {
	m.algorithmSwitches.Inc()
}

// ObserveValidation records a whole-chain validation result.
func (m *Metrics) ObserveValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}

// Server provides 프로메테우스 매트릭을 위한 HTTP 서버를 제공
type Server struct {
	addr     string
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new metrics HTTP server exposing gatherer on /metrics.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// 리스너가 닫힌 경우 외에는 복구 불가
			panic(err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	return s.server.Close()
}
