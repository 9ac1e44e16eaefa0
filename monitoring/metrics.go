package monitoring

import (
	"math"
	"runtime"
	"sync"
	"time"
)

// Outcome labels for prediction counters.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Mean returns the average latency, or zero with no samples.
func (l LatencyStats) Mean() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Predictions map[string]int64       `json:"predictions"`
	Latency     LatencyStats           `json:"latency"`
	MeanLatency string                 `json:"mean_latency"`
	Uptime      string                 `json:"uptime"`
	System      map[string]interface{} `json:"system"`
}

// Metrics 预测服务指标收集器
type Metrics struct {
	metricsLock sync.RWMutex

	outcomes map[string]int64
	latency  LatencyStats

	startTime time.Time
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:  make(map[string]int64),
		latency:   LatencyStats{Min: time.Duration(math.MaxInt64)},
		startTime: time.Now(),
	}
}

// OutcomeFor maps an HTTP status to an outcome label.
func OutcomeFor(status int) string {
	switch {
	case status >= 500:
		return OutcomeServerError
	case status >= 400:
		return OutcomeClientError
	default:
		return OutcomeOK
	}
}

// RecordPrediction 记录一次预测请求
func (m *Metrics) RecordPrediction(outcome string, elapsed time.Duration) {
	m.metricsLock.Lock()
	defer m.metricsLock.Unlock()

	m.outcomes[outcome]++
	m.latency.Count++
	m.latency.Total += elapsed
	if elapsed < m.latency.Min {
		m.latency.Min = elapsed
	}
	if elapsed > m.latency.Max {
		m.latency.Max = elapsed
	}
}

// GetUptime 获取运行时间
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot 获取指标快照
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.metricsLock.RLock()
	outcomes := make(map[string]int64, 3)
	for _, k := range []string{OutcomeOK, OutcomeClientError, OutcomeServerError} {
		outcomes[k] = m.outcomes[k]
	}
	latency := m.latency
	m.metricsLock.RUnlock()

	if latency.Count == 0 {
		latency.Min = 0
	}
	return MetricsSnapshot{
		Predictions: outcomes,
		Latency:     latency,
		MeanLatency: latency.Mean().String(),
		Uptime:      m.GetUptime().Round(time.Second).String(),
		System:      systemStats(),
	}
}

// systemStats 获取系统统计
func systemStats() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
		"memory": map[string]interface{}{
			"alloc":      mem.Alloc,
			"sys":        mem.Sys,
			"heap_alloc": mem.HeapAlloc,
			"heap_inuse": mem.HeapInuse,
			"gc_count":   mem.NumGC,
		},
	}
}
