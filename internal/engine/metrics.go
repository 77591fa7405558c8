package engine

import (
	"sync"
	"time"
)

// metricCap bounds the retained per-query records; the oldest are dropped.
const metricCap = 100

type metric struct {
	Timestamp      time.Time
	QuestionLength int
	Method         string
	Success        bool
	Duration       time.Duration
}

type metricLog struct {
	mu      sync.Mutex
	entries []metric
	total   int
	success int
}

func newMetricLog() *metricLog {
	return &metricLog{}
}

func (l *metricLog) record(question, method string, success bool, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if success {
		l.success++
	}
	l.entries = append(l.entries, metric{
		Timestamp:      time.Now(),
		QuestionLength: len(question),
		Method:         method,
		Success:        success,
		Duration:       d,
	})
	if len(l.entries) > metricCap {
		l.entries = l.entries[len(l.entries)-metricCap:]
	}
}

// Summary aggregates the engine's performance counters.
type Summary struct {
	TotalQueries       int            `json:"total_queries"`
	SuccessRate        float64        `json:"success_rate"`
	AverageDurationSec float64        `json:"average_duration_seconds"`
	MethodDistribution map[string]int `json:"method_distribution"`
}

// Summary reports totals over the engine's lifetime and averages over the
// retained window.
func (e *Engine) Summary() Summary {
	return e.metrics.summary()
}

func (l *metricLog) summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		TotalQueries:       l.total,
		MethodDistribution: make(map[string]int),
	}
	if l.total > 0 {
		s.SuccessRate = float64(l.success) / float64(l.total)
	}
	if len(l.entries) == 0 {
		return s
	}

	var sum time.Duration
	for _, m := range l.entries {
		sum += m.Duration
		s.MethodDistribution[m.Method]++
	}
	s.AverageDurationSec = sum.Seconds() / float64(len(l.entries))
	return s
}
