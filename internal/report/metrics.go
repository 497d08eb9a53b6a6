package report

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Timings collects per-source durations and record counts for one report
// generation. Sources record concurrently during the fan-out, so access is
// mutex-guarded.
type Timings struct {
	mu        sync.Mutex
	startedAt time.Time
	durations map[string]time.Duration
	counts    map[string]int
}

// NewTimings starts a collector for one generation request.
func NewTimings() *Timings {
	return &Timings{
		startedAt: time.Now(),
		durations: make(map[string]time.Duration),
		counts:    make(map[string]int),
	}
}

// Track starts timing a named source; call the returned func when it finishes.
func (t *Timings) Track(source string) func() {
	start := time.Now()
	return func() {
		t.mu.Lock()
		t.durations[source] += time.Since(start)
		t.mu.Unlock()
	}
}

// Count records how many records a source yielded.
func (t *Timings) Count(source string, n int) {
	t.mu.Lock()
	t.counts[source] = n
	t.mu.Unlock()
}

// Log emits one structured summary line for the whole generation.
func (t *Timings) Log(year int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sources := make([]string, 0, len(t.durations))
	for s := range t.durations {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	fields := []zap.Field{
		zap.Int("year", year),
		zap.Duration("total", time.Since(t.startedAt)),
	}
	for _, s := range sources {
		fields = append(fields, zap.Duration(s+"_ms", t.durations[s]))
		if n, ok := t.counts[s]; ok {
			fields = append(fields, zap.Int(s+"_records", n))
		}
	}
	zap.L().Info("report generation timings", fields...)
}
