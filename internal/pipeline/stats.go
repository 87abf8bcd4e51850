package pipeline

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// build is one finished build as seen by the stats window.
type build struct {
	at        time.Time
	strategy  string
	ms        float64
	fragments int
	chunks    int
}

// StatsSnapshot aggregates the builds inside the window. Percentiles are
// nearest-rank over the exact samples.
type StatsSnapshot struct {
	Count      int                      `json:"count"`
	MinMs      float64                  `json:"min_ms"`
	MaxMs      float64                  `json:"max_ms"`
	AvgMs      float64                  `json:"avg_ms"`
	P50Ms      float64                  `json:"p50_ms"`
	P95Ms      float64                  `json:"p95_ms"`
	P99Ms      float64                  `json:"p99_ms"`
	Fragments  int                      `json:"fragments"`
	Chunks     int                      `json:"chunks"`
	ByStrategy map[string]StatsSnapshot `json:"by_strategy,omitempty"`
}

// BuildStats keeps the builds of the last maxAge for /api/stats/builds.
// The Prometheus histogram covers the process lifetime in fixed buckets;
// this window answers "how slow were recent builds, per strategy".
type BuildStats struct {
	mu     sync.Mutex
	builds []build
	maxAge time.Duration
}

func NewBuildStats(maxAge time.Duration) *BuildStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &BuildStats{maxAge: maxAge}
}

// Record adds a finished build. Negative durations count as zero.
func (s *BuildStats) Record(res *Result) {
	b := build{
		at:        time.Now(),
		strategy:  res.Strategy,
		ms:        float64(max(0, res.Duration.Milliseconds())),
		fragments: len(res.Fragments),
		chunks:    len(res.Chunks),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(b.at)
	s.builds = append(s.builds, b)
}

func (s *BuildStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expire(time.Now())
	builds := slices.Clone(s.builds)
	s.mu.Unlock()

	snap := summarize(builds)
	if snap.Count == 0 {
		return snap
	}
	groups := make(map[string][]build)
	for _, b := range builds {
		groups[b.strategy] = append(groups[b.strategy], b)
	}
	snap.ByStrategy = make(map[string]StatsSnapshot, len(groups))
	for name, g := range groups {
		snap.ByStrategy[name] = summarize(g)
	}
	return snap
}

func (s *BuildStats) expire(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	i := 0
	for i < len(s.builds) && s.builds[i].at.Before(cutoff) {
		i++
	}
	s.builds = s.builds[i:]
}

func summarize(builds []build) StatsSnapshot {
	if len(builds) == 0 {
		return StatsSnapshot{}
	}
	ms := make([]float64, len(builds))
	var snap StatsSnapshot
	for i, b := range builds {
		ms[i] = b.ms
		snap.Fragments += b.fragments
		snap.Chunks += b.chunks
	}
	slices.Sort(ms)

	snap.Count = len(ms)
	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = stat.Mean(ms, nil)
	snap.P50Ms = stat.Quantile(0.50, stat.Empirical, ms, nil)
	snap.P95Ms = stat.Quantile(0.95, stat.Empirical, ms, nil)
	snap.P99Ms = stat.Quantile(0.99, stat.Empirical, ms, nil)
	return snap
}
