package pipeline

import (
	"sort"
	"sync"
	"time"
)

// Outcome summarizes one segmented document for the rolling stats.
type Outcome struct {
	Kind     string
	Source   string // structure_source of the first chapter, "none" when empty
	Fallback bool
	Duration time.Duration
	Chapters int
	Segments int
}

type outcomeSample struct {
	at time.Time
	Outcome
}

// Distribution summarizes a set of values.
type Distribution struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// KindStats aggregates documents of one kind.
type KindStats struct {
	Documents   int     `json:"documents"`
	Fallbacks   int     `json:"fallbacks"`
	AvgMs       float64 `json:"avg_ms"`
	P95Ms       float64 `json:"p95_ms"`
	AvgSegments float64 `json:"avg_segments"`
}

// StatsSnapshot is a point-in-time view of recent segmentation outcomes.
type StatsSnapshot struct {
	Documents           int                  `json:"documents"`
	LatencyMs           Distribution         `json:"latency_ms"`
	SegmentsPerDocument Distribution         `json:"segments_per_document"`
	ChaptersPerDocument Distribution         `json:"chapters_per_document"`
	FallbackRate        float64              `json:"fallback_rate"`
	EmptyDocuments      int                  `json:"empty_documents"`
	ByKind              map[string]KindStats `json:"by_kind"`
	BySource            map[string]int       `json:"by_source"`
	WindowSeconds       float64              `json:"window_seconds"`
}

// SegmentationStats keeps the outcomes of recent documents within a rolling
// window. Failed documents are not recorded.
type SegmentationStats struct {
	mu      sync.Mutex
	samples []outcomeSample
	maxAge  time.Duration
}

func NewSegmentationStats(maxAge time.Duration) *SegmentationStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &SegmentationStats{
		samples: make([]outcomeSample, 0, 256),
		maxAge:  maxAge,
	}
}

func (s *SegmentationStats) Record(o Outcome) {
	o.Duration = max(o.Duration, 0)
	if o.Source == "" {
		o.Source = "none"
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, outcomeSample{at: now, Outcome: o})
}

func (s *SegmentationStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	samples := s.pruneLocked(now)
	outcomes := make([]Outcome, len(samples))
	for i, sm := range samples {
		outcomes[i] = sm.Outcome
	}
	s.mu.Unlock()

	snap := StatsSnapshot{
		Documents:     len(outcomes),
		ByKind:        map[string]KindStats{},
		BySource:      map[string]int{},
		WindowSeconds: s.maxAge.Seconds(),
	}
	if len(outcomes) == 0 {
		return snap
	}

	var latency, segments, chapters []float64
	fallbacks := 0
	kindLatency := map[string][]float64{}
	kindSegments := map[string]int{}
	for _, o := range outcomes {
		ms := float64(o.Duration.Milliseconds())
		latency = append(latency, ms)
		segments = append(segments, float64(o.Segments))
		chapters = append(chapters, float64(o.Chapters))
		if o.Fallback {
			fallbacks++
		}
		if o.Segments == 0 {
			snap.EmptyDocuments++
		}
		snap.BySource[o.Source]++

		ks := snap.ByKind[o.Kind]
		ks.Documents++
		if o.Fallback {
			ks.Fallbacks++
		}
		snap.ByKind[o.Kind] = ks
		kindLatency[o.Kind] = append(kindLatency[o.Kind], ms)
		kindSegments[o.Kind] += o.Segments
	}

	for kind, ks := range snap.ByKind {
		d := distribution(kindLatency[kind])
		ks.AvgMs = d.Avg
		ks.P95Ms = d.P95
		ks.AvgSegments = float64(kindSegments[kind]) / float64(ks.Documents)
		snap.ByKind[kind] = ks
	}
	snap.LatencyMs = distribution(latency)
	snap.SegmentsPerDocument = distribution(segments)
	snap.ChaptersPerDocument = distribution(chapters)
	snap.FallbackRate = float64(fallbacks) / float64(len(outcomes))
	return snap
}

func (s *SegmentationStats) pruneLocked(now time.Time) []outcomeSample {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
	return s.samples
}

func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Distribution{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
