package pipeline

import (
	"testing"
	"time"
)

func TestSegmentationStats_LatencyPercentiles(t *testing.T) {
	stats := NewSegmentationStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(Outcome{Kind: "pdf", Source: "bookmarks", Duration: time.Duration(ms) * time.Millisecond, Segments: 1})
	}

	lat := stats.Snapshot().LatencyMs
	want := Distribution{Min: 100, Max: 500, Avg: 300, P50: 300, P95: 480, P99: 496}
	if lat != want {
		t.Fatalf("expected %+v, got %+v", want, lat)
	}
}

func TestSegmentationStats_GroupsByKindAndSource(t *testing.T) {
	stats := NewSegmentationStats(time.Hour)
	stats.Record(Outcome{Kind: "pdf", Source: "bookmarks", Duration: 40 * time.Millisecond, Chapters: 12, Segments: 10})
	stats.Record(Outcome{Kind: "pdf", Source: "statistical", Fallback: true, Duration: 20 * time.Millisecond, Chapters: 3, Segments: 4})
	stats.Record(Outcome{Kind: "text", Source: "statistical", Duration: 10 * time.Millisecond, Chapters: 2, Segments: 1})
	stats.Record(Outcome{Kind: "text", Duration: 5 * time.Millisecond})

	snap := stats.Snapshot()
	if snap.Documents != 4 || snap.EmptyDocuments != 1 {
		t.Fatalf("expected 4 documents with 1 empty, got %d/%d", snap.Documents, snap.EmptyDocuments)
	}
	if snap.FallbackRate != 0.25 {
		t.Errorf("expected fallback rate 0.25, got %v", snap.FallbackRate)
	}

	pdf := snap.ByKind["pdf"]
	if pdf.Documents != 2 || pdf.Fallbacks != 1 || pdf.AvgMs != 30 || pdf.AvgSegments != 7 {
		t.Errorf("unexpected pdf stats %+v", pdf)
	}
	if text := snap.ByKind["text"]; text.Documents != 2 || text.AvgSegments != 0.5 {
		t.Errorf("unexpected text stats %+v", text)
	}

	wantSources := map[string]int{"bookmarks": 1, "statistical": 2, "none": 1}
	for src, n := range wantSources {
		if snap.BySource[src] != n {
			t.Errorf("source %q: expected %d, got %d", src, n, snap.BySource[src])
		}
	}

	if snap.SegmentsPerDocument.Max != 10 || snap.SegmentsPerDocument.Avg != 3.75 {
		t.Errorf("unexpected segment distribution %+v", snap.SegmentsPerDocument)
	}
	if snap.ChaptersPerDocument.P50 != 2.5 {
		t.Errorf("expected median 2.5 chapters, got %v", snap.ChaptersPerDocument.P50)
	}
}

func TestSegmentationStats_PrunesExpiredSamples(t *testing.T) {
	stats := NewSegmentationStats(10 * time.Millisecond)
	stats.Record(Outcome{Kind: "markdown", Duration: 100 * time.Millisecond})
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Documents != 0 || len(snap.ByKind) != 0 {
		t.Fatalf("expected no documents after prune, got %+v", snap)
	}

	stats.Record(Outcome{Kind: "markdown", Duration: 200 * time.Millisecond})
	snap = stats.Snapshot()
	if snap.Documents != 1 {
		t.Fatalf("expected 1 fresh document, got %d", snap.Documents)
	}
	if snap.LatencyMs.Min != 200 || snap.LatencyMs.Max != 200 {
		t.Fatalf("expected min=max=200, got %+v", snap.LatencyMs)
	}
}

func TestSegmentationStats_ClampsNegativeDuration(t *testing.T) {
	stats := NewSegmentationStats(time.Hour)
	stats.Record(Outcome{Kind: "text", Duration: -10 * time.Millisecond})
	snap := stats.Snapshot()
	if snap.Documents != 1 || snap.LatencyMs.Max != 0 {
		t.Fatalf("expected one sample clamped to 0, got %+v", snap.LatencyMs)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	tests := []struct {
		pct, want float64
	}{
		{0, 1},
		{50, 2.5},
		{100, 4},
		{-5, 1},
	}
	for _, tt := range tests {
		if got := percentile(values, tt.pct); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("expected 0 for no values")
	}
}
