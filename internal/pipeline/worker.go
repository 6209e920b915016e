package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/parser"
	"github.com/dgallion1/docseg/internal/segmenter"
)

// Worker processes a single document job.
type Worker struct {
	log     *slog.Logger
	metrics *Metrics
	stats   *SegmentationStats
}

func NewWorker(log *slog.Logger, metrics *Metrics, stats *SegmentationStats) *Worker {
	return &Worker{
		log:     log,
		metrics: metrics,
		stats:   stats,
	}
}

// Process runs detection, structure extraction and segment synthesis for a
// job. The outcome is recorded on the job; Process never returns an error.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	w.metrics.JobsInFlight.Inc()
	defer w.metrics.JobsInFlight.Dec()

	if err := ctx.Err(); err != nil {
		job.AddError(fmt.Sprintf("cancelled: %s", err))
		job.SetStatus(StatusFailed, "cancelled")
		return
	}

	start := time.Now()
	data := job.FileData()
	// The upload is not needed once the job finishes.
	defer job.SetFileData(nil)

	// Phase 1: Detect
	job.SetStatus(StatusSegmenting, "detecting")
	doc, err := parser.DocumentFromFile(job.Filename, data)
	if err != nil {
		log.Error("unsupported document", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "detecting")
		w.fail("unknown", start, len(data))
		return
	}
	kind := doc.Kind()
	job.SetKind(kind)
	doc.Metadata["document_id"] = job.DocID
	doc.Metadata["content_hash"] = job.ContentHash
	if job.Title != "" {
		doc.Metadata["title"] = job.Title
	}

	seg, err := segmenter.New(job.Options, segmenter.WithLogger(log))
	if err != nil {
		log.Error("invalid segmentation options", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "configuring")
		w.fail(kind.String(), start, len(data))
		return
	}

	// Phase 2: Extract structure
	job.SetStatus(StatusSegmenting, "extracting structure")
	chapters, err := seg.Chapters(doc)
	if err != nil {
		log.Error("structure extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting structure")
		w.fail(kind.String(), start, len(data))
		return
	}
	outcome := Outcome{Kind: kind.String(), Chapters: doctree.Count(chapters)}
	if len(chapters) > 0 {
		outcome.Source = chapters[0].Source()
		if _, ok := chapters[0].Metadata[doctree.MetaFallbackFrom]; ok {
			outcome.Fallback = true
			w.metrics.RecordFallback(kind.String())
		}
	}

	// Phase 3: Synthesize segments
	job.SetStatus(StatusSegmenting, "synthesizing segments")
	segments, err := seg.SegmentChapters(chapters, doc.Metadata)
	if err != nil {
		log.Error("segmentation failed", "error", err)
		job.AddError(fmt.Sprintf("segment: %s", err))
		job.SetStatus(StatusFailed, "synthesizing segments")
		w.fail(kind.String(), start, len(data))
		return
	}

	elapsed := time.Since(start)
	job.SetResult(chapters, segments, elapsed)

	status := StatusCompleted
	if len(segments) == 0 {
		status = StatusEmpty
	}
	job.SetStatus(status, "done")
	outcome.Duration = elapsed
	outcome.Segments = len(segments)
	w.metrics.RecordDocument(outcome.Kind, status, elapsed, len(data), outcome.Segments)
	w.stats.Record(outcome)
	log.Info("segmentation complete",
		"kind", outcome.Kind, "source", outcome.Source, "chapters", outcome.Chapters,
		"segments", outcome.Segments, "duration_ms", elapsed.Milliseconds())
}

// fail records a failed document. Failures stay out of the rolling stats.
func (w *Worker) fail(kind string, start time.Time, size int) {
	w.metrics.RecordDocument(kind, StatusFailed, time.Since(start), size, 0)
}
