package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	builder  *Builder
	exporter *Exporter // nil when export is disabled
	stats    *BuildStats
	log      *slog.Logger
}

func NewWorker(builder *Builder, exporter *Exporter, stats *BuildStats, log *slog.Logger) *Worker {
	return &Worker{
		builder:  builder,
		exporter: exporter,
		stats:    stats,
		log:      log,
	}
}

// Process runs enrichment, the build and the export for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	defer job.release()

	doc := job.Document()
	if doc == nil {
		job.AddError("job has no document")
		w.finish(job, StatusFailed, "building")
		return
	}
	frags := doc.Fragments

	// Phase 1: fill text and fonts from the PDF, if one came with the job.
	if pdf := job.PDFData(); len(pdf) > 0 {
		job.SetStatus(StatusEnriching, "enriching")
		enriched, err := parser.EnrichFromPDF(bytes.NewReader(pdf), int64(len(pdf)), frags)
		if err != nil {
			log.Warn("pdf enrichment failed, building without it", "error", err)
			job.AddError(fmt.Sprintf("enrich: %s", err))
		} else {
			frags = enriched
		}
	}

	// Phase 2: build.
	job.SetStatus(StatusBuilding, "building")
	res := w.builder.Build(Input{FileID: doc.FileID, Fragments: frags, TOC: doc.TOC})
	w.stats.Record(res)
	job.SetBuilt(res)
	for _, reason := range res.Dropped {
		job.AddError(reason)
	}
	if len(res.Fragments) == 0 {
		log.Warn("no usable fragments")
		job.AddError("no usable fragments")
		w.finish(job, StatusFailed, "building")
		return
	}

	// Phase 3: export.
	if w.exporter != nil {
		job.SetStatus(StatusExporting, "exporting")
		stats, err := w.exporter.Export(ctx, job.DocID, job.ContentHash, res)
		job.AddExported(stats.Nodes, stats.Links)
		if err != nil {
			log.Error("export failed", "error", err)
			metrics.ExportFailed()
			job.AddError(fmt.Sprintf("export: %s", err))
			w.finish(job, StatusFailed, "exporting")
			return
		}
	}

	if job.HasErrors() {
		w.finish(job, StatusPartial, "done")
	} else {
		w.finish(job, StatusCompleted, "done")
	}
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	metrics.JobFinished(string(status))
}
