package pipeline

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/pdfqa/internal/chunker"
	"github.com/dgallion1/pdfqa/internal/document"
	"github.com/dgallion1/pdfqa/internal/metrics"
	"github.com/dgallion1/pdfqa/internal/parser"
)

// worker extracts and chunks one document at a time.
type worker struct {
	store     *document.Store
	extractor parser.Extractor
	chunkCfg  chunker.Config
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func newWorker(o *Orchestrator, log *slog.Logger) *worker {
	return &worker{
		store:     o.store,
		extractor: o.extractor,
		chunkCfg:  o.chunkCfg,
		metrics:   o.metrics,
		log:       log,
	}
}

// process runs extraction for t. Every outcome is written to the store;
// nothing is returned. Writes for a superseded document are no-ops.
func (w *worker) process(ctx context.Context, t task) {
	log := w.log.With("document_id", t.documentID)

	data, ok := w.store.MarkExtracting(t.documentID)
	if !ok {
		log.Info("skipping superseded upload")
		w.metrics.ObserveSuperseded()
		return
	}

	start := time.Now()
	w.metrics.StartIngest(start.Sub(t.enqueuedAt))
	outcome, chunks := w.run(ctx, log, t.documentID, data)
	elapsed := time.Since(start)
	w.metrics.FinishIngest(outcome, chunks, elapsed)

	log.Info("ingest finished", "outcome", outcome, "chunks", chunks, "duration_ms", elapsed.Milliseconds())
}

func (w *worker) run(ctx context.Context, log *slog.Logger, id string, data []byte) (outcome string, chunks int) {
	// Phase 1: Extract
	res, err := w.extractor.Extract(ctx, data)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return w.fail(id, err.Error()), 0
	}

	// Phase 2: Chunk
	out, err := chunker.Chunk(res.Text, w.chunkCfg)
	if err != nil {
		log.Error("chunking failed", "error", err)
		return w.fail(id, err.Error()), 0
	}

	if res.Text == "" {
		log.Warn("no text extracted", "pages", res.PageCount)
	} else {
		log.Info("extracted document",
			"engine", res.Engine,
			"pages", res.PageCount,
			"chars", utf8.RuneCountInString(res.Text),
			"estimated_tokens", chunker.EstimateTokens(res.Text),
			"chunks", len(out),
		)
	}

	// Phase 3: Publish
	if !w.store.Complete(id, document.Extraction{Text: res.Text, Chunks: out, PageCount: res.PageCount}) {
		// Fail only lands if the result was rejected rather than superseded.
		return w.fail(id, "extraction result rejected"), 0
	}
	return "ready", len(out)
}

func (w *worker) fail(id, reason string) string {
	if !w.store.Fail(id, reason) {
		return "superseded"
	}
	return "failed"
}
