package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/pdfqa/internal/chunker"
	"github.com/dgallion1/pdfqa/internal/config"
	"github.com/dgallion1/pdfqa/internal/document"
	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/llm"
	"github.com/dgallion1/pdfqa/internal/metrics"
	"github.com/dgallion1/pdfqa/internal/parser"
	"github.com/dgallion1/pdfqa/internal/retrieval"
)

// task asks a worker to extract one uploaded document.
type task struct {
	documentID string
	enqueuedAt time.Time
}

// Deps are the collaborators of an Orchestrator. Metrics may be nil.
type Deps struct {
	Store     *document.Store
	Extractor parser.Extractor
	Selector  retrieval.Selector
	Generator llm.Generator
	Metrics   *metrics.Metrics
}

// Orchestrator runs ingestion on a worker pool and answers questions
// against the active document.
type Orchestrator struct {
	store     *document.Store
	extractor parser.Extractor
	selector  retrieval.Selector
	gen       llm.Generator
	metrics   *metrics.Metrics
	log       *slog.Logger

	chunkCfg       chunker.Config
	contextBudget  int
	maxUploadBytes int64
	llmTimeout     time.Duration
	workerCount    int

	ingestMu sync.Mutex // serializes BeginUpload with the queue handoff
	queue    chan task
	stopped  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if deps.Selector == nil {
		deps.Selector = retrieval.NewLexicalSelector()
	}
	return &Orchestrator{
		store:          deps.Store,
		extractor:      deps.Extractor,
		selector:       deps.Selector,
		gen:            deps.Generator,
		metrics:        deps.Metrics,
		log:            log,
		chunkCfg:       cfg.Chunking(),
		contextBudget:  cfg.ContextBudget,
		maxUploadBytes: cfg.MaxUploadBytes,
		llmTimeout:     cfg.LLMTimeout,
		workerCount:    max(cfg.WorkerCount, 1),
		queue:          make(chan task, max(cfg.MaxQueueSize, 1)),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.workerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := newWorker(o, o.log.With("worker", i))
			for {
				select {
				case <-workerCtx.Done():
					return
				case t := <-o.queue:
					w.process(workerCtx, t)
				}
			}
		}()
	}
}

// Stop cancels in-flight extraction and waits for the workers to exit.
// Queued uploads are left in the uploading state.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Ingest accepts a new upload, supersedes the active document and queues
// extraction. Oversized or non-PDF uploads leave the store untouched.
// Queued tasks of superseded uploads are dropped, so the queue only ever
// carries the active document.
func (o *Orchestrator) Ingest(filename string, data []byte) (document.Handle, error) {
	if o.stopped.Load() {
		return document.Handle{}, domain.WrapError(domain.ErrStopped, "ingest", errors.New("shutting down"))
	}
	if err := parser.CheckFormat(filename); err != nil {
		return document.Handle{}, err
	}

	o.ingestMu.Lock()
	defer o.ingestMu.Unlock()

	h, err := o.store.BeginUpload(filename, data, o.maxUploadBytes)
	if err != nil {
		return document.Handle{}, err
	}
	o.dropStale()

	select {
	case o.queue <- task{documentID: h.ID, enqueuedAt: time.Now()}:
	default:
		return o.rejectQueueFull(h)
	}

	o.log.Info("upload accepted", "document_id", h.ID, "filename", h.Filename, "size_bytes", h.SizeBytes)
	return h, nil
}

// rejectQueueFull fails the upload h because no queue slot was free.
func (o *Orchestrator) rejectQueueFull(h document.Handle) (document.Handle, error) {
	reason := "ingest queue full"
	o.store.Fail(h.ID, reason)
	h.State = document.StateFailed
	o.log.Warn("upload rejected", "document_id", h.ID, "reason", reason, "queue_size", cap(o.queue))
	return h, domain.WrapError(domain.ErrQueueFull, "ingest", fmt.Errorf("%d of %d slots taken", len(o.queue), cap(o.queue)))
}

// dropStale discards queued tasks. Callers hold ingestMu after BeginUpload,
// so every queued task belongs to a superseded upload.
func (o *Orchestrator) dropStale() {
	for {
		select {
		case t := <-o.queue:
			o.metrics.ObserveSuperseded()
			o.log.Info("dropped superseded upload", "document_id", t.documentID)
		default:
			return
		}
	}
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Status describes the active document.
func (o *Orchestrator) Status() document.Status {
	return StatusOf(o.store.Snapshot())
}
