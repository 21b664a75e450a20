package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/pdfqa/internal/chunker"
	"github.com/dgallion1/pdfqa/internal/document"
	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/llm"
	"github.com/dgallion1/pdfqa/internal/retrieval"
)

// NoTextAnswer is returned, without calling the LLM, for a ready document
// that has no extractable text.
const NoTextAnswer = "The PDF appears to be empty or contains no extractable text. Please upload a text-based PDF."

// Answer is the result of a question against the active document.
type Answer struct {
	Text          string
	DocumentID    string
	Strategy      retrieval.Strategy
	ChunkIndexes  []int
	ContextChars  int
	EmptyDocument bool
}

// Answer answers question from the active document. It never holds the
// store lock while waiting on the LLM.
func (o *Orchestrator) Answer(ctx context.Context, question string) (Answer, error) {
	ans, err := o.answer(ctx, question)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = domain.Code(err)
	case ans.EmptyDocument:
		outcome = "empty_document"
	}
	o.metrics.ObserveAnswer(outcome, string(ans.Strategy), ans.ContextChars)
	return ans, err
}

func (o *Orchestrator) answer(ctx context.Context, question string) (Answer, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	doc := o.store.Snapshot()
	switch doc.State {
	case document.StateReady:
	case document.StateFailed:
		return Answer{}, &domain.IngestionFailedError{DocumentID: doc.ID, Reason: doc.Reason}
	case document.StateEmpty:
		return Answer{}, fmt.Errorf("%w: no PDF has been uploaded", domain.ErrNotReady)
	default:
		return Answer{}, fmt.Errorf("%w: document %s is %s", domain.ErrNotReady, doc.ID, doc.State)
	}

	if doc.EmptyText {
		return Answer{Text: NoTextAnswer, DocumentID: doc.ID, Strategy: retrieval.StrategyNone, EmptyDocument: true}, nil
	}

	sel := o.selector.Select(q, doc.Text, doc.Chunks, o.contextBudget)
	log := o.log.With("document_id", doc.ID)
	log.Info("context selected",
		"strategy", sel.Strategy,
		"chunks", sel.ChunkIndexes,
		"context_chars", utf8.RuneCountInString(sel.Context),
		"estimated_tokens", chunker.EstimateTokens(sel.Context),
	)

	callCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	start := time.Now()
	text, err := o.gen.GenerateAnswer(callCtx, llm.SystemPrompt, q, sel.Context)
	if err != nil {
		return Answer{}, asAnswerError(callCtx, err)
	}
	log.Info("answer generated", "duration_ms", time.Since(start).Milliseconds())

	return Answer{
		Text:         text,
		DocumentID:   doc.ID,
		Strategy:     sel.Strategy,
		ChunkIndexes: sel.ChunkIndexes,
		ContextChars: utf8.RuneCountInString(sel.Context),
	}, nil
}

// asAnswerError makes sure a generator failure carries the answer-generation
// kind, marking it as a timeout when the call deadline passed.
func asAnswerError(ctx context.Context, err error) error {
	var ae *domain.AnswerGenerationError
	if errors.As(err, &ae) {
		return err
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &domain.AnswerGenerationError{Retryable: timeout, Timeout: timeout, Cause: err}
}

// StatusOf builds the status view of doc.
func StatusOf(doc document.Document) document.Status {
	return document.Status{
		DocumentID:      doc.ID,
		State:           doc.State,
		Reason:          doc.Reason,
		Filename:        doc.Filename,
		SizeBytes:       doc.SizeBytes,
		SHA256:          doc.SHA256,
		PageCount:       doc.PageCount,
		TextChars:       utf8.RuneCountInString(doc.Text),
		TotalChunks:     len(doc.Chunks),
		EstimatedTokens: chunker.EstimateTokens(doc.Text),
		EmptyText:       doc.EmptyText,
		UploadedAt:      doc.UploadedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}
