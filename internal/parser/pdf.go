package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/pdfqa/internal/domain"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageSeparator is written between pages so page order and offsets are
// stable regardless of per-page content.
const pageSeparator = "\n"

// PDFExtractor tries ledongthuc/pdf first, then pdfcpu content streams,
// then pdftotext if enabled.
type PDFExtractor struct {
	FallbackPdftotext bool
	log               *slog.Logger
}

func NewPDFExtractor(fallbackPdftotext bool, log *slog.Logger) *PDFExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &PDFExtractor{FallbackPdftotext: fallbackPdftotext, log: log}
}

func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty payload", domain.ErrExtraction)
	}

	res, err := extractLedongthuc(ctx, data)
	if err == nil {
		return normalize(res), nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	p.log.Warn("primary pdf engine failed, trying pdfcpu", "error", err)

	res, cpuErr := extractPdfcpu(ctx, data)
	if cpuErr == nil {
		return normalize(res), nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	if p.FallbackPdftotext {
		p.log.Warn("pdfcpu failed, trying pdftotext", "error", cpuErr)
		res, ptErr := extractPdftotext(ctx, data)
		if ptErr == nil {
			return normalize(res), nil
		}
		cpuErr = errors.Join(cpuErr, ptErr)
	}

	return Result{}, domain.WrapError(domain.ErrExtraction, "extract pdf text", errors.Join(err, cpuErr))
}

// normalize turns whitespace-only output into the empty string so callers
// can detect the no-text case with a plain comparison.
func normalize(res Result) Result {
	if strings.TrimSpace(res.Text) == "" {
		res.Text = ""
	}
	return res
}

func extractLedongthuc(ctx context.Context, data []byte) (res Result, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ledongthuc/pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("ledongthuc/pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		pages = append(pages, ledongthucPage(reader, i))
	}

	return Result{
		Text:      strings.Join(pages, pageSeparator),
		PageCount: numPages,
		Engine:    "ledongthuc",
	}, nil
}

// ledongthucPage returns the text of one page. A page that cannot be read
// contributes empty text rather than failing the document.
func ledongthucPage(reader *pdflib.Reader, n int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func extractPdfcpu(ctx context.Context, data []byte) (Result, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Result{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, 0, pctx.PageCount)
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		pages = append(pages, pdfcpuPage(pctx, pageNr))
	}

	return Result{
		Text:      strings.Join(pages, pageSeparator),
		PageCount: pctx.PageCount,
		Engine:    "pdfcpu",
	}, nil
}

func pdfcpuPage(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return TextFromContentStream(data)
}

func extractPdftotext(ctx context.Context, data []byte) (Result, error) {
	// pdftotext wants a path, so the payload goes to a temp file.
	tmp, err := os.CreateTemp("", "pdfqa-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return Result{}, fmt.Errorf("pdftotext: %w", err)
	}

	// pdftotext separates pages with form feeds.
	text := strings.TrimRight(string(out), "\f")
	pages := strings.Split(text, "\f")
	return Result{
		Text:      strings.Join(pages, pageSeparator),
		PageCount: len(pages),
		Engine:    "pdftotext",
	}, nil
}
