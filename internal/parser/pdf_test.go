package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/pdfqa/internal/domain"
)

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"report.pdf", false},
		{"REPORT.PDF", false},
		{"notes.txt", true},
		{"archive.pdf.zip", true},
		{"noext", true},
	}
	for _, tt := range tests {
		err := CheckFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, domain.ErrUnsupportedFormat) {
			t.Errorf("CheckFormat(%q) expected ErrUnsupportedFormat, got %v", tt.name, err)
		}
	}
}

func TestPDFExtractor_GarbageIsExtractionError(t *testing.T) {
	p := NewPDFExtractor(false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := p.Extract(context.Background(), []byte("this is not a pdf at all"))
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestPDFExtractor_EmptyPayload(t *testing.T) {
	p := NewPDFExtractor(false, nil)
	_, err := p.Extract(context.Background(), nil)
	if !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestNormalize_WhitespaceOnlyBecomesEmpty(t *testing.T) {
	got := normalize(Result{Text: " \n\n\t ", PageCount: 3})
	if got.Text != "" {
		t.Errorf("expected empty text, got %q", got.Text)
	}
	if got.PageCount != 3 {
		t.Errorf("expected page count preserved, got %d", got.PageCount)
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(Hello, World!) Tj
0 -14 Td
[(Kern) -120 (ed text)] TJ
T*
(Escaped \(parens\) and \\ slash) Tj
(Octal\040space) '
ET`)
	want := "Hello, World!\nKerned text\nEscaped (parens) and \\ slash\nOctal space"
	if got := TextFromContentStream(stream); got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestTextFromContentStream_NestedParensAndComments(t *testing.T) {
	stream := []byte("BT\n% a comment (ignored) Tj\n(outer (inner) text) Tj\nET")
	if got := TextFromContentStream(stream); got != "outer (inner) text" {
		t.Errorf("got %q", got)
	}
}

func TestTextFromContentStream_NoText(t *testing.T) {
	stream := []byte("q 1 0 0 1 0 0 cm /Im0 Do Q")
	if got := TextFromContentStream(stream); got != "" {
		t.Errorf("expected no text, got %q", got)
	}
}

// buildPDF writes a minimal PDF with one page per entry and a valid xref
// table. An empty entry yields a page without a content stream. A non-zero
// startxref overrides the computed xref offset.
func buildPDF(pages []string, startxref int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	// 1 catalog, 2 pages, 3 font, then page and content pairs.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, text := range pages {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>"
		if text != "" {
			page += fmt.Sprintf(" /Contents %d 0 R", 5+2*i)
		}
		obj(page + " >>")
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	if startxref == 0 {
		startxref = xref
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, startxref)
	return buf.Bytes()
}

func assertPageOrder(t *testing.T, text string, want ...string) {
	t.Helper()
	last := -1
	for _, w := range want {
		i := strings.Index(text, w)
		if i < 0 {
			t.Fatalf("text %q missing %q", text, w)
		}
		if i < last {
			t.Fatalf("text %q has %q out of page order", text, w)
		}
		last = i
	}
}

func TestPDFExtractor_MultiPageKeepsPageOrder(t *testing.T) {
	data := buildPDF([]string{"First page alpha", "", "Third page gamma"}, 0)
	p := NewPDFExtractor(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := p.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Engine != "ledongthuc" {
		t.Errorf("expected ledongthuc engine, got %q", res.Engine)
	}
	if res.PageCount != 3 {
		t.Errorf("expected 3 pages, got %d", res.PageCount)
	}
	assertPageOrder(t, res.Text, "First page alpha", "Third page gamma")
}

func TestPDFExtractor_CorruptStartxrefFallsBackToPdfcpu(t *testing.T) {
	pages := []string{"First page alpha", "", "Third page gamma"}
	// Point past EOF so the primary engine cannot locate the xref table.
	data := buildPDF(pages, len(buildPDF(pages, 0))+1000)
	p := NewPDFExtractor(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := p.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Engine != "pdfcpu" {
		t.Errorf("expected pdfcpu fallback, got %q", res.Engine)
	}
	if res.PageCount != 3 {
		t.Errorf("expected 3 pages, got %d", res.PageCount)
	}
	assertPageOrder(t, res.Text, "First page alpha", "Third page gamma")
}
