package retrieval

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/pdfqa/internal/chunker"
	"github.com/dgallion1/pdfqa/internal/document"
)

func mustChunk(t *testing.T, text string, size, overlap int) []document.Chunk {
	t.Helper()
	chunks, err := chunker.Chunk(text, chunker.Config{ChunkSize: size, ChunkOverlap: overlap})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	return chunks
}

func TestSelect_FullTextWhenItFits(t *testing.T) {
	text := strings.Repeat("a", 500)
	chunks := mustChunk(t, text, 2000, 200)

	sel := NewLexicalSelector().Select("anything?", text, chunks, 2000)
	if sel.Strategy != StrategyFullText {
		t.Errorf("expected strategy %q, got %q", StrategyFullText, sel.Strategy)
	}
	if sel.Context != text {
		t.Error("expected full text verbatim as context")
	}
}

func TestSelect_PicksRelevantLaterChunk(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	text := filler + "The warranty period for the turbine gearbox is seven years. " + filler
	chunks := mustChunk(t, text, 300, 30)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	sel := NewLexicalSelector().Select("How long is the gearbox warranty?", text, chunks, 320)
	if sel.Strategy != StrategyLexical {
		t.Fatalf("expected strategy %q, got %q", StrategyLexical, sel.Strategy)
	}
	if !strings.Contains(sel.Context, "gearbox") {
		t.Errorf("expected context to contain the relevant chunk, got %q", sel.Context)
	}
	if sel.ChunkIndexes[0] == 0 {
		t.Errorf("expected a later chunk than chunks[0], got %v", sel.ChunkIndexes)
	}
}

func TestSelect_TieBreaksByEarlierIndex(t *testing.T) {
	chunks := []document.Chunk{
		{Index: 0, Text: "alpha beta", StartOffset: 0},
		{Index: 1, Text: "gamma zeta", StartOffset: 100},
		{Index: 2, Text: "gamma delta", StartOffset: 200},
	}
	text := strings.Repeat(" ", 300)

	// Budget fits one chunk only.
	sel := NewLexicalSelector().Select("gamma", text, chunks, 11)
	if len(sel.ChunkIndexes) != 1 || sel.ChunkIndexes[0] != 1 {
		t.Fatalf("expected chunk 1 to win the tie, got %v", sel.ChunkIndexes)
	}
	if sel.Context != "gamma zeta" {
		t.Errorf("expected %q, got %q", "gamma zeta", sel.Context)
	}
}

func TestSelect_HigherScoreWins(t *testing.T) {
	chunks := []document.Chunk{
		{Index: 0, Text: "engine oil", StartOffset: 0},
		{Index: 1, Text: "engine oil pressure", StartOffset: 100},
	}
	text := strings.Repeat(" ", 300)

	sel := NewLexicalSelector().Select("what is the engine oil pressure", text, chunks, 19)
	if len(sel.ChunkIndexes) != 1 || sel.ChunkIndexes[0] != 1 {
		t.Fatalf("expected chunk 1, got %v", sel.ChunkIndexes)
	}
}

func TestSelect_DocumentOrderAndSeparator(t *testing.T) {
	chunks := []document.Chunk{
		{Index: 0, Text: "red apples", StartOffset: 0},
		{Index: 1, Text: "nothing here", StartOffset: 50},
		{Index: 2, Text: "red apples green", StartOffset: 100},
	}
	text := strings.Repeat(" ", 200)

	sel := NewLexicalSelector().Select("green apples red", text, chunks, 100)
	want := "red apples\n\nred apples green"
	if sel.Context != want {
		t.Errorf("expected %q, got %q", want, sel.Context)
	}
	if len(sel.ChunkIndexes) != 2 || sel.ChunkIndexes[0] != 0 || sel.ChunkIndexes[1] != 2 {
		t.Errorf("expected indexes [0 2], got %v", sel.ChunkIndexes)
	}
}

func TestSelect_MergesOverlappingNeighbours(t *testing.T) {
	text := "copper wire gauge table follows copper notes end"
	chunks := []document.Chunk{
		{Index: 0, Text: text[0:20], StartOffset: 0},
		{Index: 1, Text: text[15:40], StartOffset: 15},
	}
	sel := NewLexicalSelector().Select("copper", text, chunks, 47)
	if sel.Context != text[0:40] {
		t.Errorf("expected merged %q, got %q", text[0:40], sel.Context)
	}
}

func TestSelect_ChargesMergedLengthForOverlap(t *testing.T) {
	text := "copper wire gauge table follows copper notes end"
	chunks := []document.Chunk{
		{Index: 0, Text: text[0:20], StartOffset: 0},
		{Index: 1, Text: text[15:40], StartOffset: 15},
	}
	// Separately the chunks cost 20+2+25 characters; merged they are 40.
	sel := NewLexicalSelector().Select("copper", text, chunks, 40)
	if sel.Context != text[0:40] {
		t.Errorf("expected merged %q, got %q", text[0:40], sel.Context)
	}
	if len(sel.ChunkIndexes) != 2 {
		t.Errorf("expected both chunks picked, got %v", sel.ChunkIndexes)
	}
}

func TestSelect_FallbackPrefixWithoutOverlap(t *testing.T) {
	text := strings.Repeat("abc def ghi ", 100)
	chunks := mustChunk(t, text, 200, 20)

	sel := NewLexicalSelector().Select("zebra migration?", text, chunks, 150)
	if sel.Strategy != StrategyPrefix {
		t.Fatalf("expected strategy %q, got %q", StrategyPrefix, sel.Strategy)
	}
	if sel.Context != text[:150] {
		t.Errorf("expected first 150 chars of text")
	}
}

func TestSelect_FallbackPrefixForStopwordQuestion(t *testing.T) {
	text := strings.Repeat("x", 1000)
	chunks := mustChunk(t, text, 100, 10)
	sel := NewLexicalSelector().Select("what is it?", text, chunks, 50)
	if sel.Strategy != StrategyPrefix {
		t.Errorf("expected strategy %q, got %q", StrategyPrefix, sel.Strategy)
	}
}

func TestSelect_TruncatesBestChunkWhenBudgetSmall(t *testing.T) {
	text := strings.Repeat("filler ", 50) + "quantum entanglement explained here"
	chunks := mustChunk(t, text, 100, 10)

	sel := NewLexicalSelector().Select("quantum", text, chunks, 20)
	if sel.Strategy != StrategyTruncated {
		t.Fatalf("expected strategy %q, got %q", StrategyTruncated, sel.Strategy)
	}
	if n := utf8.RuneCountInString(sel.Context); n != 20 {
		t.Errorf("expected 20 chars, got %d", n)
	}
}

func TestSelect_ZeroBudget(t *testing.T) {
	sel := NewLexicalSelector().Select("q", "text", nil, 0)
	if sel.Context != "" || sel.Strategy != StrategyNone {
		t.Errorf("expected empty selection, got %+v", sel)
	}
}

func TestSelect_NeverExceedsBudget(t *testing.T) {
	words := []string{"pump", "valve", "pressure", "flow", "seal", "motor", "gear", "the", "a", "of", "überdruck", "ñandú"}
	rng := rand.New(rand.NewPCG(1, 2))
	sel := NewLexicalSelector()

	for trial := range 300 {
		var sb strings.Builder
		n := rng.IntN(800)
		for range n {
			sb.WriteString(words[rng.IntN(len(words))])
			sb.WriteByte(' ')
		}
		text := sb.String()
		size := 1 + rng.IntN(300)
		overlap := rng.IntN(size)
		chunks := mustChunk(t, text, size, overlap)

		q := words[rng.IntN(len(words))] + " " + words[rng.IntN(len(words))]
		budget := 1 + rng.IntN(600)

		got := sel.Select(q, text, chunks, budget)
		if l := utf8.RuneCountInString(got.Context); l > budget {
			t.Fatalf("trial %d: context %d chars exceeds budget %d (strategy %s)", trial, l, budget, got.Strategy)
		}
		for _, piece := range strings.Split(got.Context, separator) {
			if !strings.Contains(text, piece) {
				t.Fatalf("trial %d: context piece not drawn from text: %q", trial, piece)
			}
		}
	}
}

func TestTerms(t *testing.T) {
	terms := Terms("What is the Gearbox's WARRANTY, in years? 2024 ok")
	for _, want := range []string{"gearbox", "warranty", "years", "2024"} {
		if _, ok := terms[want]; !ok {
			t.Errorf("expected term %q in %v", want, terms)
		}
	}
	for _, skip := range []string{"what", "the", "is", "in", "ok", "s"} {
		if _, ok := terms[skip]; ok {
			t.Errorf("expected %q to be filtered, got %v", skip, terms)
		}
	}
}

func TestScore_CountsDistinctTerms(t *testing.T) {
	terms := Terms("valve pressure")
	if got := Score(terms, "valve valve valve"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := Score(terms, "Pressure at the VALVE"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := Score(nil, "valve"); got != 0 {
		t.Errorf("expected 0 with no terms, got %d", got)
	}
}
