package retrieval

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfqa/internal/document"
)

// Strategy names how a context was built.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyFullText  Strategy = "full_text"
	StrategyLexical   Strategy = "lexical"
	StrategyTruncated Strategy = "lexical_truncated"
	StrategyPrefix    Strategy = "fallback_prefix"
)

// separator joins non-adjacent chunks in a context.
const separator = "\n\n"

// Selection is the context handed to the answer generator.
type Selection struct {
	Context      string
	ChunkIndexes []int
	Strategy     Strategy
}

// Selector picks context for a question. The returned context never exceeds
// budget characters and is drawn only from text.
type Selector interface {
	Select(question, text string, chunks []document.Chunk, budget int) Selection
}

// LexicalSelector scores chunks by the number of distinct question terms
// they contain.
type LexicalSelector struct{}

func NewLexicalSelector() *LexicalSelector {
	return &LexicalSelector{}
}

type scored struct {
	chunk document.Chunk
	score int
	size  int
}

func (s *LexicalSelector) Select(question, text string, chunks []document.Chunk, budget int) Selection {
	if budget <= 0 || text == "" {
		return Selection{Strategy: StrategyNone}
	}

	runes := []rune(text)
	if len(runes) <= budget {
		return Selection{Context: text, Strategy: StrategyFullText, ChunkIndexes: allIndexes(chunks)}
	}

	terms := Terms(question)
	ranked := make([]scored, 0, len(chunks))
	if len(terms) > 0 {
		for _, c := range chunks {
			if n := Score(terms, c.Text); n > 0 {
				ranked = append(ranked, scored{chunk: c, score: n, size: len([]rune(c.Text))})
			}
		}
	}
	if len(ranked) == 0 {
		return Selection{Context: string(runes[:budget]), Strategy: StrategyPrefix}
	}

	// Highest score first; earlier chunk wins ties.
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return a.chunk.Index - b.chunk.Index
	})

	// Budget is charged for the rendered context, so overlap shared with an
	// already picked neighbour costs nothing.
	var picked []scored
	for _, r := range ranked {
		candidate := append(slices.Clone(picked), r)
		slices.SortFunc(candidate, byIndex)
		if utf8.RuneCountInString(render(candidate)) > budget {
			break
		}
		picked = candidate
	}

	if len(picked) == 0 {
		best := ranked[0].chunk
		return Selection{
			Context:      string([]rune(best.Text)[:budget]),
			ChunkIndexes: []int{best.Index},
			Strategy:     StrategyTruncated,
		}
	}

	return Selection{
		Context:      render(picked),
		ChunkIndexes: indexes(picked),
		Strategy:     StrategyLexical,
	}
}

func byIndex(a, b scored) int { return a.chunk.Index - b.chunk.Index }

// Score counts the distinct terms that occur in text.
func Score(terms map[string]struct{}, text string) int {
	if len(terms) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(terms))
	for _, tok := range tokenize(text) {
		if _, ok := terms[tok]; ok {
			seen[tok] = struct{}{}
		}
	}
	return len(seen)
}

// render joins chunks in document order. Overlapping neighbours are merged
// on StartOffset so shared text appears once.
func render(picked []scored) string {
	var sb strings.Builder
	prevEnd := -1
	for i, p := range picked {
		start := p.chunk.StartOffset
		end := start + p.size
		switch {
		case i > 0 && start <= prevEnd:
			if end > prevEnd {
				sb.WriteString(string([]rune(p.chunk.Text)[prevEnd-start:]))
			}
		default:
			if i > 0 {
				sb.WriteString(separator)
			}
			sb.WriteString(p.chunk.Text)
		}
		prevEnd = max(prevEnd, end)
	}
	return sb.String()
}

func indexes(picked []scored) []int {
	out := make([]int, len(picked))
	for i, p := range picked {
		out[i] = p.chunk.Index
	}
	return out
}

func allIndexes(chunks []document.Chunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.Index
	}
	return out
}
