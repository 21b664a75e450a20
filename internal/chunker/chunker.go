package chunker

import (
	"fmt"
	"iter"

	"github.com/dgallion1/pdfqa/internal/document"
	"github.com/dgallion1/pdfqa/internal/domain"
)

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	ChunkSize    int // Window size.
	ChunkOverlap int // Characters shared by consecutive windows.
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    2000,
		ChunkOverlap: 200,
	}
}

// Validate checks chunkSize > overlap >= 0.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Chunk splits text into windows [offset, offset+size) advancing by
// size-overlap. Empty text yields no chunks.
func Chunk(text string, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var chunks []document.Chunk
	for c := range windows([]rune(text), cfg) {
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Seq returns a lazy sequence of the same windows Chunk produces. The
// sequence holds no state between iterations, so ranging over it again
// yields identical chunks. Invalid configuration yields nothing.
func Seq(text string, cfg Config) iter.Seq[document.Chunk] {
	if cfg.Validate() != nil {
		return func(func(document.Chunk) bool) {}
	}
	return func(yield func(document.Chunk) bool) {
		for c := range windows([]rune(text), cfg) {
			if !yield(c) {
				return
			}
		}
	}
}

func windows(runes []rune, cfg Config) iter.Seq[document.Chunk] {
	step := cfg.ChunkSize - cfg.ChunkOverlap
	return func(yield func(document.Chunk) bool) {
		index := 0
		for offset := 0; offset < len(runes); offset += step {
			end := min(offset+cfg.ChunkSize, len(runes))
			c := document.Chunk{
				Index:       index,
				Text:        string(runes[offset:end]),
				StartOffset: offset,
			}
			if !yield(c) {
				return
			}
			index++
		}
	}
}
