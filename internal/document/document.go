package document

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// State is the lifecycle state of the active document.
type State string

const (
	StateEmpty      State = "empty"
	StateUploading  State = "uploading"
	StateExtracting State = "extracting"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Chunk is a bounded window of document text. StartOffset is the character
// (rune) position of the window in the document text.
type Chunk struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
}

// Document is an immutable value published by the Store. Transitions build
// a new Document rather than mutating a published one.
type Document struct {
	ID         string
	State      State
	Reason     string // Set only when State is StateFailed.
	Filename   string
	SizeBytes  int64
	SHA256     string // Hex digest of the uploaded bytes.
	Text       string
	EmptyText  bool // Ready, but extraction produced no text.
	Chunks     []Chunk
	PageCount  int
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// Handle identifies an upload accepted by BeginUpload.
type Handle struct {
	ID        string
	Filename  string
	SizeBytes int64
	State     State
}

// Extraction is the result written by Complete.
type Extraction struct {
	Text      string
	Chunks    []Chunk
	PageCount int
}

// Status is a read-only, JSON-safe view of the active document.
type Status struct {
	DocumentID      string    `json:"document_id,omitempty"`
	State           State     `json:"state"`
	Reason          string    `json:"reason,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	SizeBytes       int64     `json:"size_bytes"`
	SHA256          string    `json:"sha256,omitempty"`
	PageCount       int       `json:"page_count"`
	TextChars       int       `json:"text_chars"`
	TotalChunks     int       `json:"total_chunks"`
	EstimatedTokens int       `json:"estimated_tokens"`
	EmptyText       bool      `json:"empty_text"`
	UploadedAt      time.Time `json:"uploaded_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

// Clone returns a copy whose chunk slice does not alias d's.
func (d Document) Clone() Document {
	if d.Chunks != nil {
		chunks := make([]Chunk, len(d.Chunks))
		copy(chunks, d.Chunks)
		d.Chunks = chunks
	}
	return d
}

// ContentHashHex returns the hex SHA-256 of data.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
