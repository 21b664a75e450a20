package document

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/google/uuid"
)

// Store owns the single active document. All transitions run under one
// mutex and swap in a freshly built Document, so readers never observe a
// mix of two transitions.
type Store struct {
	mu  sync.Mutex
	cur *Document
	raw []byte // Raw upload bytes of cur, until the extraction task takes them.
	log *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		cur:   &Document{State: StateEmpty},
		log:   log,
		now:   time.Now,
		newID: newDocumentID,
	}
}

// BeginUpload validates the payload size and replaces the active document
// with a new one in StateUploading. An oversized payload leaves the store
// untouched.
func (s *Store) BeginUpload(filename string, data []byte, maxSizeBytes int64) (Handle, error) {
	size := int64(len(data))
	if maxSizeBytes > 0 && size > maxSizeBytes {
		return Handle{}, fmt.Errorf("%w: %d bytes exceeds maximum of %d bytes", domain.ErrPayloadTooLarge, size, maxSizeBytes)
	}

	now := s.now()
	doc := &Document{
		ID:         s.newID(),
		State:      StateUploading,
		Filename:   filename,
		SizeBytes:  size,
		SHA256:     ContentHashHex(data),
		UploadedAt: now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	prev := s.cur
	s.cur = doc
	s.raw = data
	s.mu.Unlock()

	if prev.State != StateEmpty {
		s.log.Info("document superseded",
			"previous_id", prev.ID,
			"previous_state", prev.State,
			"document_id", doc.ID,
			"same_content", prev.SHA256 == doc.SHA256,
		)
	}

	return Handle{ID: doc.ID, Filename: filename, SizeBytes: size, State: StateUploading}, nil
}

// MarkExtracting moves the document from uploading to extracting and hands
// ownership of the raw bytes to the caller. It reports false if id is no
// longer the active document.
func (s *Store) MarkExtracting(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.matchLocked(id, "mark_extracting", StateUploading) {
		return nil, false
	}
	next := *s.cur
	next.State = StateExtracting
	next.UpdatedAt = s.now()
	s.cur = &next

	raw := s.raw
	s.raw = nil
	return raw, true
}

// Complete publishes extraction results. Empty or whitespace-only text is
// still a success and is marked with EmptyText. Non-empty text must come
// with chunks; otherwise the result is rejected and the document stays in
// extracting.
func (s *Store) Complete(id string, res Extraction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.matchLocked(id, "complete", StateExtracting) {
		return false
	}
	empty := strings.TrimSpace(res.Text) == ""
	if !empty && len(res.Chunks) == 0 {
		s.log.Warn("extraction result without chunks rejected", "document_id", id)
		return false
	}
	next := *s.cur
	next.State = StateReady
	next.Text = res.Text
	next.PageCount = res.PageCount
	next.EmptyText = empty
	next.Chunks = nil
	if !empty {
		next.Chunks = make([]Chunk, len(res.Chunks))
		copy(next.Chunks, res.Chunks)
	}
	next.UpdatedAt = s.now()
	s.cur = &next
	s.raw = nil
	return true
}

// Fail records a failure reason. It is accepted while uploading or
// extracting.
func (s *Store) Fail(id, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.matchLocked(id, "fail", StateUploading, StateExtracting) {
		return false
	}
	if reason == "" {
		reason = "unknown error"
	}
	next := *s.cur
	next.State = StateFailed
	next.Reason = reason
	next.Text = ""
	next.Chunks = nil
	next.EmptyText = false
	next.UpdatedAt = s.now()
	s.cur = &next
	s.raw = nil
	return true
}

// Snapshot returns a copy of the active document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	doc := s.cur
	s.mu.Unlock()
	return doc.Clone()
}

// matchLocked reports whether id is the active document and its state is
// one of allowed. Mismatches are logged, never returned as errors.
func (s *Store) matchLocked(id, op string, allowed ...State) bool {
	if s.cur.ID != id {
		s.log.Warn("stale document transition ignored", "op", op, "document_id", id, "active_id", s.cur.ID)
		return false
	}
	for _, st := range allowed {
		if s.cur.State == st {
			return true
		}
	}
	s.log.Warn("illegal document transition ignored", "op", op, "document_id", id, "state", s.cur.State)
	return false
}

// newDocumentID returns a time-ordered UUIDv7, falling back to a random
// UUID if the clock source fails.
func newDocumentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
