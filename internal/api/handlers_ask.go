package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/pdfqa/internal/domain"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer        string `json:"answer"`
	DocumentID    string `json:"document_id"`
	Strategy      string `json:"strategy"`
	Chunks        []int  `json:"chunks"`
	ContextChars  int    `json:"context_chars"`
	EmptyDocument bool   `json:"empty_document"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), domain.Code(domain.ErrInvalidInput), http.StatusBadRequest)
		return
	}

	ans, err := s.orchestrator.Answer(r.Context(), req.Question)
	if err != nil {
		s.log.Warn("question failed", "code", domain.Code(err), "error", err)
		writeError(w, err)
		return
	}

	chunks := ans.ChunkIndexes
	if chunks == nil {
		chunks = []int{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{
		Answer:        ans.Text,
		DocumentID:    ans.DocumentID,
		Strategy:      string(ans.Strategy),
		Chunks:        chunks,
		ContextChars:  ans.ContextChars,
		EmptyDocument: ans.EmptyDocument,
	})
}
