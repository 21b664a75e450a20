package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/pdfqa/internal/document"
	"github.com/dgallion1/pdfqa/internal/domain"
	"github.com/dgallion1/pdfqa/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	askJSON    bool
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask FILE QUESTION",
	Short: "Answer a question about a PDF",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer with selection details as JSON")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall deadline for extraction and answering")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	path, question := args[0], args[1]

	gen, err := newGenerator(cfg, log)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Store:     document.NewStore(log),
		Extractor: newExtractor(cfg, log),
		Generator: gen,
	}, log)
	orch.Start(ctx)
	defer orch.Stop()

	h, err := orch.Ingest(filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := waitSettled(ctx, orch, h.ID); err != nil {
		return err
	}

	ans, err := orch.Answer(ctx, question)
	if err != nil {
		return err
	}

	if !askJSON {
		fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
		return nil
	}
	out, err := json.MarshalIndent(map[string]any{
		"answer":         ans.Text,
		"document_id":    ans.DocumentID,
		"strategy":       ans.Strategy,
		"chunks":         ans.ChunkIndexes,
		"context_chars":  ans.ContextChars,
		"empty_document": ans.EmptyDocument,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// waitSettled polls until document id leaves the in-progress states.
func waitSettled(ctx context.Context, orch *pipeline.Orchestrator, id string) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		st := orch.Status()
		if st.DocumentID == id && (st.State == document.StateReady || st.State == document.StateFailed) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: extraction did not finish: %w", domain.ErrNotReady, ctx.Err())
		case <-ticker.C:
		}
	}
}
