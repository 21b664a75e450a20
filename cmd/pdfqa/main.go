// Command pdfqa runs the PDF question-answering pipeline in-process.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/pdfqa/internal/config"
	"github.com/dgallion1/pdfqa/internal/llm"
	"github.com/dgallion1/pdfqa/internal/logging"
	"github.com/dgallion1/pdfqa/internal/parser"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	logLevel string

	cfg config.Config
	log *slog.Logger
)

// Replaced in tests.
var (
	newExtractor = func(cfg config.Config, log *slog.Logger) parser.Extractor {
		return parser.NewPDFExtractor(cfg.PDFFallbackPdftotext, log)
	}
	newGenerator = func(cfg config.Config, log *slog.Logger) (llm.Generator, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return llm.NewFromConfig(cfg, nil, log)
	}
)

var rootCmd = &cobra.Command{
	Use:           "pdfqa",
	Short:         "Ask questions about a PDF",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logging.New(cmd.ErrOrStderr(), "pdfqa-cli", logLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
