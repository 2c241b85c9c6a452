package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	configPath string // overridable via --config flag
)

func main() {
	root := &cobra.Command{
		Use:          "studyrag",
		Short:        "Subject-scoped study assistant over course PDFs",
		Long:         "studyrag ingests syllabus, notes and past papers per subject and generates MCQs and flashcards from them.",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml if present)")

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
