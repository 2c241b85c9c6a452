package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/controller"
	"github.com/itish2003/studyrag/models"
	"github.com/itish2003/studyrag/services"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if watch {
				go func() {
					if err := a.indexer.WatchSubjects(ctx); err != nil {
						a.logger.Error("folder watcher stopped", zap.Error(err))
					}
				}()
			}

			srv := &http.Server{
				Addr:              ":" + strconv.Itoa(a.cfg.HTTP.Port),
				Handler:           controller.NewRouter(a.controller, a.cfg.HTTP.StaticDir, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("http server starting", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest a subject when its PDFs change")
	return cmd
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <subject>",
		Short: "Build the vector index for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				summary, err := a.service.Ingest(ctx, args[0])
				if summary != nil {
					printIngestSummary(cmd, summary)
				}
				return err
			})
		},
	}
}

func queryCmd() *cobra.Command {
	var (
		k       int
		sources string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query <subject> <query>",
		Short: "Show the chunks retrieved for a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := controller.ParseSources(sources)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.service.Retrieve(ctx, args[0], args[1], k, categories)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, result)
				}
				if result.FallbackUsed {
					cmd.Println("No chunks matched the requested sources; showing unfiltered results.")
				}
				if len(result.Chunks) == 0 {
					cmd.Println("No results found.")
					return nil
				}
				for i, c := range result.Chunks {
					cmd.Printf("[%d] %s (%s, chunk %d, score %.3f)\n", i+1, c.Source, c.SourceType, c.ChunkIndex, c.Score)
					cmd.Println(c.Text)
					cmd.Println()
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of chunks to return (default from config)")
	cmd.Flags().StringVar(&sources, "sources", "", "comma separated categories: syllabus,notes,past_papers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate study material from a subject's notes and syllabus",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "mcqs <subject> <query>",
		Short: "Generate multiple choice questions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				resp, err := a.service.GenerateMCQs(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	})

	var numCards int
	flashcards := &cobra.Command{
		Use:   "flashcards <subject> <query>",
		Short: "Generate flashcards",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				resp, err := a.service.GenerateFlashcards(ctx, args[0], args[1], numCards)
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
	flashcards.Flags().IntVarP(&numCards, "num-cards", "n", services.DefaultNumCards, "number of flashcards to request")
	cmd.AddCommand(flashcards)

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <subject>",
		Short: "Show uploaded files and index state for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				status, err := a.service.Status(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Printf("Subject:  %s\n", status.Subject)
				cmd.Printf("Ingested: %t (%d chunks)\n", status.IsIngested, status.Chunks)
				cmd.Printf("Files:    %d\n", status.TotalFiles)
				for _, category := range models.AllCategories {
					names := status.Files[string(category)]
					cmd.Printf("  %s (%d)\n", category, len(names))
					for _, name := range names {
						cmd.Printf("    - %s\n", name)
					}
				}
				return nil
			})
		},
	}
}

// withApp wires the application for a one-shot command and cancels on SIGINT.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printIngestSummary(cmd *cobra.Command, s *models.IngestionSummary) {
	cmd.Printf("Subject %s (%s): %d documents, %d failed, %d chunks in %s\n",
		s.Subject, s.Mode, len(s.Documents), s.FailedCount(), s.ChunkCount, s.Duration.Round(time.Millisecond))
	for _, d := range s.Documents {
		if d.Failed() {
			cmd.Printf("  FAIL %s/%s: %s\n", d.SourceType, d.Source, d.Error)
			continue
		}
		cmd.Printf("  ok   %s/%s: %d pages (%d OCR), %d chunks\n", d.SourceType, d.Source, d.Pages, d.OCRPages, d.Chunks)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
