package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/minirag/internal/answer"
	"github.com/bull/minirag/internal/chunker"
	"github.com/bull/minirag/internal/source"
)

var (
	minWords int
	maxWords int

	askDocs   []string
	askK      int
	askAnswer bool
	askModels []string
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Split a document into chunks and print statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index documents into the configured store",
	Long: `Loads .txt, .md and .pdf files (directories are walked), chunks them,
embeds the chunks in batches and adds them to the configured collection.

With the in-memory store the index only lives for the duration of the command;
use STORE=qdrant to keep it.`,
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Retrieve the chunks most relevant to a question",
	Long: `Retrieves the top-k chunks for a question. With an in-memory store the
documents given by --docs (or DOCS_PATHS) are ingested first.

With --answer, the retrieved chunks are placed in a prompt and every --model
is asked to answer it, so the replies can be compared.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	chunkCmd.Flags().IntVar(&minWords, "min-words", 0, "advisory minimum words per chunk (default from config)")
	chunkCmd.Flags().IntVar(&maxWords, "max-words", 0, "maximum words per chunk (default from config)")

	askCmd.Flags().StringSliceVar(&askDocs, "docs", nil, "documents to ingest before asking")
	askCmd.Flags().IntVar(&askK, "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askAnswer, "answer", false, "ask the configured LLMs to answer using the retrieved chunks")
	askCmd.Flags().StringSliceVar(&askModels, "model", nil, "chat model to compare (repeatable, default from config)")
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	lo, hi := cfg.Chunker.MinWords, cfg.Chunker.MaxWords
	if minWords > 0 {
		lo = minWords
	}
	if maxWords > 0 {
		hi = maxWords
	}

	ch, err := chunker.New(chunker.WithBounds(lo, hi))
	if err != nil {
		return err
	}

	doc, err := source.LoadFile(args[0])
	if err != nil {
		return err
	}
	chunks, err := ch.Chunk(doc.Text)
	if err != nil {
		return err
	}
	stats, err := ch.Stats(chunks)
	if err != nil {
		return err
	}

	fmt.Printf("Document: %s\n", doc.ID)
	if title := doc.Metadata[source.MetaTitle]; title != "" {
		fmt.Printf("  Title: %s\n", title)
	}
	fmt.Printf("  Chunks: %d\n", stats.Chunks)
	fmt.Printf("  Below %d words: %d\n", lo, stats.BelowMin)
	fmt.Printf("  Over %d words: %d\n", hi, stats.OverMax)
	if len(chunks) > 0 {
		fmt.Printf("  First chunk words: %d\n", stats.WordCounts[0])
		fmt.Println()
		fmt.Println(chunks[0])
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println("Starting ingest...")
	result, err := s.Ingest(ctx, args...)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Collection: %s\n", s.Store.Name())
	fmt.Printf("  Documents: %d\n", result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	if result.FirstID != "" {
		fmt.Printf("  First chunk: %s\n", result.FirstID)
	}
	if len(result.EmptyDocs) > 0 {
		fmt.Printf("  Empty documents: %s\n", strings.Join(result.EmptyDocs, ", "))
	}
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	if !s.Persistent() {
		fmt.Println()
		fmt.Println("Note: the in-memory index is discarded on exit. Use STORE=qdrant to keep it.")
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.Persistent() || len(askDocs) > 0 {
		result, err := s.Ingest(ctx, askDocs...)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		if result.TotalChunks == 0 && !s.Persistent() {
			return fmt.Errorf("no documents to search: pass --docs or set DOCS_PATHS")
		}
	}

	chunks, err := s.Retriever.RetrieveTopK(ctx, question, askK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Println("Retrieved Document Chunks:")
	for i, chunk := range chunks {
		fmt.Printf("\nChunk %d:\n%s\n", i+1, chunk)
		fmt.Println("---")
	}

	if !askAnswer {
		return nil
	}

	gen, err := s.Generator()
	if err != nil {
		return err
	}
	models := askModels
	if len(models) == 0 {
		models = s.Config.LLM.Models
	}
	if len(models) == 0 {
		models = answer.DefaultModels
	}

	prompt := gen.Prompt(question, chunks)
	for _, a := range gen.Compare(ctx, models, prompt) {
		fmt.Printf("\n### %s Response:\n", a.Model)
		if a.Err != nil {
			fmt.Printf("Error: %v\n", a.Err)
			continue
		}
		fmt.Println(a.Text)
	}
	return nil
}
