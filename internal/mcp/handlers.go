package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/minirag/internal/retriever"
	"github.com/bull/minirag/internal/storage"
)

const (
	defaultListLimit = 20
	previewRunes     = 160
	emptyIndexMsg    = "The index is empty. Ingest documents before retrieving."
)

// makeRetrieveHandler creates the retrieve_chunks tool handler.
// An empty index is reported in Message rather than as a tool error.
func makeRetrieveHandler(r *retriever.Retriever, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, RetrieveChunksInput,
) (*mcp.CallToolResult, RetrieveChunksOutput, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req *mcp.CallToolRequest, input RetrieveChunksInput) (
		*mcp.CallToolResult, RetrieveChunksOutput, error,
	) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, RetrieveChunksOutput{}, errors.New("query is required")
		}

		results, err := r.Retrieve(ctx, query, input.K)
		if errors.Is(err, storage.ErrEmptyCollection) {
			return nil, RetrieveChunksOutput{Chunks: []RetrievedChunk{}, Message: emptyIndexMsg}, nil
		}
		if err != nil {
			logger.Warn("Retrieval failed", "error", err)
			return nil, RetrieveChunksOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		chunks := make([]RetrievedChunk, len(results))
		for i, res := range results {
			chunks[i] = RetrievedChunk{
				ID:       res.Chunk.ID,
				Text:     res.Chunk.Text,
				Distance: res.Distance,
				Source:   res.Chunk.Metadata[storage.MetaSource],
				Metadata: res.Chunk.Metadata,
			}
		}
		return nil, RetrieveChunksOutput{Chunks: chunks}, nil
	}
}

// makeListHandler creates the list_chunks tool handler.
func makeListHandler(store storage.VectorStore) func(
	context.Context, *mcp.CallToolRequest, ListChunksInput,
) (*mcp.CallToolResult, ListChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListChunksInput) (
		*mcp.CallToolResult, ListChunksOutput, error,
	) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		offset := max(input.Offset, 0)

		all, err := store.GetAll(ctx)
		if err != nil {
			return nil, ListChunksOutput{}, fmt.Errorf("failed to list chunks: %w", err)
		}

		start := min(offset, len(all))
		end := min(start+limit, len(all))
		summaries := make([]ChunkSummary, 0, end-start)
		for _, c := range all[start:end] {
			summaries = append(summaries, ChunkSummary{
				ID:       c.ID,
				Source:   c.Metadata[storage.MetaSource],
				Position: c.Metadata[storage.MetaPosition],
				Preview:  preview(c.Text),
			})
		}

		return nil, ListChunksOutput{Chunks: summaries, Total: len(all)}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(store storage.VectorStore, collections *storage.Collections) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		all, err := store.GetAll(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("store_error: failed to read chunks: %w", err)
		}

		sources := []string{}
		for _, c := range all {
			if src := c.Metadata[storage.MetaSource]; src != "" && !slices.Contains(sources, src) {
				sources = append(sources, src)
			}
		}

		names := []string{store.Name()}
		if collections != nil {
			names = collections.Names()
		}

		return nil, StatusOutput{
			Collection:  store.Name(),
			TotalChunks: len(all),
			Sources:     sources,
			Collections: names,
		}, nil
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
