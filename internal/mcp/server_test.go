package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/minirag/internal/embedding"
	"github.com/bull/minirag/internal/retriever"
	"github.com/bull/minirag/internal/storage"
)

func newTestRetriever(t *testing.T, texts ...string) (*retriever.Retriever, *storage.Collections) {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(0)

	cols := storage.NewCollections(nil)
	store, err := cols.GetOrCreate("docs")
	require.NoError(t, err)

	if len(texts) > 0 {
		vectors, err := emb.Embed(ctx, texts)
		require.NoError(t, err)
		chunks := make([]storage.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = storage.Chunk{
				ID:        "chunk_" + string(rune('0'+i)),
				Text:      text,
				Embedding: vectors[i],
				Metadata: map[string]string{
					storage.MetaSource:   "doc" + string(rune('A'+i%2)),
					storage.MetaPosition: "0",
				},
			}
		}
		require.NoError(t, store.AddBatch(ctx, chunks))
	}
	return retriever.New(emb, store), cols
}

func TestRetrieveHandler(t *testing.T) {
	r, _ := newTestRetriever(t, "Sleep consolidates memory.", "Exercise strengthens the heart.", "Reading builds vocabulary.")
	handler := makeRetrieveHandler(r, nil)

	_, out, err := handler(context.Background(), nil, RetrieveChunksInput{Query: "memory and sleep", K: 1})
	require.NoError(t, err)
	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "Sleep consolidates memory.", out.Chunks[0].Text)
	assert.Equal(t, "docA", out.Chunks[0].Source)
	assert.Empty(t, out.Message)
}

func TestRetrieveHandler_DefaultK(t *testing.T) {
	r, _ := newTestRetriever(t, "one.", "two.", "three.", "four.", "five.")
	handler := makeRetrieveHandler(r, nil)

	_, out, err := handler(context.Background(), nil, RetrieveChunksInput{Query: "two"})
	require.NoError(t, err)
	assert.Len(t, out.Chunks, retriever.DefaultTopK)
}

func TestRetrieveHandler_EmptyIndex(t *testing.T) {
	r, _ := newTestRetriever(t)
	handler := makeRetrieveHandler(r, nil)

	_, out, err := handler(context.Background(), nil, RetrieveChunksInput{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, out.Chunks)
	assert.Equal(t, emptyIndexMsg, out.Message)
}

func TestRetrieveHandler_BlankQuery(t *testing.T) {
	r, _ := newTestRetriever(t, "text.")
	handler := makeRetrieveHandler(r, nil)

	_, _, err := handler(context.Background(), nil, RetrieveChunksInput{Query: "   "})
	assert.Error(t, err)
}

func TestListHandler_Paging(t *testing.T) {
	r, _ := newTestRetriever(t, "a.", "b.", "c.", "d.")
	handler := makeListHandler(r.Store())

	_, out, err := handler(context.Background(), nil, ListChunksInput{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Total)
	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "chunk_1", out.Chunks[0].ID)
	assert.Equal(t, "chunk_2", out.Chunks[1].ID)

	_, out, err = handler(context.Background(), nil, ListChunksInput{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, out.Chunks)
}

func TestStatusHandler(t *testing.T) {
	r, cols := newTestRetriever(t, "a.", "b.", "c.")
	handler := makeStatusHandler(r.Store(), cols)

	_, out, err := handler(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "docs", out.Collection)
	assert.Equal(t, 3, out.TotalChunks)
	assert.Equal(t, []string{"docA", "docB"}, out.Sources)
	assert.Equal(t, []string{"docs"}, out.Collections)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("x", previewRunes+5)
	assert.Equal(t, strings.Repeat("x", previewRunes)+"...", preview(long))
}

func TestServer_InMemoryToolCall(t *testing.T) {
	ctx := context.Background()
	r, cols := newTestRetriever(t, "Sleep consolidates memory.", "Exercise strengthens the heart.")
	server := NewServer(&Config{Retriever: r, Collections: cols})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"retrieve_chunks", "list_chunks", "get_index_status"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "retrieve_chunks",
		Arguments: map[string]any{"query": "heart exercise", "k": 1},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out RetrieveChunksOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "Exercise strengthens the heart.", out.Chunks[0].Text)
}

type stubChecker struct{ err error }

func (s stubChecker) Health(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unhealthy", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(stubChecker{err: tt.err})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

type sizedChecker struct {
	stubChecker
	n int
}

func (s sizedChecker) IndexSize(context.Context) (int, error) { return s.n, nil }

func TestHealthHandler_ReportsIndexSize(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(sizedChecker{n: 7})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Chunks)
	assert.Equal(t, 7, *body.Chunks)
	assert.Empty(t, body.Error)

	rec = httptest.NewRecorder()
	NewHealthHandler(stubChecker{err: errors.New("refused")})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "refused", body.Error)
}

func TestMux_LandingAndNotFound(t *testing.T) {
	r, _ := newTestRetriever(t)
	mux := NewMux(NewServer(&Config{Retriever: r}), stubChecker{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "retrieve_chunks")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
