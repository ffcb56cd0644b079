package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace derives stable Qdrant point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("6f1c2a0e-4b1d-5c7e-9a3f-2d8e0b6c4a71")

const (
	payloadID   = "chunk_id"
	payloadText = "text"
	payloadMeta = "metadata"
	payloadSeq  = "seq"
	payloadVec  = "embedding"

	scrollPageSize = 256
)

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s:%d: %v", ErrStoreUnreachable, host, port, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Collection returns a VectorStore backed by the Qdrant collection name.
// The collection itself is created lazily by the first add.
func (s *QdrantStorage) Collection(name string) *QdrantCollection {
	return &QdrantCollection{client: s.client, name: name}
}

// Factory adapts Collection for use with Collections.
func (s *QdrantStorage) Factory() Factory {
	return func(name string) (VectorStore, error) {
		return s.Collection(name), nil
	}
}

// DropCollection deletes a collection and all of its points.
func (s *QdrantStorage) DropCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	return nil
}

// QdrantCollection is a VectorStore stored in one Qdrant collection with cosine distance.
// Chunk ids, text, metadata, insertion sequence and the raw embedding travel in
// the point payload. Qdrant normalises cosine vectors on write, so embeddings are
// read back from the payload to return them as they were added.
type QdrantCollection struct {
	client *qdrant.Client
	name   string

	mu  sync.RWMutex
	dim atomic.Int64 // 0 until known
}

func (c *QdrantCollection) Name() string { return c.name }

func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(chunkID)).String())
}

// dimension returns the collection's vector size, or 0 if the collection does not exist.
func (c *QdrantCollection) dimension(ctx context.Context) (int, error) {
	if d := c.dim.Load(); d > 0 {
		return int(d), nil
	}

	exists, err := c.client.CollectionExists(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}

	info, err := c.client.GetCollectionInfo(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	size := int64(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	c.dim.Store(size)
	return int(size), nil
}

func (c *QdrantCollection) ensureCollection(ctx context.Context, dim int) error {
	err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// seq orders GetAll and breaks distance ties.
	_, err = c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: c.name,
		FieldName:      payloadSeq,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field %s: %w", payloadSeq, err)
	}

	c.dim.Store(int64(dim))
	return nil
}

func (c *QdrantCollection) Add(ctx context.Context, chunk Chunk) error {
	return c.AddBatch(ctx, []Chunk{chunk})
}

// AddBatch validates every chunk, rejects ids that already exist, and writes all
// points in a single upsert.
func (c *QdrantCollection) AddBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dim, err := c.dimension(ctx)
	if err != nil {
		return err
	}
	batchDim, err := validateBatch(chunks, dim, nil)
	if err != nil {
		return err
	}

	if dim == 0 {
		if err := c.ensureCollection(ctx, batchDim); err != nil {
			return err
		}
	} else if err := c.rejectExisting(ctx, chunks); err != nil {
		return err
	}

	count, err := c.count(ctx)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		meta := make(map[string]any, len(chunk.Metadata))
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		payload := qdrant.NewValueMap(map[string]any{
			payloadID:   chunk.ID,
			payloadText: chunk.Text,
			payloadMeta: meta,
			payloadSeq:  count + i,
		})
		payload[payloadVec] = embeddingValue(chunk.Embedding)
		points[i] = &qdrant.PointStruct{
			Id:      pointID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: payload,
		}
	}

	_, err = c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (c *QdrantCollection) rejectExisting(ctx context.Context, chunks []Chunk) error {
	ids := make([]*qdrant.PointId, len(chunks))
	for i, chunk := range chunks {
		ids[i] = pointID(chunk.ID)
	}

	existing, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.name,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadID),
	})
	if err != nil {
		return fmt.Errorf("failed to check existing ids: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateID, existing[0].Payload[payloadID].GetStringValue())
	}
	return nil
}

// GetAll pages through the collection by insertion sequence and returns chunks in that order.
func (c *QdrantCollection) GetAll(ctx context.Context) ([]Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dim, err := c.dimension(ctx)
	if err != nil || dim == 0 {
		return []Chunk{}, err
	}
	count, err := c.count(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, count)
	for lo := 0; lo < count; lo += scrollPageSize {
		points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: c.name,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewRange(payloadSeq, &qdrant.Range{
						Gte: qdrant.PtrOf(float64(lo)),
						Lt:  qdrant.PtrOf(float64(lo + scrollPageSize)),
					}),
				},
			},
			Limit:       qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload: qdrant.NewWithPayload(true),
			WithVectors: qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points %d-%d: %w", lo, lo+scrollPageSize, err)
		}

		page := make([]Chunk, len(points))
		seqs := make(map[string]int64, len(points))
		for i, p := range points {
			page[i] = chunkFromPayload(p.Payload, p.GetVectors().GetVector())
			seqs[page[i].ID] = p.Payload[payloadSeq].GetIntegerValue()
		}
		slices.SortFunc(page, func(a, b Chunk) int { return cmp.Compare(seqs[a.ID], seqs[b.ID]) })
		out = append(out, page...)
	}
	return out, nil
}

func (c *QdrantCollection) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, validateQuery(embedding, k, 0)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	dim, err := c.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, ErrEmptyCollection
	}
	count, err := c.count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmptyCollection
	}
	if err := validateQuery(embedding, k, dim); err != nil {
		return nil, err
	}

	points, err := c.search(ctx, embedding, k, nil)
	if err != nil {
		return nil, err
	}
	// Points tied with the k-th score may have been cut in arbitrary order.
	// Fetch every tied point so insertion order decides which ones stay.
	if len(points) == k && count > k {
		threshold := points[k-1].GetScore()
		points, err = c.search(ctx, embedding, count, &threshold)
		if err != nil {
			return nil, err
		}
	}

	type seqResult struct {
		seq int64
		res Result
	}
	ranked := make([]seqResult, len(points))
	for i, p := range points {
		chunk := chunkFromPayload(p.Payload, p.GetVectors().GetVector())
		ranked[i] = seqResult{
			seq: p.Payload[payloadSeq].GetIntegerValue(),
			res: Result{Chunk: chunk, Distance: max(0, 1-float64(p.Score))},
		}
	}
	slices.SortStableFunc(ranked, func(a, b seqResult) int {
		if d := cmp.Compare(a.res.Distance, b.res.Distance); d != 0 {
			return d
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = r.res
	}
	return out, nil
}

// search runs an exact (full scan) nearest-neighbour query so results match a
// linear scan even after Qdrant has built its HNSW index.
func (c *QdrantCollection) search(ctx context.Context, embedding []float32, limit int, threshold *float32) ([]*qdrant.ScoredPoint, error) {
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: threshold,
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	return points, nil
}

func (c *QdrantCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dim, err := c.dimension(ctx)
	if err != nil || dim == 0 {
		return 0, err
	}
	return c.count(ctx)
}

func (c *QdrantCollection) count(ctx context.Context) (int, error) {
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

func chunkFromPayload(payload map[string]*qdrant.Value, vector *qdrant.VectorOutput) Chunk {
	chunk := Chunk{
		ID:        payload[payloadID].GetStringValue(),
		Text:      payload[payloadText].GetStringValue(),
		Embedding: payloadEmbedding(payload[payloadVec]),
	}
	if chunk.Embedding == nil {
		chunk.Embedding = vectorData(vector)
	}
	if fields := payload[payloadMeta].GetStructValue().GetFields(); len(fields) > 0 {
		chunk.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			chunk.Metadata[k] = v.GetStringValue()
		}
	}
	return chunk
}

func embeddingValue(embedding []float32) *qdrant.Value {
	values := make([]*qdrant.Value, len(embedding))
	for i, x := range embedding {
		values[i] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(x)}}
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

// payloadEmbedding returns nil when the payload carries no embedding.
func payloadEmbedding(v *qdrant.Value) []float32 {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	for i, x := range values {
		out[i] = float32(x.GetDoubleValue())
	}
	return out
}

// vectorData reads a dense vector from either the current or the legacy response field.
func vectorData(v *qdrant.VectorOutput) []float32 {
	if data := v.GetDense().GetData(); len(data) > 0 {
		return data
	}
	return v.GetData()
}
