package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the Qdrant collection holding documents and chunks.
const DefaultCollection = "docuchat"

// QdrantStore is the durable backend. Each document is stored as one parent
// point (no vector, full content) plus one point per chunk. Chunk payloads
// carry the parent document metadata so search joins in a single pass with no
// follow-up lookup per result.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore connects to Qdrant over gRPC and fails fast, with retry, if
// the server is unreachable. Collection and dimension fall back to
// DefaultCollection and DefaultVectorDimension.
func NewQdrantStore(host string, port int, collection string, dimension int) (*QdrantStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs the startup health check with exponential
// backoff: initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection (cosine distance, named vector
// "content") and payload indexes if missing. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes the filterable fields. Without these, payload
// filtering degrades to a full scan.
func (s *QdrantStore) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"type",        // "parent" vs "chunk"
		"document_id", // cascade deletes, chunk lookup by parent
		"category",
		"owner_id",
		"embedded", // chunks that carry a vector
	}

	for _, field := range fields {
		fieldType := qdrant.FieldType_FieldTypeKeyword
		if field == "embedded" {
			fieldType = qdrant.FieldType_FieldTypeBool
		}
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs one upsert call with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

func docPayload(doc Document) map[string]any {
	return map[string]any{
		"title":       doc.Title,
		"category":    string(doc.Category),
		"source_file": doc.SourceFileName,
		"uploaded_at": doc.UploadedAt.UTC().Format(time.RFC3339),
		"owner_id":    doc.OwnerID,
	}
}

func docFromPayload(id string, payload map[string]*qdrant.Value) Document {
	uploadedAt, err := time.Parse(time.RFC3339, payload["uploaded_at"].GetStringValue())
	if err != nil {
		uploadedAt = time.Time{}
	}
	return Document{
		ID:             id,
		Title:          payload["title"].GetStringValue(),
		Category:       Category(payload["category"].GetStringValue()),
		SourceFileName: payload["source_file"].GetStringValue(),
		UploadedAt:     uploadedAt,
		OwnerID:        payload["owner_id"].GetStringValue(),
	}
}

// Put stores the parent point and every chunk point in a single upsert call
// so a concurrent reader never observes a partial chunk set for the document.
func (s *QdrantStore) Put(ctx context.Context, doc Document, chunks []Chunk) error {
	for i, ch := range chunks {
		if vec, ok := ch.Embedding.Values(); ok && len(vec) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), s.dimension)
		}
	}

	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(doc.ID)},
	})
	if err != nil {
		return fmt.Errorf("failed to check for existing document: %w", err)
	}
	if len(existing) > 0 {
		return ErrDuplicateDocument
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks)+1)

	parentPayload := docPayload(doc)
	parentPayload["type"] = "parent"
	parentPayload["document_id"] = doc.ID
	parentPayload["content"] = doc.Content
	points = append(points, &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(parentPayload),
	})

	for _, ch := range chunks {
		payload := docPayload(doc)
		payload["type"] = "chunk"
		payload["document_id"] = doc.ID
		payload["chunk_index"] = ch.Index
		payload["content"] = ch.Content

		vectors := map[string]*qdrant.Vector{}
		if vec, ok := ch.Embedding.Values(); ok {
			vectors["content"] = qdrant.NewVector(vec...)
			payload["embedded"] = true
		} else {
			payload["embedded"] = false
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ch.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	return s.upsertWithRetry(ctx, points)
}

// GetDocument retrieves a parent document, including full content, by ID.
func (s *QdrantStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(documentID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	if len(result) == 0 {
		return Document{}, ErrDocumentNotFound
	}

	payload := result[0].Payload
	if payload["type"].GetStringValue() != "parent" {
		return Document{}, ErrDocumentNotFound
	}

	doc := docFromPayload(documentID, payload)
	doc.Content = payload["content"].GetStringValue()
	return doc, nil
}

// ListDocuments scrolls all parent points, ordered by upload time ascending.
// Content is omitted from listings.
func (s *QdrantStore) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.scroll(ctx, parentFilter(), func(point *qdrant.RetrievedPoint) {
		docs = append(docs, docFromPayload(point.Id.GetUuid(), point.Payload))
	})
	if err != nil {
		return nil, err
	}

	sortDocumentsByUpload(docs)
	return docs, nil
}

// GetByDocument scrolls the document's chunk points, ordered by chunk index.
// Embeddings stay server-side; returned chunks are payload-only.
func (s *QdrantStore) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "chunk"),
			qdrant.NewMatch("document_id", documentID),
		},
	}

	var chunks []Chunk
	err := s.scroll(ctx, filter, func(point *qdrant.RetrievedPoint) {
		chunks = append(chunks, chunkFromPayload(point.Id.GetUuid(), point.Payload))
	})
	if err != nil {
		return nil, err
	}

	sortChunksByIndex(chunks)
	return chunks, nil
}

// VectorSearch ranks embedded chunks by cosine similarity using Qdrant's
// native distance operator. Document metadata rides in each chunk payload, so
// no per-result lookup is needed. The raw cosine score in [-1,1] is mapped to
// [0,1] to match the lexical path.
func (s *QdrantStore) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(queryEmbedding), s.dimension)
	}
	if k <= 0 {
		k = 5
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "chunk"),
			qdrant.NewMatchBool("embedded", true),
		},
	}

	vectorName := "content"
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	if len(points) == 0 {
		embeddedCount, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count embedded chunks: %w", err)
		}
		if embeddedCount == 0 {
			return nil, ErrNoEmbeddedChunks
		}
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		chunk := chunkFromPayload(point.Id.GetUuid(), point.Payload)
		results = append(results, SearchResult{
			Chunk:    chunk,
			Document: docFromPayload(chunk.DocumentID, point.Payload),
			Score:    (float64(point.Score) + 1) / 2,
		})
	}

	sortResults(results)
	return results, nil
}

// LexicalSearch scrolls all chunk points and ranks them client-side by term
// overlap with the query. Zero-overlap chunks are omitted.
func (s *QdrantStore) LexicalSearch(ctx context.Context, queryText string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	querySet := tokenSet(queryText)

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
	}

	var results []SearchResult
	err := s.scroll(ctx, filter, func(point *qdrant.RetrievedPoint) {
		chunk := chunkFromPayload(point.Id.GetUuid(), point.Payload)
		score := lexicalScore(querySet, chunk.Content)
		if score == 0 {
			return
		}
		results = append(results, SearchResult{
			Chunk:    chunk,
			Document: docFromPayload(chunk.DocumentID, point.Payload),
			Score:    score,
		})
	})
	if err != nil {
		return nil, err
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteDocument removes the parent point and every chunk point for the
// document in one filtered delete.
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(documentID)},
	})
	if err != nil {
		return fmt.Errorf("failed to check for document: %w", err)
	}
	if len(existing) == 0 {
		return ErrDocumentNotFound
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo returns the total point count for status reporting.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &CollectionInfo{PointsCount: collection.GetPointsCount()}, nil
}

func parentFilter() *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("type", "parent")},
	}
}

// scroll pages through all points matching filter, invoking fn per point.
func (s *QdrantStore) scroll(ctx context.Context, filter *qdrant.Filter, fn func(*qdrant.RetrievedPoint)) error {
	batchSize := uint32(256)
	var offset *qdrant.PointId

	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, point := range points {
			fn(point)
		}

		if uint32(len(points)) < batchSize {
			return nil
		}
		offset = points[len(points)-1].Id
	}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) Chunk {
	return Chunk{
		ID:         id,
		DocumentID: payload["document_id"].GetStringValue(),
		Content:    payload["content"].GetStringValue(),
		Index:      int(payload["chunk_index"].GetIntegerValue()),
	}
}

func sortChunksByIndex(chunks []Chunk) {
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
}

func sortDocumentsByUpload(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
