package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"go.uber.org/zap"

	"github.com/itish2003/studyrag/models"
)

// chromaBatchSize bounds the records sent in a single Add call.
const chromaBatchSize = 256

// ChromaStore keeps one Chroma collection per subject, named subject-<code>.
type ChromaStore struct {
	client chromago.Client
	logger *zap.Logger
}

// NewChromaStore connects to the Chroma server at baseURL.
func NewChromaStore(baseURL string, logger *zap.Logger) (*ChromaStore, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &ChromaStore{client: client, logger: logger.Named("chroma")}, nil
}

func collectionName(subject string) string { return "subject-" + subject }

func (s *ChromaStore) getOrCreateCollection(ctx context.Context, subject, modelID string) (chromago.Collection, error) {
	name := collectionName(subject)
	collection, err := s.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("subject_code", subject),
				chromago.NewStringAttribute("embed_model_id", modelID),
				chromago.NewStringAttribute("created_by", "studyrag"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	return collection, nil
}

// Replace deletes the subject's collection and rebuilds it from records.
// Unlike the sqlite swap this is not atomic: if the rebuild fails the subject
// is left without an index until the next successful ingestion.
func (s *ChromaStore) Replace(ctx context.Context, subject, modelID string, records []Record) error {
	if exists, _ := s.Exists(ctx, subject); exists {
		if err := s.Drop(ctx, subject); err != nil {
			return err
		}
	}
	if err := s.Append(ctx, subject, modelID, records); err != nil {
		s.logger.Error("rebuild failed after drop, subject has no index",
			zap.String("subject", subject), zap.Error(err))
		return err
	}
	return nil
}

func (s *ChromaStore) Append(ctx context.Context, subject, modelID string, records []Record) error {
	collection, err := s.getOrCreateCollection(ctx, subject, modelID)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += chromaBatchSize {
		batch := records[start:min(start+chromaBatchSize, len(records))]

		ids := make([]chromago.DocumentID, len(batch))
		texts := make([]string, len(batch))
		embs := make([]embeddings.Embedding, len(batch))
		metas := make([]chromago.DocumentMetadata, len(batch))
		for i, r := range batch {
			ids[i] = chromago.DocumentID(r.ID)
			texts[i] = r.Text
			embs[i] = embeddings.NewEmbeddingFromFloat32(r.Embedding)
			metas[i] = chromago.NewDocumentMetadata(
				chromago.NewStringAttribute("subject_code", r.Metadata.SubjectCode),
				chromago.NewStringAttribute("source", r.Metadata.Source),
				chromago.NewStringAttribute("source_type", r.Metadata.SourceType),
				chromago.NewIntAttribute("chunk_index", int64(r.Metadata.ChunkIndex)),
			)
		}
		err := collection.Add(ctx,
			chromago.WithIDs(ids...),
			chromago.WithTexts(texts...),
			chromago.WithEmbeddings(embs...),
			chromago.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add %d chunks to chroma: %w", len(batch), err)
		}
	}
	s.logger.Info("collection updated", zap.String("subject", subject), zap.Int("records", len(records)))
	return nil
}

// Search queries the subject's collection. Chroma returns hits nearest first;
// that order is kept and Score is left at zero.
func (s *ChromaStore) Search(ctx context.Context, subject, _ string, query []float32, n int) ([]Hit, error) {
	collection, err := s.client.GetCollection(ctx, collectionName(subject))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrNotIngested, subject, err)
	}

	results, err := collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(n),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		h := Hit{Text: doc.ContentString()}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			h.Metadata = decodeChromaMetadata(metadataGroups[0][i])
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// decodeChromaMetadata goes through JSON because DocumentMetadata exposes no map accessor.
func decodeChromaMetadata(meta chromago.DocumentMetadata) Metadata {
	var out Metadata
	raw, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	out.SubjectCode, _ = m["subject_code"].(string)
	out.Source, _ = m["source"].(string)
	out.SourceType, _ = m["source_type"].(string)
	if idx, ok := m["chunk_index"].(float64); ok {
		out.ChunkIndex = int(idx)
	}
	return out
}

func (s *ChromaStore) Count(ctx context.Context, subject string) (int, error) {
	collection, err := s.client.GetCollection(ctx, collectionName(subject))
	if err != nil {
		return 0, nil
	}
	count, err := collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (s *ChromaStore) Exists(ctx context.Context, subject string) (bool, error) {
	n, err := s.Count(ctx, subject)
	return n > 0, err
}

func (s *ChromaStore) Drop(ctx context.Context, subject string) error {
	if err := s.client.DeleteCollection(ctx, collectionName(subject)); err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionName(subject), err)
	}
	return nil
}

func (s *ChromaStore) Close() error {
	return s.client.Close()
}
