package storage

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videoReason/config"
	"videoReason/core"
)

// MilvusVectorStore keeps segment embeddings in a Milvus collection
// with an HNSW cosine index.
type MilvusVectorStore struct {
	mc       client.Client
	embedder QueryEmbedder
	coll     string
	dim      int
}

func NewMilvusVectorStore(ctx context.Context, cfg *config.Settings, embedder QueryEmbedder) (*MilvusVectorStore, error) {
	addr := cfg.MilvusAddr
	if addr == "" {
		addr = "localhost:19530"
	}

	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		APIKey:   cfg.MilvusAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusVectorStore{mc: mc, embedder: embedder, coll: cfg.MilvusCollection, dim: cfg.EmbeddingDim}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusVectorStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		// segment id as explicit primary key so Upsert is idempotent
		schema.WithField(entity.NewField().WithName("segment_id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("video_uri").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
		schema.WithField(entity.NewField().WithName("start_time").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end_time").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusVectorStore) Upsert(ctx context.Context, vectors []core.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := uniformDims(vectors); err != nil {
		return err
	}

	ids := make([]string, 0, len(vectors))
	uris := make([]string, 0, len(vectors))
	starts := make([]float64, 0, len(vectors))
	ends := make([]float64, 0, len(vectors))
	embeds := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		ids = append(ids, v.ID)
		uris = append(uris, v.Metadata.VideoURI)
		starts = append(starts, v.Metadata.StartTime)
		ends = append(ends, v.Metadata.EndTime)
		embeds = append(embeds, v.Embedding)
	}

	_, err := s.mc.Upsert(ctx, s.coll, "",
		entity.NewColumnVarChar("segment_id", ids),
		entity.NewColumnVarChar("video_uri", uris),
		entity.NewColumnDouble("start_time", starts),
		entity.NewColumnDouble("end_time", ends),
		entity.NewColumnFloatVector("vector", s.dim, embeds),
	)
	if err != nil {
		return fmt.Errorf("upsert to milvus: %w", err)
	}
	return nil
}

func (s *MilvusVectorStore) Query(ctx context.Context, query string, topK int) ([]core.RetrievedSegment, error) {
	qv, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, fmt.Errorf("search param: %w", err)
	}
	res, err := s.mc.Search(ctx, s.coll, []string{}, "",
		[]string{"segment_id", "video_uri", "start_time", "end_time"},
		[]entity.Vector{entity.FloatVector(qv)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search milvus: %w", err)
	}

	var hits []core.RetrievedSegment
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var h core.RetrievedSegment
			if c, ok := cols["segment_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.ID = data[i]
				}
			}
			if c, ok := cols["video_uri"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.VideoURI = data[i]
				}
			}
			if c, ok := cols["start_time"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					h.StartTime = data[i]
				}
			}
			if c, ok := cols["end_time"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					h.EndTime = data[i]
				}
			}
			h.Score = float64(r.Scores[i])
			hits = append(hits, h)
		}
	}
	return hits, nil
}
