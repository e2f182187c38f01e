package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"videoReason/config"
	"videoReason/core"
)

// PgVectorStore keeps segment embeddings in Postgres with the pgvector
// extension and searches by cosine distance.
type PgVectorStore struct {
	conn     *pgx.Conn
	embedder QueryEmbedder
	dim      int
}

func NewPgVectorStore(ctx context.Context, cfg *config.Settings, embedder QueryEmbedder) (*PgVectorStore, error) {
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("postgres_url not configured")
	}

	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{conn: conn, embedder: embedder, dim: cfg.EmbeddingDim}
	if err := s.ensureTable(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) Close(ctx context.Context) error { return s.conn.Close(ctx) }

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	tableQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS video_segments (
			id SERIAL PRIMARY KEY,
			segment_id VARCHAR(255) NOT NULL,
			video_uri VARCHAR(1024) NOT NULL,
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(video_uri, segment_id)
		);
	`, s.dim)
	if _, err := s.conn.Exec(ctx, tableQuery); err != nil {
		return fmt.Errorf("create video_segments table: %w", err)
	}

	indexQuery := `
		CREATE INDEX IF NOT EXISTS idx_video_segments_embedding
		ON video_segments
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100);
	`
	if _, err := s.conn.Exec(ctx, indexQuery); err != nil {
		log.Printf("Warning: failed to create vector index: %v", err)
	}
	return nil
}

// Upsert writes the batch in one transaction so ingestion stays
// all-or-nothing. The (video_uri, segment_id) conflict target makes
// re-ingestion update in place.
func (s *PgVectorStore) Upsert(ctx context.Context, vectors []core.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := uniformDims(vectors); err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range vectors {
		_, err := tx.Exec(ctx, `
			INSERT INTO video_segments (segment_id, video_uri, start_time, end_time, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (video_uri, segment_id)
			DO UPDATE SET
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				embedding = EXCLUDED.embedding
		`, v.ID, v.Metadata.VideoURI, v.Metadata.StartTime, v.Metadata.EndTime, pgvector.NewVector(v.Embedding))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, query string, topK int) ([]core.RetrievedSegment, error) {
	qv, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT segment_id, video_uri, start_time, end_time,
		       1 - (embedding <=> $1) AS similarity
		FROM video_segments
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(qv), topK)
	if err != nil {
		return nil, fmt.Errorf("query video_segments: %w", err)
	}
	defer rows.Close()

	var hits []core.RetrievedSegment
	for rows.Next() {
		var h core.RetrievedSegment
		if err := rows.Scan(&h.ID, &h.VideoURI, &h.StartTime, &h.EndTime, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
