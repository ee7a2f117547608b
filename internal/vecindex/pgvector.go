package vecindex

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

type pgvectorConfig struct {
	DSN        string `json:"dsn"`
	Dimensions int    `json:"dimensions"`
}

// pgvectorIndex stores every location's chunks in one table and relies on
// the pgvector cosine distance operator for ranking.
type pgvectorIndex struct {
	db *sqlx.DB
}

func init() {
	Register("pgvector", createPgvectorIndex)
}

func createPgvectorIndex(args interface{}) (Index, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS store_chunks (
			location  TEXT NOT NULL,
			sequence  INTEGER NOT NULL,
			source_id TEXT NOT NULL,
			content   TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (location, sequence)
		);
		CREATE INDEX IF NOT EXISTS store_chunks_location_idx ON store_chunks (location);
	`, cfg.Dimensions)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init pgvector schema: %w", err)
	}
	return &pgvectorIndex{db: db}, nil
}

func (s *pgvectorIndex) Upsert(ctx context.Context, location string, chunks []EmbeddedChunk) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM store_chunks WHERE location = $1`, location); err != nil {
		return err
	}
	const insert = `
		INSERT INTO store_chunks (location, sequence, source_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			location, chunk.Sequence, chunk.SourceID, chunk.Text, pgvector.NewVector(chunk.Vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgvectorIndex) Query(ctx context.Context, location string, vector []float32, k int) ([]ScoredChunk, error) {
	const query = `
		SELECT content, sequence, source_id, 1 - (embedding <=> $1) AS score
		FROM store_chunks
		WHERE location = $2
		ORDER BY embedding <=> $1, sequence
		LIMIT $3
	`
	limit := any(k)
	if k <= 0 {
		limit = nil // LIMIT NULL returns every row
	}
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(vector), location, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ScoredChunk
	for rows.Next() {
		var hit ScoredChunk
		if err := rows.Scan(&hit.Text, &hit.Sequence, &hit.SourceID, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		var count int
		if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM store_chunks WHERE location = $1`, location); err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingLocation, location)
		}
	}
	return hits, nil
}

func (s *pgvectorIndex) Drop(ctx context.Context, location string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM store_chunks WHERE location = $1`, location)
	return err
}
