package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/grantgpt/grant-matcher/internal/vectorstore"
)

// Store keeps the grant index in Postgres with a pgvector embedding column.
// The pool must have pgvector types registered (see db.Connect).
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	// Dimension is baked into the column type; a mismatch against an
	// existing table fails on the first upsert, which is the desired
	// behavior — indexing and querying must agree exactly.
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS grant_index (
			point_id UUID PRIMARY KEY,
			grant_id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, dimension)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to ensure grant_index table: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", p.ID, err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO grant_index (point_id, grant_id, embedding, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (point_id) DO UPDATE SET
				grant_id = EXCLUDED.grant_id,
				embedding = EXCLUDED.embedding,
				payload = EXCLUDED.payload,
				updated_at = NOW()
		`, vectorstore.PointID(p.ID), p.ID, pgvec.NewVector(p.Vector), payload)
		if err != nil {
			return fmt.Errorf("upsert failed for %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]vectorstore.Match, error) {
	where := "WHERE 1=1"
	args := []interface{}{pgvec.NewVector(vector)}
	argIdx := 2

	if threshold > 0 {
		where += fmt.Sprintf(" AND 1 - (embedding <=> $1) >= $%d", argIdx)
		args = append(args, threshold)
		argIdx++
	}
	where, args, argIdx = appendPayloadFilters(where, args, argIdx, filters)

	sql := fmt.Sprintf(`
		SELECT point_id, payload, 1 - (embedding <=> $1) AS score
		FROM grant_index
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, where, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var matches []vectorstore.Match
	for rows.Next() {
		var m vectorstore.Match
		var payloadRaw []byte
		if err := rows.Scan(&m.ID, &payloadRaw, &m.Score); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if err := json.Unmarshal(payloadRaw, &m.Payload); err != nil {
			return nil, fmt.Errorf("payload decode failed: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return matches, nil
}

func (s *Store) Scroll(ctx context.Context, filters map[string]string, limit, offset int) ([]vectorstore.Match, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	where, args, argIdx = appendPayloadFilters(where, args, argIdx, filters)

	sql := fmt.Sprintf(`
		SELECT point_id, payload
		FROM grant_index
		%s
		ORDER BY grant_id
		LIMIT $%d OFFSET $%d
	`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("scroll query failed: %w", err)
	}
	defer rows.Close()

	matches := []vectorstore.Match{}
	for rows.Next() {
		var m vectorstore.Match
		var payloadRaw []byte
		if err := rows.Scan(&m.ID, &payloadRaw); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if err := json.Unmarshal(payloadRaw, &m.Payload); err != nil {
			return nil, fmt.Errorf("payload decode failed: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context, filters map[string]string) (int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1
	where, args, _ = appendPayloadFilters(where, args, argIdx, filters)

	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM grant_index "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

func (s *Store) Delete(ctx context.Context, grantID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM grant_index WHERE point_id = $1", vectorstore.PointID(grantID))
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func appendPayloadFilters(where string, args []interface{}, argIdx int, filters map[string]string) (string, []interface{}, int) {
	for key, value := range filters {
		// the cast disambiguates the ->> operator (text key vs array index)
		where += fmt.Sprintf(" AND payload->>$%d::text = $%d", argIdx, argIdx+1)
		args = append(args, key, value)
		argIdx += 2
	}
	return where, args, argIdx
}
