// Package pgstore persists consistency-telemetry vectors in PostgreSQL so
// drift can be tracked per speaker session across engine instances and
// process restarts.
//
// The pgvector extension must be available in the target database; [Migrate]
// installs it via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := pgstore.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	consistency := telemetry.New(embedder, telemetry.WithCache(store.Session(sessionID)))
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/speechcoach/internal/telemetry"
)

// ddl returns the schema with the embedding dimension substituted. The
// dimension is baked into the column type at creation time.
func ddl(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS evaluation_embeddings (
    session_id  TEXT         PRIMARY KEY,
    model       TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`, embeddingDimensions)
}

// Migrate creates the evaluation_embeddings table if needed. It is
// idempotent and safe to call on every start.
//
// embeddingDimensions must match the configured embedding model (e.g. 1536
// for text-embedding-3-small). Changing it after the first migration
// requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("pgstore: migrate: embedding dimensions must be positive, got %d", embeddingDimensions)
	}
	if _, err := pool.Exec(ctx, ddl(embeddingDimensions)); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// Store holds the connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, registers pgvector types on every connection and
// runs [Migrate].
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Session returns a [telemetry.VectorCache] keyed by sessionID.
func (s *Store) Session(sessionID string) *SessionCache {
	return &SessionCache{pool: s.pool, sessionID: sessionID}
}

// SessionCache is the [telemetry.VectorCache] for one session.
type SessionCache struct {
	pool      *pgxpool.Pool
	sessionID string
}

var _ telemetry.VectorCache = (*SessionCache)(nil)

// Load implements [telemetry.VectorCache].
func (c *SessionCache) Load(ctx context.Context) (telemetry.Vector, bool, error) {
	const q = `SELECT model, embedding FROM evaluation_embeddings WHERE session_id = $1`

	var (
		model string
		vec   pgvector.Vector
	)
	err := c.pool.QueryRow(ctx, q, c.sessionID).Scan(&model, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return telemetry.Vector{}, false, nil
	}
	if err != nil {
		return telemetry.Vector{}, false, fmt.Errorf("pgstore: load %q: %w", c.sessionID, err)
	}
	return telemetry.Vector{Model: model, Values: vec.Slice()}, true, nil
}

// Save implements [telemetry.VectorCache]. It upserts the session's row.
func (c *SessionCache) Save(ctx context.Context, v telemetry.Vector) error {
	const q = `
		INSERT INTO evaluation_embeddings (session_id, model, embedding, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id) DO UPDATE SET
		    model      = EXCLUDED.model,
		    embedding  = EXCLUDED.embedding,
		    updated_at = EXCLUDED.updated_at`

	if _, err := c.pool.Exec(ctx, q, c.sessionID, v.Model, pgvector.NewVector(v.Values)); err != nil {
		return fmt.Errorf("pgstore: save %q: %w", c.sessionID, err)
	}
	return nil
}
