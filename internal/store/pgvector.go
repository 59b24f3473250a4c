package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPgVectorTable holds one embedding per entry.
const DefaultPgVectorTable = "entry_embeddings"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgVectorConfig configures the Postgres vector index.
type PgVectorConfig struct {
	DSN        string
	Table      string
	Dimensions int
}

// PgVectorIndex implements VectorIndex over a pgvector column, searched
// with the cosine distance operator <=>.
type PgVectorIndex struct {
	db    *pgxpool.Pool
	table string
	dims  int
	owned bool
}

var _ VectorIndex = (*PgVectorIndex)(nil)

// NewPgVectorIndex connects to cfg.DSN and ensures the table exists.
func NewPgVectorIndex(ctx context.Context, cfg PgVectorConfig) (*PgVectorIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector backend requires a postgres dsn")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx, err := NewPgVectorIndexWithPool(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	idx.owned = true
	if err := idx.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// NewPgVectorIndexWithPool uses an existing pool. The caller keeps
// ownership of the pool.
func NewPgVectorIndexWithPool(pool *pgxpool.Pool, cfg PgVectorConfig) (*PgVectorIndex, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultPgVectorTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid pgvector table name %q", table)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector backend requires positive dimensions, got %d", cfg.Dimensions)
	}
	return &PgVectorIndex{db: pool, table: table, dims: cfg.Dimensions}, nil
}

// EnsureSchema creates the vector extension and embedding table.
func (p *PgVectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			entry_id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, p.table, p.dims),
	}
	for _, s := range stmts {
		if _, err := p.db.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to ensure pgvector schema: %w", err)
		}
	}
	return nil
}

// Add implements VectorIndex with one batched upsert.
func (p *PgVectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (entry_id, embedding) VALUES ($1, $2::vector)
		ON CONFLICT (entry_id) DO UPDATE SET embedding = EXCLUDED.embedding`, p.table)

	batch := &pgx.Batch{}
	for i, id := range ids {
		if len(vectors[i]) != p.dims {
			return ErrDimensionMismatch{Expected: p.dims, Got: len(vectors[i])}
		}
		batch.Queue(upsert, id, formatVector(vectors[i]))
	}

	br := p.db.SendBatch(ctx, batch)
	defer br.Close()
	for range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert embedding: %w", err)
		}
	}
	return nil
}

// Search implements VectorIndex.
func (p *PgVectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		return []VectorHit{}, nil
	}
	if len(query) != p.dims {
		return nil, ErrDimensionMismatch{Expected: p.dims, Got: len(query)}
	}

	sql := fmt.Sprintf(`
		SELECT entry_id, embedding <=> $1::vector AS distance
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, p.table)

	rows, err := p.db.Query(ctx, sql, formatVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	hits := make([]VectorHit, 0, k)
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		hits = append(hits, VectorHit{ID: id, Similarity: cosineToSimilarity(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return hits, nil
}

// Count implements VectorIndex. It returns 0 when the database is
// unreachable.
func (p *PgVectorIndex) Count() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var n int
	if err := p.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close releases the pool if this index opened it.
func (p *PgVectorIndex) Close() error {
	if p.owned {
		p.db.Close()
	}
	return nil
}

// formatVector renders v in pgvector's text input format.
func formatVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', 6, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
