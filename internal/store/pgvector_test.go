package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[]", formatVector(nil))
	assert.Equal(t, "[1.000000,-0.500000,0.000000]", formatVector([]float32{1, -0.5, 0}))
}

func TestNewPgVectorIndexWithPool_Validation(t *testing.T) {
	_, err := NewPgVectorIndexWithPool(nil, PgVectorConfig{Table: "entries; drop table x", Dimensions: 4})
	assert.Error(t, err)

	_, err = NewPgVectorIndexWithPool(nil, PgVectorConfig{Dimensions: 0})
	assert.Error(t, err)

	idx, err := NewPgVectorIndexWithPool(nil, PgVectorConfig{Dimensions: 4})
	require.NoError(t, err)
	assert.Equal(t, DefaultPgVectorTable, idx.table)
}

// Needs a Postgres with the vector extension available.
func TestPgVectorIndex_Roundtrip(t *testing.T) {
	dsn := os.Getenv("AMANLEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AMANLEX_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	idx, err := NewPgVectorIndex(ctx, PgVectorConfig{DSN: dsn, Table: "amanlex_test_embeddings", Dimensions: 3})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	_, err = idx.db.Exec(ctx, "TRUNCATE amanlex_test_embeddings")
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0.9, 0.1, 0}}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Greater(t, hits[0].Similarity, 0.9)
	assert.Equal(t, 2, idx.Count())
}
