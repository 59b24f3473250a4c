package store

import (
	"context"
	"fmt"
	"strings"
)

// LexicalBackend selects the lexical candidate index.
type LexicalBackend string

const (
	// LexicalBackendBleve is an in-memory bleve index (default).
	LexicalBackendBleve LexicalBackend = "bleve"

	// LexicalBackendSQLite is SQLite FTS5, in memory or at a file path.
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendNone disables the index; the lexical channel then
	// relies on the full corpus scan alone.
	LexicalBackendNone LexicalBackend = "none"
)

// VectorBackend selects the vector index.
type VectorBackend string

const (
	VectorBackendHNSW     VectorBackend = "hnsw"
	VectorBackendPgVector VectorBackend = "pgvector"
)

// Config selects and configures both indexes.
type Config struct {
	Lexical    LexicalBackend
	SQLitePath string

	Vector     VectorBackend
	Dimensions int
	PgVector   PgVectorConfig
}

// NewLexicalIndex creates the configured lexical index. LexicalBackendNone
// returns a nil index and no error.
func NewLexicalIndex(cfg Config) (LexicalIndex, error) {
	switch LexicalBackend(strings.ToLower(string(cfg.Lexical))) {
	case LexicalBackendBleve, "":
		idx, err := NewBleveIndex()
		if err != nil {
			return nil, err
		}
		return idx, nil
	case LexicalBackendSQLite:
		idx, err := NewSQLiteIndex(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case LexicalBackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: bleve, sqlite, none)", cfg.Lexical)
	}
}

// NewVectorIndex creates the configured vector index.
func NewVectorIndex(ctx context.Context, cfg Config) (VectorIndex, error) {
	switch VectorBackend(strings.ToLower(string(cfg.Vector))) {
	case VectorBackendHNSW, "":
		return NewHNSWIndex(DefaultHNSWConfig(cfg.Dimensions)), nil
	case VectorBackendPgVector:
		pc := cfg.PgVector
		if pc.Dimensions == 0 {
			pc.Dimensions = cfg.Dimensions
		}
		idx, err := NewPgVectorIndex(ctx, pc)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: hnsw, pgvector)", cfg.Vector)
	}
}
