package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// SQLiteIndex implements LexicalIndex with SQLite FTS5 and its bm25()
// ranking. Text is normalized before it is stored so FTS5 sees the same
// terms the query normalizer produces.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ LexicalIndex = (*SQLiteIndex)(nil)

// bm25 column weights, in table column order. entry_id is UNINDEXED but
// still takes a slot.
const sqliteRank = `bm25(entries_fts, 0.0, 10.0, 8.0, 3.0, 1.0, 5.0)`

// NewSQLiteIndex opens or creates an FTS5 index at path. An empty path
// creates an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database is private to its connection,
	// and a file database has a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path == "" {
		pragmas = pragmas[1:]
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	_, err := s.db.Exec(`
	CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
		entry_id UNINDEXED,
		title,
		citation,
		summary,
		body,
		tags,
		tokenize='unicode61'
	);
	`)
	return err
}

// Index implements LexicalIndex. FTS5 has no REPLACE, so an existing id is
// deleted before it is inserted.
func (s *SQLiteIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM entries_fts WHERE entry_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO entries_fts(entry_id, title, citation, summary, body, tags) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer ins.Close()

	for _, doc := range docs {
		if _, err := del.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		_, err := ins.ExecContext(ctx, doc.ID,
			normalize.Normalize(doc.Title),
			normalize.Normalize(doc.Citation),
			normalize.Normalize(doc.Summary),
			normalize.Normalize(doc.Body),
			normalize.Normalize(strings.Join(doc.Tags, " ")),
		)
		if err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Search implements LexicalIndex. Query terms are OR-ed; bm25() ranks
// documents matching more and rarer terms first.
func (s *SQLiteIndex) Search(ctx context.Context, q string, limit int) ([]LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	match := ftsMatchExpr(q)
	if match == "" || limit <= 0 {
		return []LexicalHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, `+sqliteRank+` AS score
		FROM entries_fts
		WHERE entries_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// bm25() is negative, lower is better.
		hits = append(hits, LexicalHit{ID: id, Score: -score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []LexicalHit{}
	}
	return hits, nil
}

// ftsMatchExpr builds an FTS5 MATCH expression of quoted, OR-ed content
// terms. Quoting keeps characters like "(" from being parsed as syntax.
func ftsMatchExpr(q string) string {
	tokens := normalize.ContentTokens(normalize.Normalize(q))
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Count implements LexicalIndex.
func (s *SQLiteIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries_fts`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close implements LexicalIndex.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
