package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// maxRefusedQueries bounds the refused_queries table.
const maxRefusedQueries = 200

const telemetrySchema = `
CREATE TABLE IF NOT EXISTS query_type_stats (
	date TEXT NOT NULL,
	query_type TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, query_type)
);

CREATE TABLE IF NOT EXISTS gate_outcome_stats (
	date TEXT NOT NULL,
	outcome TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, outcome)
);

CREATE TABLE IF NOT EXISTS query_terms (
	term TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

CREATE TABLE IF NOT EXISTS refused_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS query_latency_stats (
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);
`

// SQLiteMetricsStore implements QueryMetricsStore on SQLite.
type SQLiteMetricsStore struct {
	db *sql.DB
	// owned is set when the store opened db itself.
	owned bool
}

var _ QueryMetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore wraps a shared connection. The schema must exist.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// OpenSQLiteMetricsStore opens (or creates) a telemetry database at path.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMetricsStore{db: db, owned: true}, nil
}

// InitTelemetrySchema creates the telemetry tables if they don't exist.
func InitTelemetrySchema(db *sql.DB) error {
	if _, err := db.Exec(telemetrySchema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// addDaily upserts additive counts into a (date, key, count) table.
func (s *SQLiteMetricsStore) addDaily(table, keyCol, date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (date, %s, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, %s) DO UPDATE SET count = count + excluded.count
	`, table, keyCol, keyCol))
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sumDaily totals a (date, key, count) table over [from, to].
func (s *SQLiteMetricsStore) sumDaily(table, keyCol, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s, SUM(count)
		FROM %s
		WHERE date >= ? AND date <= ?
		GROUP BY %s
	`, keyCol, table, keyCol), from, to)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// SaveQueryTypeCounts adds daily query type counts.
func (s *SQLiteMetricsStore) SaveQueryTypeCounts(date string, counts map[QueryType]int64) error {
	m := make(map[string]int64, len(counts))
	for k, v := range counts {
		m[string(k)] = v
	}
	return s.addDaily("query_type_stats", "query_type", date, m)
}

// GetQueryTypeCounts totals query types over a date range.
func (s *SQLiteMetricsStore) GetQueryTypeCounts(from, to string) (map[QueryType]int64, error) {
	raw, err := s.sumDaily("query_type_stats", "query_type", from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[QueryType]int64, len(raw))
	for k, v := range raw {
		out[QueryType(k)] = v
	}
	return out, nil
}

// SaveOutcomeCounts adds daily gate outcome counts.
func (s *SQLiteMetricsStore) SaveOutcomeCounts(date string, counts map[string]int64) error {
	return s.addDaily("gate_outcome_stats", "outcome", date, counts)
}

// GetOutcomeCounts totals gate outcomes over a date range.
func (s *SQLiteMetricsStore) GetOutcomeCounts(from, to string) (map[string]int64, error) {
	return s.sumDaily("gate_outcome_stats", "outcome", from, to)
}

// SaveLatencyCounts adds daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	m := make(map[string]int64, len(counts))
	for k, v := range counts {
		m[string(k)] = v
	}
	return s.addDaily("query_latency_stats", "bucket", date, m)
}

// GetLatencyCounts totals the latency histogram over a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	raw, err := s.sumDaily("query_latency_stats", "bucket", from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[LatencyBucket]int64, len(raw))
	for k, v := range raw {
		out[LatencyBucket(k)] = v
	}
	return out, nil
}

// UpsertTermCounts adds term frequency counts.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.Exec(term, count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopTerms returns the most frequent terms, ties by term.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddRefusedQuery logs a refused question, keeping the newest
// maxRefusedQueries rows.
func (s *SQLiteMetricsStore) AddRefusedQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`INSERT INTO refused_queries (query, timestamp) VALUES (?, ?)`, query, timestamp); err != nil {
		return fmt.Errorf("insert refused query: %w", err)
	}
	_, err := s.db.Exec(`
		DELETE FROM refused_queries
		WHERE id NOT IN (
			SELECT id FROM refused_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, maxRefusedQueries)
	if err != nil {
		return fmt.Errorf("trim refused queries: %w", err)
	}
	return nil
}

// GetRefusedQueries returns the newest refused questions first.
func (s *SQLiteMetricsStore) GetRefusedQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM refused_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query refused queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Close closes the database when the store opened it.
func (s *SQLiteMetricsStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
