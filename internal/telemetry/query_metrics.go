// Package telemetry records how legal questions are asked and answered:
// query shapes, gate outcomes, frequent terms and the questions the engine
// refused. Everything stays on the local machine.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// QueryType is the retrieval shape a search resolved to.
type QueryType string

const (
	// QueryTypeLexical covers citation lookups and keyword matches.
	QueryTypeLexical  QueryType = "lexical"
	QueryTypeSemantic QueryType = "semantic"
	QueryTypeMixed    QueryType = "mixed"
)

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one completed search.
type QueryEvent struct {
	Query     string
	QueryType QueryType
	// Outcome is the gate outcome (answer, refuse, safety_advisory).
	Outcome     string
	ResultCount int
	Reranked    bool
	Degraded    []string
	Latency     time.Duration
	Timestamp   time.Time
}

// Refused reports whether the engine declined to answer.
func (e QueryEvent) Refused() bool {
	return e.Outcome == "refuse" || e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer. A non-positive capacity means 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
		return out
	}
	n := copy(out, b.items[b.head:])
	copy(out[n:], b.items[:b.head])
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms returns the content tokens of a query worth counting:
// normalized, stopwords removed, at least three characters or a number.
func ExtractTerms(query string) []string {
	var terms []string
	for _, tok := range normalize.ContentTokens(normalize.Normalize(query)) {
		if len(tok) >= 3 || isDigits(tok) {
			terms = append(terms, tok)
		}
	}
	return terms
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryMetricsSnapshot is a point-in-time copy of the counters.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	OutcomeCounts       map[string]int64        `json:"outcome_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	RefusedQueries      []string                `json:"refused_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	DegradedCounts      map[string]int64        `json:"degraded_counts,omitempty"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	RerankedCount       int64                   `json:"reranked_count"`
	RepeatCount         int64                   `json:"repeat_count"`
	Since               time.Time               `json:"since"`
}

// RefusalRate returns the share of queries the gate refused, in [0,1].
func (s *QueryMetricsSnapshot) RefusalRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.OutcomeCounts["refuse"]) / float64(s.TotalQueries)
}

// Summary renders a one-line overview for the stats command.
func (s *QueryMetricsSnapshot) Summary() string {
	if s.TotalQueries == 0 {
		return "no queries recorded"
	}
	return fmt.Sprintf("queries=%d answered=%d refused=%d (%.1f%%) advisories=%d reranked=%d repeats=%d",
		s.TotalQueries,
		s.OutcomeCounts["answer"],
		s.OutcomeCounts["refuse"],
		s.RefusalRate()*100,
		s.OutcomeCounts["safety_advisory"],
		s.RerankedCount,
		s.RepeatCount)
}

// QueryMetricsStore persists aggregated counters.
type QueryMetricsStore interface {
	// SaveQueryTypeCounts adds daily query type counts.
	SaveQueryTypeCounts(date string, counts map[QueryType]int64) error
	GetQueryTypeCounts(from, to string) (map[QueryType]int64, error)

	// SaveOutcomeCounts adds daily gate outcome counts.
	SaveOutcomeCounts(date string, counts map[string]int64) error
	GetOutcomeCounts(from, to string) (map[string]int64, error)

	UpsertTermCounts(terms map[string]int64) error
	GetTopTerms(limit int) ([]TermCount, error)

	// AddRefusedQuery appends to a bounded log of refused questions.
	AddRefusedQuery(query string, timestamp time.Time) error
	GetRefusedQueries(limit int) ([]string, error)

	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // default 100
	RefusedCapacity       int           // default 100
	RecentQueriesCapacity int           // default 500
	FlushInterval         time.Duration // default 60s, 0 disables auto-flush
}

// DefaultQueryMetricsConfig returns the defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		RefusedCapacity:       100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// QueryMetrics aggregates query events in memory and flushes deltas to an
// optional store. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	queryTypes    map[QueryType]int64
	outcomes      map[string]int64
	latencies     map[LatencyBucket]int64
	degraded      map[string]int64
	topTerms      *lru.Cache[string, int64]
	refused       *CircularBuffer[string]
	recentQueries *lru.Cache[string, struct{}]
	total         int64
	zeroResults   int64
	reranked      int64
	repeats       int64
	startTime     time.Time

	// pending holds counts not yet flushed.
	pending pendingCounts

	store  QueryMetricsStore
	config QueryMetricsConfig
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

type pendingCounts struct {
	queryTypes map[QueryType]int64
	outcomes   map[string]int64
	latencies  map[LatencyBucket]int64
	terms      map[string]int64
	refused    []refusedQuery
}

type refusedQuery struct {
	query string
	at    time.Time
}

func newPending() pendingCounts {
	return pendingCounts{
		queryTypes: make(map[QueryType]int64),
		outcomes:   make(map[string]int64),
		latencies:  make(map[LatencyBucket]int64),
		terms:      make(map[string]int64),
	}
}

// NewQueryMetrics creates a collector with default configuration. A nil
// store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.RefusedCapacity <= 0 {
		cfg.RefusedCapacity = def.RefusedCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		queryTypes:    make(map[QueryType]int64),
		outcomes:      make(map[string]int64),
		latencies:     make(map[LatencyBucket]int64),
		degraded:      make(map[string]int64),
		topTerms:      topTerms,
		refused:       NewCircularBuffer[string](cfg.RefusedCapacity),
		recentQueries: recent,
		startTime:     time.Now(),
		pending:       newPending(),
		store:         store,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.ticker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record folds one event into the counters.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.total++
	m.queryTypes[event.QueryType]++
	m.pending.queryTypes[event.QueryType]++
	if event.Outcome != "" {
		m.outcomes[event.Outcome]++
		m.pending.outcomes[event.Outcome]++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pending.latencies[bucket]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pending.terms[term]++
	}

	if event.ResultCount == 0 {
		m.zeroResults++
	}
	if event.Refused() {
		m.refused.Add(event.Query)
		m.pending.refused = append(m.pending.refused, refusedQuery{query: event.Query, at: event.Timestamp})
	}
	if event.Reranked {
		m.reranked++
	}
	for _, d := range event.Degraded {
		m.degraded[d]++
	}

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.repeats++
	}
	m.recentQueries.Add(key, struct{}{})
}

// hashQuery keys a query by its normalized text.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(normalize.Normalize(query)))
	return hex.EncodeToString(sum[:16])
}

// Snapshot copies the current counters.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     copyMap(m.queryTypes),
		OutcomeCounts:       copyMap(m.outcomes),
		TopTerms:            terms,
		RefusedQueries:      m.refused.Items(),
		LatencyDistribution: copyMap(m.latencies),
		DegradedCounts:      copyMap(m.degraded),
		TotalQueries:        m.total,
		ZeroResultCount:     m.zeroResults,
		RerankedCount:       m.reranked,
		RepeatCount:         m.repeats,
		Since:               m.startTime,
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Flush writes the counts gathered since the last flush to the store. A
// failed flush drops the pending counts.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	p := m.pending
	m.pending = newPending()
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if len(p.queryTypes) > 0 {
		if err := m.store.SaveQueryTypeCounts(today, p.queryTypes); err != nil {
			return fmt.Errorf("flush query types: %w", err)
		}
	}
	if len(p.outcomes) > 0 {
		if err := m.store.SaveOutcomeCounts(today, p.outcomes); err != nil {
			return fmt.Errorf("flush outcomes: %w", err)
		}
	}
	if err := m.store.UpsertTermCounts(p.terms); err != nil {
		return fmt.Errorf("flush terms: %w", err)
	}
	if len(p.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, p.latencies); err != nil {
			return fmt.Errorf("flush latencies: %w", err)
		}
	}
	for _, r := range p.refused {
		if err := m.store.AddRefusedQuery(r.query, r.at); err != nil {
			return fmt.Errorf("flush refused queries: %w", err)
		}
	}
	return nil
}

// Close stops auto-flush, flushes once more and closes the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stopCh)
	}
	if err := m.Flush(); err != nil {
		return err
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// TopTermsString renders the n most frequent terms as "term(count)".
func (s *QueryMetricsSnapshot) TopTermsString(n int) string {
	parts := make([]string, 0, n)
	for i, tc := range s.TopTerms {
		if i == n {
			break
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", tc.Term, tc.Count))
	}
	return strings.Join(parts, " ")
}
