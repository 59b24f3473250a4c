package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// Filters narrow retrieval to a subset of the corpus. Zero values match
// everything.
type Filters struct {
	Type         EntryType `json:"type,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Status       Status    `json:"status,omitempty"`
	Verified     *bool     `json:"verified,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Type == "" && f.Jurisdiction == "" && f.Status == "" && f.Verified == nil
}

// Match reports whether e passes every set filter (AND logic).
func (f Filters) Match(e *Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Jurisdiction != "" && !strings.EqualFold(e.Jurisdiction, f.Jurisdiction) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Verified != nil && e.IsVerified() != *f.Verified {
		return false
	}
	return true
}

// ParseFilters builds Filters from user-supplied strings. Type and status
// are case-insensitive and must be known values when set.
func ParseFilters(typ, jurisdiction, status string, verified *bool) (Filters, error) {
	f := Filters{
		Type:         EntryType(strings.ToLower(strings.TrimSpace(typ))),
		Jurisdiction: strings.TrimSpace(jurisdiction),
		Status:       Status(strings.ToLower(strings.TrimSpace(status))),
		Verified:     verified,
	}
	if f.Type != "" && !f.Type.Valid() {
		return Filters{}, amanerrors.New(amanerrors.ErrCodeInvalidFilter, "unknown entry type: "+typ, nil).
			WithSuggestion("Use an entry type such as statute_section, rule_of_court or jurisprudence")
	}
	if f.Status != "" && !f.Status.Valid() {
		return Filters{}, amanerrors.New(amanerrors.ErrCodeInvalidFilter, "unknown status: "+status, nil).
			WithSuggestion("Use active, amended or repealed")
	}
	return f, nil
}

// Corpus is an immutable snapshot of entries. It is safe for concurrent use.
type Corpus struct {
	entries []*Entry
	byID    map[string]*Entry
}

// New builds a corpus from entries, rejecting invalid or duplicate entries.
func New(entries []*Entry) (*Corpus, error) {
	c := &Corpus{
		entries: make([]*Entry, 0, len(entries)),
		byID:    make(map[string]*Entry, len(entries)),
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entry_id %q", e.ID)
		}
		c.entries = append(c.entries, e)
		c.byID[e.ID] = e
	}
	return c, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(entries ...*Entry) *Corpus {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of entries.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// Get returns the entry with the given id.
func (c *Corpus) Get(id string) (*Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// All returns every entry in load order. Callers must not modify the slice.
func (c *Corpus) All() []*Entry {
	return c.entries
}

// Filter returns the entries matching f in load order.
func (c *Corpus) Filter(f Filters) []*Entry {
	if f.IsZero() {
		return c.entries
	}
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the entries for which match returns true, in load order.
func (c *Corpus) Find(f Filters, match func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range c.entries {
		if f.Match(e) && match(e) {
			out = append(out, e)
		}
	}
	return out
}

// LoadFile reads a JSON array of entries.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read corpus file %s", path), err).
			WithSuggestion("Pass --corpus with the path to an exported entries JSON file")
	}
	return Parse(data)
}

// Parse decodes a JSON array of entries into a corpus.
func Parse(data []byte) (*Corpus, error) {
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeCorpusInvalid, "corpus is not a JSON array of entries", err)
	}
	c, err := New(entries)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeCorpusInvalid, err.Error(), err)
	}
	return c, nil
}
