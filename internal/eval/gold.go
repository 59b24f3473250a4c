// Package eval measures ranking quality against a labeled gold set and
// maintains that gold set.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/normalize"
)

// GoldRecord is one labeled query. IdealTop is ordered, best first.
type GoldRecord struct {
	Query    string          `json:"query"`
	Filters  *corpus.Filters `json:"filters,omitempty"`
	IdealTop []string        `json:"ideal_top"`
}

// Labeled reports whether the record counts toward metrics.
func (g GoldRecord) Labeled() bool {
	return len(g.IdealTop) > 0
}

func (g GoldRecord) filters() corpus.Filters {
	if g.Filters == nil {
		return corpus.Filters{}
	}
	return *g.Filters
}

// ParseGold decodes a JSON array of gold records. A query that normalizes
// to nothing, such as "?", is rejected here so it cannot abort a run.
func ParseGold(data []byte) ([]GoldRecord, error) {
	var records []GoldRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeGoldInvalid, "gold file is not a JSON array of records", err)
	}
	for i, r := range records {
		if normalize.Normalize(r.Query) == "" {
			return nil, amanerrors.New(amanerrors.ErrCodeGoldInvalid,
				fmt.Sprintf("gold record %d has an empty query %q", i, r.Query), nil).
				WithDetail("record", strconv.Itoa(i))
		}
	}
	return records, nil
}

// LoadGold reads a gold file.
func LoadGold(path string) ([]GoldRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, amanerrors.New(amanerrors.ErrCodeFileNotFound, "gold file not found: "+path, err).
				WithSuggestion("Pass the gold set with --gold")
		}
		return nil, amanerrors.IOError("read gold file", err)
	}
	return ParseGold(data)
}

// WriteGold replaces path with records. Writers of the same path are
// serialized through a sibling lock file, and readers never see a partial
// file.
func WriteGold(path string, records []GoldRecord) error {
	if records == nil {
		records = []GoldRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gold records: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create gold dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write gold records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync gold records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace gold file: %w", err)
	}
	return nil
}
