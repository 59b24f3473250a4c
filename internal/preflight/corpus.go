package preflight

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Aman-CERP/amanlex/internal/config"
	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// CheckConfig validates the effective configuration.
func (c *Checker) CheckConfig(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}
	if cfg == nil {
		result.Status = StatusFail
		result.Message = "no configuration loaded"
		return result
	}
	if err := cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckCorpus loads the corpus file and reports its entry count.
func (c *Checker) CheckCorpus(path string) CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
		Details:  path,
	}
	if path == "" {
		result.Status = StatusFail
		result.Message = "no corpus path configured"
		return result
	}

	corp, err := corpus.LoadFile(path)
	if err != nil {
		result.Status = StatusFail
		if ae, ok := amanerrors.As(err); ok {
			result.Message = ae.Message
		} else {
			result.Message = err.Error()
		}
		return result
	}
	if corp.Len() == 0 {
		result.Status = StatusWarn
		result.Message = "corpus is empty"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d entries", corp.Len())
	return result
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
