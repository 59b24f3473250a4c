package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/amanlex/internal/config"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status in lower case for JSON reports.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Probe is a model client that can report whether it is reachable.
type Probe interface {
	ModelName() string
	Available(ctx context.Context) bool
}

// Target describes what RunAll inspects.
type Target struct {
	// DataDir holds the metrics database and the marker file.
	DataDir string
	Config  *config.Config
	// CorpusPath overrides Config.Corpus.Path when set.
	CorpusPath string
	// Models maps a check name such as "embedder" to its client.
	Models map[string]Probe
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose      bool
	output       io.Writer
	probeTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithProbeTimeout bounds each model reachability probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:       os.Stdout,
		probeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult

	results = append(results, c.CheckConfig(t.Config))

	path := t.CorpusPath
	if path == "" && t.Config != nil {
		path = t.Config.Corpus.Path
	}
	results = append(results, c.CheckCorpus(path))

	results = append(results, c.CheckWritePermissions(t.DataDir))
	results = append(results, c.CheckDiskSpace(t.DataDir))
	results = append(results, c.CheckFileDescriptors())

	for _, name := range sortedKeys(t.Models) {
		results = append(results, c.CheckModel(ctx, name, t.Models[name]))
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// Problems splits results into critical errors and warnings, each
// formatted as "name: message".
func (c *Checker) Problems(results []CheckResult) (errs, warnings []string) {
	for _, r := range results {
		if r.IsCritical() {
			errs = append(errs, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	return errs, warnings
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "AmanLex System Check")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	errs, warnings := c.Problems(results)
	printList(c.output, "error(s)", errs)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckWritePermissions checks that the data directory can be created
// and written.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create data directory: %v", err)
		return result
	}

	testFile := filepath.Join(dir, ".amanlex-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dir
	return result
}

// CheckModel probes a model client. Failures are warnings.
func (c *Checker) CheckModel(ctx context.Context, name string, p Probe) CheckResult {
	result := CheckResult{Name: name}
	if p == nil {
		result.Status = StatusWarn
		result.Message = "not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if !p.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s unreachable", p.ModelName())
		return result
	}
	result.Status = StatusPass
	result.Message = p.ModelName()
	return result
}
