package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerFile is the name of the file that records a passed check.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether serve should run the checks before starting.
// A marker written for a different corpus path does not count.
func NeedsCheck(dataDir, corpusPath string) bool {
	stamp, path, ok := readMarker(dataDir)
	return !ok || stamp.IsZero() || path != corpusPath
}

// MarkPassed records that the checks passed for corpusPath at now.
func MarkPassed(dataDir, corpusPath string, now time.Time) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := now.UTC().Format(time.RFC3339) + "\n" + corpusPath + "\n"
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker file, forcing a re-check on next run.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long before now the checks last passed, or zero
// without a readable marker.
func MarkerAge(dataDir string, now time.Time) time.Duration {
	stamp, _, ok := readMarker(dataDir)
	if !ok {
		return 0
	}
	return now.Sub(stamp)
}

func readMarker(dataDir string) (time.Time, string, bool) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return time.Time{}, "", false
	}
	stampLine, path, _ := strings.Cut(strings.TrimSpace(string(content)), "\n")
	stamp, err := time.Parse(time.RFC3339, stampLine)
	if err != nil {
		return time.Time{}, "", false
	}
	return stamp, path, true
}
