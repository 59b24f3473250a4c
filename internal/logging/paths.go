package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.amanlex/logs, or a temp directory when the home
// directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanlex", "logs")
	}
	return filepath.Join(home, ".amanlex", "logs")
}

// DefaultLogPath returns the server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
