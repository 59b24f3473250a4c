package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the number of user config backups kept.
	MaxBackups = 3

	// BackupSuffix marks backup files next to the user config.
	BackupSuffix = ".bak"
)

// BackupUserConfig copies the user config to a timestamped backup and
// prunes all but the newest MaxBackups. It returns "" when there is no user
// config.
func BackupUserConfig() (string, error) {
	return backupFile(GetUserConfigPath(), time.Now())
}

func backupFile(path string, now time.Time) (string, error) {
	if !fileExists(path) {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backup := fmt.Sprintf("%s%s.%s", path, BackupSuffix, now.Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	backups, err := listBackups(path)
	if err == nil && len(backups) > MaxBackups {
		for _, old := range backups[MaxBackups:] {
			_ = os.Remove(old)
		}
	}
	return backup, nil
}

// listBackups returns the backups of path, newest first. The timestamp
// suffix sorts lexically in time order.
func listBackups(path string) ([]string, error) {
	dir, base := filepath.Dir(path), filepath.Base(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := base + BackupSuffix + "."
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}
