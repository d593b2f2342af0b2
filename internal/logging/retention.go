package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type logFile struct {
	path    string
	modTime time.Time
}

// PruneOld deletes regular files in dir matching pattern that were last
// written more than retentionDays ago, oldest first, and returns how many
// it removed. Paths in keep survive regardless of age. Zero retention
// disables pruning; an empty pattern matches every file.
func PruneOld(logger *slog.Logger, dir, pattern string, retentionDays int, keep ...string) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	expired := expiredLogs(dir, pattern, time.Now().AddDate(0, 0, -retentionDays), keep)

	removed := 0
	for _, f := range expired {
		if err := os.Remove(f.path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", f.path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", f.path), String("modified", f.modTime.UTC().Format(time.RFC3339)))
		}
	}
	if removed > 0 && logger != nil {
		logger.Info("old daemon logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

// expiredLogs lists matching files modified before cutoff. Symlinks are
// skipped so the current-log pointer is never followed or removed.
func expiredLogs(dir, pattern string, cutoff time.Time, keep []string) []logFile {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	kept := make(map[string]bool, len(keep))
	for _, path := range keep {
		kept[absPath(path)] = true
	}

	var out []logFile
	for _, match := range matches {
		path := absPath(match)
		if kept[path] {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, logFile{path: path, modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].modTime.Before(out[j].modTime) })
	return out
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
