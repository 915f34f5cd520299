// Package ingest discovers invoice files on disk for the batch queue.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-ledger/constants"
)

// ScanStats summarizes a directory walk.
type ScanStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// ScanOptions filter a walk. Empty Exts means constants.AllowedExtensions.
type ScanOptions struct {
	Exts       []string
	SkipHidden bool
}

// Scan walks root and returns the matching files in lexical order. Unreadable entries are
// counted and skipped.
func Scan(root string, opts ScanOptions) ([]string, ScanStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ScanStats{}, errors.New("root path is required")
	}
	exts := extSet(opts.Exts)

	var paths []string
	var stats ScanStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

func extSet(list []string) map[string]struct{} {
	if len(list) == 0 {
		return constants.AllowedExtensions
	}
	exts := map[string]struct{}{}
	for _, e := range list {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
