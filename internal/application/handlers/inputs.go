package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// inputPattern selects record files inside an input directory.
const inputPattern = "**/*.{jsonl,ndjson,json,csv}"

// ErrNoInputs is returned when no input file matches the given patterns.
var ErrNoInputs = errors.New("no input files found")

// ExpandInputs resolves files, directories and glob patterns into a sorted,
// de-duplicated list of record files. Directories are searched recursively.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
	}

	for _, pattern := range patterns {
		if IsGlobPattern(pattern) {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, fmt.Errorf("glob error: %w", err)
			}
			for _, m := range matches {
				if !IsDirectory(m) {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, fmt.Errorf("accessing input: %w", err)
		}
		if !info.IsDir() {
			add(pattern)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(pattern), inputPattern)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", pattern, err)
		}
		for _, m := range matches {
			add(filepath.Join(pattern, filepath.FromSlash(m)))
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w matching %s", ErrNoInputs, strings.Join(patterns, " "))
	}

	slices.Sort(files)
	return files, nil
}

// IsDirectory checks if the given path is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsGlobPattern checks if the path contains glob characters.
func IsGlobPattern(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}
