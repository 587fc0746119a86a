// Package pathutil holds small path-list helpers used by the source
// multi-file reader: recursive enumeration,
// dedupe-by-name across multiple roots, and canonical sorting.
package pathutil

import (
	"os"
	"path/filepath"
	"sort"
)

// Walk lists files under root. If recursive is false, only root's direct
// children are returned.
func Walk(root string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// DedupeByName drops later entries whose base filename already appeared,
// preserving first-seen order — the "file-name-deduped across multiple
// roots" rule of spec.md §4.2.
func DedupeByName(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, p)
	}
	return out
}

// SortLexicographic is the default comparator when the caller supplies none.
func SortLexicographic(paths []string) {
	sort.Strings(paths)
}
