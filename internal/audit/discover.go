package audit

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Layout says where test code lives under a root directory.
type Layout struct {
	// TestsDir is scanned in full for files with Extension.
	TestsDir string
	// SourcesDir files are candidates only when they contain a TestTokens entry.
	SourcesDir string
	Extension  string
	TestTokens []string
}

// DefaultLayout is the Rust crate layout: integration tests under tests/,
// unit test modules inside src/.
func DefaultLayout() Layout {
	return Layout{
		TestsDir:   "tests",
		SourcesDir: "src",
		Extension:  ".rs",
		TestTokens: []string{TestAttribute, "#[cfg(test)]"},
	}
}

// walkDir is replaced in tests to inject walk errors.
var walkDir = filepath.WalkDir

// Discover returns the sorted, de-duplicated candidate files under root.
// Paths below root that cannot be walked are returned as skipped with Op
// "walk" and do not stop discovery; only a missing or non-directory root is
// an error.
func Discover(root string, layout Layout) (files []string, skipped []*FileError, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("root %s is not a directory", root)
	}

	seen := map[string]struct{}{}
	add := func(path string) { seen[path] = struct{}{} }
	skip := func(path string, err error) {
		skipped = append(skipped, &FileError{Path: path, Op: "walk", Err: err})
	}

	if layout.TestsDir != "" {
		walkExt(filepath.Join(root, layout.TestsDir), layout.Extension, add, skip)
	}
	if layout.SourcesDir != "" {
		walkExt(filepath.Join(root, layout.SourcesDir), layout.Extension, func(path string) {
			data, err := os.ReadFile(path)
			if err != nil {
				// Unreadable files stay candidates so the run reports them.
				add(path)
				return
			}
			if containsAny(string(data), layout.TestTokens) {
				add(path)
			}
		}, skip)
	}

	files = make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, skipped, nil
}

// walkExt calls fn for every file below dir ending in ext, following
// symlinks to regular files. Unwalkable paths go to skip. A missing dir is
// ignored.
func walkExt(dir, ext string, fn func(path string), skip func(path string, err error)) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}
	_ = walkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skip(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ext) || !isRegularFile(path, d) {
			return nil
		}
		fn(path)
		return nil
	})
}

func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func containsAny(text string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
