package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TestFileSuffix marks the files the scanner picks up
const TestFileSuffix = "Test.php"

// Scanner walks a directory tree for PHPUnit test files
type Scanner struct {
	skip map[string]struct{}
}

// NewScanner creates a Scanner that never descends into the named directories
func NewScanner(skipDirs []string) *Scanner {
	skip := make(map[string]struct{}, len(skipDirs))
	for _, dir := range skipDirs {
		skip[dir] = struct{}{}
	}
	return &Scanner{skip: skip}
}

// Scan returns the test files below root in lexical walk order.
// Hidden directories are never visited.
func (s *Scanner) Scan(root string) ([]string, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test directory %s: not a directory", root)
	}

	var files []string
	walk := func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if path != root && s.skipped(d.Name()) {
				return filepath.SkipDir
			}
		case strings.HasSuffix(d.Name(), TestFileSuffix):
			files = append(files, path)
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

func (s *Scanner) skipped(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := s.skip[name]
	return ok
}
