package paths

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Place returns the directory of a named place under root
func Place(root, name string) string {
	return filepath.Join(root, name)
}

// Relative returns path relative to root, and false if path lies outside root.
func Relative(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// PlaceOf returns the place name owning path: the first segment of the path
// relative to root.
func PlaceOf(root, path string) (string, bool) {
	rel, ok := Relative(root, path)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rel, string(filepath.Separator))
	return name, name != ""
}

// Segments splits path relative to base into its components, dropping ext
// from the last one when given.
func Segments(base, path, ext string) ([]string, error) {
	rel, ok := Relative(base, path)
	if !ok {
		return nil, fmt.Errorf("path %s is outside %s", path, base)
	}
	if ext != "" {
		rel = strings.TrimSuffix(rel, ext)
	}
	return strings.Split(rel, string(filepath.Separator)), nil
}

// Key joins module path segments the way hosted code addresses them.
func Key(segments []string) string {
	return strings.Join(segments, ".")
}

// Collect walks root and returns the files accepted by match, sorted. A
// missing root yields no files.
func Collect(ctx context.Context, root string, match func(path string, d fs.DirEntry) bool) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}
		if match != nil && !match(p, d) {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Ext returns a matcher accepting files with one of the given extensions
func Ext(exts ...string) func(string, fs.DirEntry) bool {
	return func(p string, _ fs.DirEntry) bool {
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}
