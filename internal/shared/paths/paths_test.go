package paths

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOf(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "application")

	tests := []struct {
		name   string
		path   string
		place  string
		inside bool
	}{
		{"file in place", filepath.Join(root, "lib", "foo.js"), "lib", true},
		{"nested file", filepath.Join(root, "domain", "billing", "invoice.js"), "domain", true},
		{"place directory", filepath.Join(root, "api"), "api", true},
		{"root itself", root, "", false},
		{"outside root", filepath.Join(root, "..", "other", "lib", "x.js"), "", false},
		{"sibling prefix", root + "-backup" + string(filepath.Separator) + "lib", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place, ok := PlaceOf(root, tt.path)
			assert.Equal(t, tt.inside, ok)
			assert.Equal(t, tt.place, place)
		})
	}
}

func TestSegments(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "app", "lib")

	segs, err := Segments(base, filepath.Join(base, "utils", "math.js"), ".js")
	require.NoError(t, err)
	assert.Equal(t, []string{"utils", "math"}, segs)
	assert.Equal(t, "utils.math", Key(segs))

	_, err = Segments(base, filepath.Join(string(filepath.Separator), "elsewhere", "x.js"), ".js")
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	write("b.js")
	write("a/c.js")
	write("a/readme.md")
	write("a/deep/d.JS")

	files, err := Collect(context.Background(), root, Ext(".js"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "c.js"),
		filepath.Join(root, "a", "deep", "d.JS"),
		filepath.Join(root, "b.js"),
	}, files)

	all, err := Collect(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	missing, err := Collect(context.Background(), filepath.Join(root, "missing"), nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
