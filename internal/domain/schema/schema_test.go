package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		wantErr bool
	}{
		{"json object", ".json", `{"name": {"type": "string"}}`, false},
		{"yaml object", ".yaml", "name:\n  type: string\n", false},
		{"yml object", ".yml", "name: string\n", false},
		{"toml object", ".toml", "[name]\ntype = \"string\"\n", false},
		{"json array", ".json", `[1, 2]`, true},
		{"yaml scalar", ".yaml", "just text", true},
		{"invalid json", ".json", `{"name":`, true},
		{"unknown format", ".xml", `<a/>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.ext, []byte(tt.data))
			if tt.wantErr {
				assert.Equal(t, types.CodeSchema, types.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, doc, "name")
		})
	}
}

func TestPlaceLifecycle(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil, nil)
	ctx := context.Background()

	writeFile(t, root, "user.json", `{"login": {"type": "string"}}`)
	writeFile(t, root, "billing/invoice.yaml", "total: number\n")
	writeFile(t, root, "billing/bad.json", `[]`)
	writeFile(t, root, "readme.md", "# ignored")

	err := p.Load(ctx, "")
	assert.Error(t, err, "invalid documents are reported")
	assert.Equal(t, []string{"billing.invoice", "user"}, p.Names())

	doc, ok := p.Get("billing.invoice")
	require.True(t, ok)
	assert.Equal(t, "number", doc["total"])

	file := writeFile(t, root, "user.json", `{"email": {"type": "string"}}`)
	require.NoError(t, p.Change(ctx, file))
	doc, _ = p.Get("user")
	assert.Contains(t, doc, "email")

	require.NoError(t, os.RemoveAll(filepath.Join(root, "billing")))
	require.NoError(t, p.Delete(ctx, filepath.Join(root, "billing")))
	assert.Equal(t, []string{"user"}, p.Names())

	get := p.Binding()["get"].(func(string) interface{})
	assert.Nil(t, get("billing.invoice"))
	assert.NotNil(t, get("user"))
}
