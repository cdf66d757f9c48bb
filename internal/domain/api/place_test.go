package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func newPlace(t *testing.T) (*Place, string) {
	t.Helper()
	root := t.TempDir()
	rt := sandbox.New(sandbox.DefaultConfig(), nil)
	t.Cleanup(func() { rt.Close() })
	reg := NewRegistry(nil)
	require.NoError(t, rt.Bind(&sandbox.Sandbox{API: reg.Tree()}))
	return NewPlace(root, rt, reg, nil, nil), root
}

func TestPlaceLoad(t *testing.T) {
	p, root := newPlace(t)
	ctx := context.Background()

	writeFile(t, root, "math.1/add.js", "({ a, b }) => a + b")
	writeFile(t, root, "math.2/add.js", `({
		access: 'public',
		description: 'Adds numbers',
		parameters: { a: 'number', b: 'number', check: () => true },
		returns: 'number',
		method: async ({ a, b }) => a + b + 100,
	})`)
	writeFile(t, root, "math.2/_hook.js", "function (method, args) { return method + ':' + this.client.ip }")
	writeFile(t, root, "auth.1/config.js", "({ ttl: 60 })")
	writeFile(t, root, "broken/skip.js", "1")

	require.NoError(t, p.Load(ctx, ""))

	iface, ok := p.Registry().Lookup("math")
	require.True(t, ok)
	assert.Equal(t, 2, iface.Default)

	proc, err := p.Registry().GetMethod("math", "1", "add")
	require.NoError(t, err)
	require.NotNil(t, proc)
	assert.Equal(t, []string{"a", "b"}, proc.Signature.Arguments)

	cc := types.NewCallContext(&types.Client{IP: "127.0.0.1"})
	out, err := p.Registry().Dispatch(ctx, cc, "math", "*", "add", map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, int64(103), out)

	out, err = p.Registry().Dispatch(ctx, cc, "math", "*", "sub", nil)
	require.NoError(t, err)
	assert.Equal(t, "sub:127.0.0.1", out)

	sigs, err := p.Registry().Introspect([]string{"math"})
	require.NoError(t, err)
	sig := sigs["math"].(map[string]Signature)["add"]
	assert.Equal(t, "public", sig.Access)
	assert.Equal(t, "Adds numbers", sig.Description)
	assert.Equal(t, map[string]interface{}{"a": "number", "b": "number"}, sig.Parameters)

	_, ok = p.Registry().Published("auth", "config")
	assert.True(t, ok)
	_, ok = p.Registry().Lookup("broken")
	assert.False(t, ok)
}

func TestPlaceChangeAndDelete(t *testing.T) {
	p, root := newPlace(t)
	ctx := context.Background()

	file := writeFile(t, root, "users.1/get.js", "() => 'v1'")
	require.NoError(t, p.Load(ctx, ""))

	require.NoError(t, os.WriteFile(file, []byte("() => 'v1 changed'"), 0o644))
	require.NoError(t, p.Change(ctx, file))
	out, err := p.Registry().Dispatch(ctx, nil, "users", "1", "get", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1 changed", out)

	dir := filepath.Dir(writeFile(t, root, "users.2/get.js", "() => 'v2'"))
	require.NoError(t, p.Load(ctx, dir))
	iface, _ := p.Registry().Lookup("users")
	assert.Equal(t, 2, iface.Default)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, p.Delete(ctx, dir))
	iface, _ = p.Registry().Lookup("users")
	assert.Equal(t, 1, iface.Default)

	require.NoError(t, os.Remove(file))
	require.NoError(t, p.Delete(ctx, file))
	proc, err := p.Registry().GetMethod("users", "1", "get")
	require.NoError(t, err)
	assert.Nil(t, proc)
}

func TestPlaceEmptyVersionDoesNotShadow(t *testing.T) {
	p, root := newPlace(t)
	ctx := context.Background()

	writeFile(t, root, "users.1/get.js", "() => 'v1'")
	require.NoError(t, p.Load(ctx, ""))

	dir := filepath.Join(root, "users.3")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, p.Load(ctx, dir))

	iface, ok := p.Registry().Lookup("users")
	require.True(t, ok)
	assert.Equal(t, 1, iface.Default)
	out, err := p.Registry().Dispatch(ctx, nil, "users", "*", "get", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", out)

	writeFile(t, root, "users.3/get.js", "() => 'v3'")
	require.NoError(t, p.Load(ctx, dir))
	iface, _ = p.Registry().Lookup("users")
	assert.Equal(t, 3, iface.Default)
}

func TestPlaceLoadErrorsAreCollected(t *testing.T) {
	p, root := newPlace(t)
	writeFile(t, root, "svc.1/bad.js", "({ ")
	writeFile(t, root, "svc.1/good.js", "() => 'ok'")

	err := p.Load(context.Background(), "")
	assert.Error(t, err)

	proc, _ := p.Registry().GetMethod("svc", "*", "good")
	assert.NotNil(t, proc, "sibling files still load")
}

func TestPlaceMissingRoot(t *testing.T) {
	rt := sandbox.New(sandbox.DefaultConfig(), nil)
	defer rt.Close()
	p := NewPlace(filepath.Join(t.TempDir(), "absent"), rt, NewRegistry(nil), nil, nil)
	assert.NoError(t, p.Load(context.Background(), ""))
}

func TestArguments(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"x => x", []string{"x"}},
		{"async value => value", []string{"value"}},
		{"() => 1", []string{}},
		{"(a, b = 2, ...rest) => a", []string{"a", "b", "rest"}},
		{"async ({ id, name: alias }) => id", []string{"id", "name"}},
		{"function named(first, second = f(1)) { return 1 }", []string{"first", "second"}},
		{"method({ a }) { return a }", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, Arguments(tt.src))
		})
	}
}
