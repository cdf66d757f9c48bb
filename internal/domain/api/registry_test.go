package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

func echo(iface string, version int, method string) *Procedure {
	return &Procedure{
		Interface: iface,
		Version:   version,
		Method:    method,
		Signature: Signature{Arguments: []string{"value"}, Access: "public"},
		Invoke: func(ctx context.Context, cc *types.CallContext, args interface{}) (interface{}, error) {
			return map[string]interface{}{"version": version, "args": args}, nil
		},
		Export: func() {},
	}
}

func version(iface string, v int, methods ...string) *Version {
	ver := NewVersion()
	for _, m := range methods {
		ver.Methods[m] = echo(iface, v, m)
	}
	return ver
}

func TestRegistryDefaultVersion(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("users", 1, version("users", 1, "get"))
	r.Register("users", 3, version("users", 3, "get", "list"))
	r.Register("users", 2, version("users", 2, "get"))

	iface, ok := r.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, 3, iface.Default)

	byDefault, err := r.GetMethod("users", "*", "get")
	require.NoError(t, err)
	explicit, err := r.GetMethod("users", "3", "get")
	require.NoError(t, err)
	assert.Same(t, explicit, byDefault)

	older, err := r.GetMethod("users", "1", "get")
	require.NoError(t, err)
	require.NotNil(t, older)
	assert.Equal(t, 1, older.Version)

	assert.True(t, r.Unregister("users", 3))
	iface, _ = r.Lookup("users")
	assert.Equal(t, 2, iface.Default)
	_, ok = iface.Versions[iface.Default]
	assert.True(t, ok)

	assert.True(t, r.Unregister("users", 1))
	assert.True(t, r.Unregister("users", 2))
	_, ok = r.Lookup("users")
	assert.False(t, ok)
	assert.False(t, r.Unregister("users", 2))
}

func TestRegistryMisses(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("users", 1, version("users", 1, "get"))

	tests := []struct {
		name, iface, version, method string
	}{
		{"unknown interface", "missing", "*", "any"},
		{"unknown version", "users", "7", "get"},
		{"unknown method", "users", "*", "delete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := r.GetMethod(tt.iface, tt.version, tt.method)
			assert.NoError(t, err)
			assert.Nil(t, proc)
		})
	}

	assert.Nil(t, r.GetHook("missing"))
	assert.Nil(t, r.GetHook("users"))

	out, err := r.Introspect([]string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegistryMalformedVersion(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("users", 1, version("users", 1, "get"))

	for _, v := range []string{"one", "1.5", "-1", "0x1"} {
		proc, err := r.GetMethod("users", v, "get")
		assert.Nil(t, proc)
		assert.Equal(t, types.CodeVersion, types.CodeOf(err), v)
	}

	_, err := r.Introspect([]string{"users.latest"})
	assert.Equal(t, types.CodeVersion, types.CodeOf(err))
}

func TestRegistryHook(t *testing.T) {
	r := NewRegistry(nil)
	v1 := version("files", 1)
	v1.Hook = &Hook{Interface: "files", Version: 1}
	v2 := version("files", 2)
	v2.Hook = &Hook{Interface: "files", Version: 2}
	r.Register("files", 1, v1)
	r.Register("files", 2, v2)

	hook := r.GetHook("files")
	require.NotNil(t, hook)
	assert.Equal(t, 2, hook.Version)
}

func TestRegistryIntrospect(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("users", 1, version("users", 1, "get"))
	r.Register("users", 2, version("users", 2, "get", "list"))
	r.Register("auth", 1, version("auth", 1, "signin"))

	out, err := r.Introspect([]string{"users", "auth.1", "ghost"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	users := out["users"].(map[string]Signature)
	assert.Len(t, users, 2, "default version is introspected")
	assert.Equal(t, []string{"value"}, users["list"].Arguments)

	out, err = r.Introspect([]string{"users.1"})
	require.NoError(t, err)
	assert.Len(t, out["users"].(map[string]Signature), 1)

	out, err = r.Introspect([]string{"users.9"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(nil)
	v := version("math", 1, "echo")
	v.Hook = &Hook{
		Interface: "math",
		Version:   1,
		Invoke: func(ctx context.Context, cc *types.CallContext, method string, args interface{}) (interface{}, error) {
			return "hook:" + method, nil
		},
	}
	v.Methods["fail"] = &Procedure{
		Interface: "math", Version: 1, Method: "fail",
		Invoke: func(ctx context.Context, cc *types.CallContext, args interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		},
	}
	r.Register("math", 1, v)
	ctx := context.Background()

	out, err := r.Dispatch(ctx, nil, "math", "*", "echo", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, out.(map[string]interface{})["args"])

	out, err = r.Dispatch(ctx, nil, "math", "1", "other", nil)
	require.NoError(t, err)
	assert.Equal(t, "hook:other", out)

	_, err = r.Dispatch(ctx, nil, "math", "*", "fail", nil)
	assert.Equal(t, types.CodeInternal, types.CodeOf(err))

	_, err = r.Dispatch(ctx, nil, "nothing", "*", "x", nil)
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))

	_, err = r.Dispatch(ctx, nil, "math", "v1", "echo", nil)
	assert.Equal(t, types.CodeVersion, types.CodeOf(err))
}

func TestRegistryNamespaces(t *testing.T) {
	r := NewRegistry(nil)
	v := version("auth", 1, "signin")
	v.Exports["config"] = map[string]interface{}{"ttl": 60}
	r.Register("auth", 1, v)

	ns, ok := r.Namespace("auth")
	require.True(t, ok)
	assert.Equal(t, []string{"config", "signin"}, ns.Keys())

	_, ok = r.Published("auth", "provider")
	assert.False(t, ok)

	provider := &struct{ name string }{"p"}
	r.Publish("auth", "provider", provider)
	got, ok := r.Published("auth", "provider")
	require.True(t, ok)
	assert.Same(t, provider, got)

	// reload keeps the pinned provider and the namespace identity
	r.Register("auth", 1, version("auth", 1, "signin"))
	again, ok := r.Namespace("auth")
	require.True(t, ok)
	assert.Same(t, ns, again)
	got, ok = r.Published("auth", "provider")
	require.True(t, ok)
	assert.Same(t, provider, got)
	_, ok = r.Published("auth", "config")
	assert.False(t, ok)

	r.Unregister("auth", 1)
	_, ok = r.Published("auth", "provider")
	assert.True(t, ok, "pins outlive the interface")
}

func TestParseInterface(t *testing.T) {
	name, v := ParseInterface("users")
	assert.Equal(t, "users", name)
	assert.Equal(t, DefaultVersion, v)

	name, v = ParseInterface("users.2")
	assert.Equal(t, "users", name)
	assert.Equal(t, "2", v)
}
