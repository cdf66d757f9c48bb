package api

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

// DefaultVersion selects an interface's default version
const DefaultVersion = "*"

// Handler executes a procedure with the caller's context
type Handler func(ctx context.Context, cc *types.CallContext, args interface{}) (interface{}, error)

// HookHandler executes an interface-level catch-all for method
type HookHandler func(ctx context.Context, cc *types.CallContext, method string, args interface{}) (interface{}, error)

// Procedure is a resolved, callable method
type Procedure struct {
	Interface string
	Version   int
	Method    string
	Signature Signature
	Invoke    Handler
	// Export is what hosted code sees at api.<interface>.<method>
	Export interface{}
}

// Hook is the interface-level handler of one version
type Hook struct {
	Interface string
	Version   int
	Invoke    HookHandler
}

// Version holds what one <name>.<version> directory defines
type Version struct {
	Methods map[string]*Procedure
	Hook    *Hook
	Exports map[string]interface{}
}

// NewVersion creates an empty version
func NewVersion() *Version {
	return &Version{
		Methods: make(map[string]*Procedure),
		Exports: make(map[string]interface{}),
	}
}

// Interface is a named group of versions. Default is always a key of Versions.
type Interface struct {
	Name     string
	Default  int
	Versions map[int]*Version
}

// Registry resolves versioned interfaces to procedures and hooks
type Registry struct {
	mu         sync.RWMutex
	interfaces map[string]*Interface
	signatures map[string]map[string]Signature // "name.version" -> method -> signature
	pins       map[string]map[string]interface{}
	namespaces *place.Tree
	metrics    *monitoring.Metrics
}

// NewRegistry creates an empty registry
func NewRegistry(metrics *monitoring.Metrics) *Registry {
	return &Registry{
		interfaces: make(map[string]*Interface),
		signatures: make(map[string]map[string]Signature),
		pins:       make(map[string]map[string]interface{}),
		namespaces: place.NewTree(),
		metrics:    metrics,
	}
}

// Register installs or replaces one version of an interface
func (r *Registry) Register(name string, version int, v *Version) {
	if v == nil {
		v = NewVersion()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	iface, ok := r.interfaces[name]
	if !ok {
		iface = &Interface{Name: name, Versions: make(map[int]*Version)}
		r.interfaces[name] = iface
	}
	iface.Versions[version] = v
	iface.Default = latest(iface.Versions)

	sigs := make(map[string]Signature, len(v.Methods))
	for method, proc := range v.Methods {
		sigs[method] = proc.Signature
	}
	r.signatures[versionKey(name, version)] = sigs
	r.rebuild(name)
}

// Unregister removes one version. The default is recomputed and the
// interface disappears with its last version.
func (r *Registry) Unregister(name string, version int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	iface, ok := r.interfaces[name]
	if !ok {
		return false
	}
	if _, ok := iface.Versions[version]; !ok {
		return false
	}
	delete(iface.Versions, version)
	delete(r.signatures, versionKey(name, version))
	if len(iface.Versions) == 0 {
		delete(r.interfaces, name)
	} else {
		iface.Default = latest(iface.Versions)
	}
	r.rebuild(name)
	return true
}

// Lookup returns a registered interface
func (r *Registry) Lookup(name string) (*Interface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iface, ok := r.interfaces[name]
	return iface, ok
}

// Names returns registered interface names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.interfaces))
	for name := range r.interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMethod resolves (interface, version, method). Version "*" or "" means
// the default version. A miss returns nil without error; only a malformed
// version is an error.
func (r *Registry) GetMethod(name, version, method string) (*Procedure, error) {
	v, explicit, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	iface, ok := r.interfaces[name]
	if !ok {
		return nil, nil
	}
	if !explicit {
		v = iface.Default
	}
	ver, ok := iface.Versions[v]
	if !ok {
		return nil, nil
	}
	return ver.Methods[method], nil
}

// GetHook returns the hook of the interface's default version, or nil
func (r *Registry) GetHook(name string) *Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iface, ok := r.interfaces[name]
	if !ok {
		return nil
	}
	ver, ok := iface.Versions[iface.Default]
	if !ok {
		return nil
	}
	return ver.Hook
}

// Introspect returns method signatures for entries of the form "name" or
// "name.version", keyed by interface name. Unknown interfaces are skipped.
func (r *Registry) Introspect(names []string) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range names {
		name, ver, _ := strings.Cut(entry, ".")
		v, explicit, err := ParseVersion(ver)
		if err != nil {
			return nil, err
		}
		iface, ok := r.interfaces[name]
		if !ok {
			continue
		}
		if !explicit {
			v = iface.Default
		}
		sigs, ok := r.signatures[versionKey(name, v)]
		if !ok {
			continue
		}
		out := make(map[string]Signature, len(sigs))
		for method, sig := range sigs {
			out[method] = sig
		}
		result[name] = out
	}
	return result, nil
}

// Dispatch resolves and invokes a method, falling back to the interface hook.
func (r *Registry) Dispatch(ctx context.Context, cc *types.CallContext, name, version, method string, args interface{}) (interface{}, error) {
	timer := monitoring.NewTimer(r.metrics, name, method)

	proc, err := r.GetMethod(name, version, method)
	if err != nil {
		timer.Stop(types.CodeOf(err))
		return nil, err
	}
	if cc == nil {
		cc = types.NewCallContext(nil)
	}

	var result interface{}
	switch {
	case proc != nil && proc.Invoke != nil:
		result, err = proc.Invoke(ctx, cc, args)
	default:
		hook := r.GetHook(name)
		if hook == nil || hook.Invoke == nil {
			err = types.NewError(types.CodeNotFound, "method %s.%s not found", name, method)
			timer.Stop(types.CodeNotFound)
			return nil, err
		}
		result, err = hook.Invoke(ctx, cc, method, args)
	}

	if err != nil {
		e := types.AsError(err)
		timer.Stop(e.Code)
		return nil, e
	}
	timer.Stop("ok")
	return result, nil
}

// Tree returns the live namespace tree bound as `api` in the sandbox
func (r *Registry) Tree() *place.Tree {
	return r.namespaces
}

// Namespace returns the namespace of an interface, if any
func (r *Registry) Namespace(name string) (*place.Tree, bool) {
	node, ok := r.namespaces.Get(name)
	if !ok {
		return nil, false
	}
	ns, ok := node.(*place.Tree)
	return ns, ok
}

// Published returns a non-nil value from a namespace
func (r *Registry) Published(name, key string) (interface{}, bool) {
	ns, ok := r.Namespace(name)
	if !ok {
		return nil, false
	}
	v, ok := ns.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Publish pins a value into a namespace. Pinned values survive reloads of
// the interface.
func (r *Registry) Publish(name, key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pins[name] == nil {
		r.pins[name] = make(map[string]interface{})
	}
	r.pins[name][key] = value
	r.rebuild(name)
}

// rebuild refreshes one namespace from the default version and pins.
// Caller holds r.mu.
func (r *Registry) rebuild(name string) {
	entries := make(map[string]interface{})
	if iface, ok := r.interfaces[name]; ok {
		if ver, ok := iface.Versions[iface.Default]; ok {
			for key, value := range ver.Exports {
				entries[key] = value
			}
			for method, proc := range ver.Methods {
				if proc.Export != nil {
					entries[method] = proc.Export
				}
			}
		}
	}
	for key, value := range r.pins[name] {
		entries[key] = value
	}

	if len(entries) == 0 {
		if _, ok := r.interfaces[name]; !ok {
			r.namespaces.Delete(name)
			return
		}
	}

	ns, ok := r.namespaceLocked(name)
	if !ok {
		ns = place.NewTree()
		r.namespaces.Set(ns, name)
	}
	ns.Clear()
	for key, value := range entries {
		ns.Set(value, key)
	}
}

func (r *Registry) namespaceLocked(name string) (*place.Tree, bool) {
	node, ok := r.namespaces.Get(name)
	if !ok {
		return nil, false
	}
	ns, ok := node.(*place.Tree)
	return ns, ok
}

// ParseVersion parses an explicit version. "*" and "" select the default
// and report explicit=false.
func ParseVersion(s string) (version int, explicit bool, err error) {
	if s == "" || s == DefaultVersion {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false, types.NewError(types.CodeVersion, "invalid interface version %q", s)
	}
	return v, true, nil
}

// ParseInterface splits "name" or "name.version"
func ParseInterface(token string) (name, version string) {
	name, version, ok := strings.Cut(token, ".")
	if !ok {
		version = DefaultVersion
	}
	return name, version
}

func latest(versions map[int]*Version) int {
	best, first := 0, true
	for v := range versions {
		if first || v > best {
			best, first = v, false
		}
	}
	return best
}

func versionKey(name string, version int) string {
	return name + "." + strconv.Itoa(version)
}
