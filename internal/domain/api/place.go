package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

// HookFile defines the interface-level handler of a version directory
const HookFile = "_hook.js"

// Place loads interface definitions from <root>/<name>.<version>/<method>.js
type Place struct {
	root     string
	runtime  *sandbox.Runtime
	registry *Registry
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewPlace creates the api place rooted at root
func NewPlace(root string, runtime *sandbox.Runtime, registry *Registry, log *logging.Logger, metrics *monitoring.Metrics) *Place {
	if log == nil {
		log = logging.NewNop()
	}
	return &Place{
		root:     root,
		runtime:  runtime,
		registry: registry,
		log:      log.Place(string(place.API)),
		metrics:  metrics,
	}
}

// Name implements place.Place
func (p *Place) Name() place.Name { return place.API }

// Tree implements place.Treed
func (p *Place) Tree() *place.Tree { return p.registry.Tree() }

// Registry returns the registry this place loads into
func (p *Place) Registry() *Registry { return p.registry }

// Load loads every version directory, or the one containing path
func (p *Place) Load(ctx context.Context, path string) error {
	start := time.Now()
	err := p.load(ctx, path)
	p.metrics.RecordPlaceLoad(string(place.API), err, time.Since(start))
	return err
}

func (p *Place) load(ctx context.Context, path string) error {
	if path == "" || filepath.Clean(path) == filepath.Clean(p.root) {
		entries, err := os.ReadDir(p.root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read api place: %w", err)
		}
		var errs []error
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if err := p.loadVersion(ctx, filepath.Join(p.root, entry.Name())); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	dir, ok := p.versionDir(path)
	if !ok {
		return nil
	}
	return p.loadVersion(ctx, dir)
}

// Change reloads the version directory containing path
func (p *Place) Change(ctx context.Context, path string) error {
	dir, ok := p.versionDir(path)
	if !ok {
		return nil
	}
	return p.loadVersion(ctx, dir)
}

// Delete drops a removed version, or reloads a version that lost a file
func (p *Place) Delete(ctx context.Context, path string) error {
	dir, ok := p.versionDir(path)
	if !ok {
		return nil
	}
	name, version, err := parseDir(filepath.Base(dir))
	if err != nil {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		p.registry.Unregister(name, version)
		return nil
	}
	return p.loadVersion(ctx, dir)
}

// versionDir maps any path under the place to its <name>.<version> directory
func (p *Place) versionDir(path string) (string, bool) {
	segments, err := paths.Segments(p.root, path, "")
	if err != nil || len(segments) == 0 {
		return "", false
	}
	return filepath.Join(p.root, segments[0]), true
}

func (p *Place) loadVersion(ctx context.Context, dir string) error {
	name, version, err := parseDir(filepath.Base(dir))
	if err != nil {
		p.log.Warn("Skipping api directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	files, err := paths.Collect(ctx, dir, paths.Ext(".js"))
	if err != nil {
		return err
	}

	v := NewVersion()
	var errs []error
	for _, file := range files {
		if filepath.Dir(file) != dir {
			continue
		}
		if err := p.loadFile(ctx, name, version, file, v); err != nil {
			errs = append(errs, err)
		}
	}

	if len(files) == 0 {
		if _, statErr := os.Stat(dir); statErr != nil {
			p.registry.Unregister(name, version)
			return nil
		}
	}
	// an empty version would become the default and shadow older ones
	if len(v.Methods) == 0 && v.Hook == nil && len(v.Exports) == 0 {
		if len(errs) == 0 {
			p.registry.Unregister(name, version)
		}
		return errors.Join(errs...)
	}
	p.registry.Register(name, version, v)
	return errors.Join(errs...)
}

func (p *Place) loadFile(ctx context.Context, name string, version int, file string, v *Version) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	value, err := p.runtime.Eval(ctx, file, string(src))
	if err != nil {
		return fmt.Errorf("load %s.%d: %w", name, version, err)
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if filepath.Base(file) == HookFile {
		if !sandbox.Callable(value) {
			return types.NewError(types.CodeParams, "%s.%d hook must be a function", name, version)
		}
		v.Hook = &Hook{Interface: name, Version: version, Invoke: p.hookHandler(value)}
		return nil
	}

	switch {
	case sandbox.Callable(value):
		v.Methods[base] = &Procedure{
			Interface: name,
			Version:   version,
			Method:    base,
			Signature: Signature{Arguments: Arguments(p.runtime.Source(value))},
			Invoke:    p.handler(value),
			Export:    value,
		}
	case sandbox.Callable(p.runtime.Member(value, "method")):
		fn := p.runtime.Member(value, "method")
		v.Methods[base] = &Procedure{
			Interface: name,
			Version:   version,
			Method:    base,
			Signature: p.signature(value, fn),
			Invoke:    p.handler(fn),
			Export:    fn,
		}
	default:
		if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
			v.Exports[base] = value
		}
	}
	return nil
}

func (p *Place) signature(def, fn goja.Value) Signature {
	sig := Signature{Arguments: Arguments(p.runtime.Source(fn))}
	if access, ok := p.runtime.Export(p.runtime.Member(def, "access")).(string); ok {
		sig.Access = access
	}
	if desc, ok := p.runtime.Export(p.runtime.Member(def, "description")).(string); ok {
		sig.Description = desc
	}
	sig.Parameters = plain(p.runtime.Export(p.runtime.Member(def, "parameters")))
	sig.Returns = plain(p.runtime.Export(p.runtime.Member(def, "returns")))
	return sig
}

func (p *Place) handler(fn goja.Value) Handler {
	return func(ctx context.Context, cc *types.CallContext, args interface{}) (interface{}, error) {
		return p.runtime.Call(ctx, fn, cc, args)
	}
}

func (p *Place) hookHandler(fn goja.Value) HookHandler {
	return func(ctx context.Context, cc *types.CallContext, method string, args interface{}) (interface{}, error) {
		return p.runtime.Call(ctx, fn, cc, method, args)
	}
}

// parseDir splits "<name>.<version>"
func parseDir(base string) (string, int, error) {
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return "", 0, fmt.Errorf("expected <name>.<version>, got %q", base)
	}
	version, err := strconv.Atoi(base[i+1:])
	if err != nil || version < 0 {
		return "", 0, fmt.Errorf("invalid version in %q", base)
	}
	return base[:i], version, nil
}
