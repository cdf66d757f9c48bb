package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/paths"
)

// Ext is the module source extension
const Ext = ".js"

// Deferrer queues a start hook with the application lifecycle
type Deferrer func(name string, fn func(ctx context.Context) error)

type module struct {
	key      string
	segments []string
	path     string
	value    goja.Value
	stop     goja.Value
}

// Place loads lib, db or domain modules into a live tree
type Place struct {
	name     place.Name
	root     string
	runtime  *sandbox.Runtime
	deferrer Deferrer
	log      *logging.Logger
	metrics  *monitoring.Metrics
	tree     *place.Tree

	mu      sync.Mutex
	modules map[string]*module // by file path
}

// New creates a module place rooted at root
func New(name place.Name, root string, runtime *sandbox.Runtime, deferrer Deferrer, log *logging.Logger, metrics *monitoring.Metrics) *Place {
	if log == nil {
		log = logging.NewNop()
	}
	return &Place{
		name:     name,
		root:     root,
		runtime:  runtime,
		deferrer: deferrer,
		log:      log.Place(string(name)),
		metrics:  metrics,
		tree:     place.NewTree(),
		modules:  make(map[string]*module),
	}
}

// Name implements place.Place
func (p *Place) Name() place.Name { return p.name }

// Tree implements place.Treed
func (p *Place) Tree() *place.Tree { return p.tree }

// Load evaluates every module under path (the place root when empty).
// Modules load in path order; one failing module does not stop the rest.
func (p *Place) Load(ctx context.Context, path string) error {
	start := time.Now()
	if path == "" {
		path = p.root
	}

	files, err := paths.Collect(ctx, path, paths.Ext(Ext))
	if err == nil {
		var errs []error
		for _, file := range files {
			if err := p.loadFile(ctx, file); err != nil {
				errs = append(errs, err)
			}
		}
		err = errors.Join(errs...)
	}

	p.metrics.RecordPlaceLoad(string(p.name), err, time.Since(start))
	return err
}

// Change reloads a single module file
func (p *Place) Change(ctx context.Context, path string) error {
	if !strings.EqualFold(filepath.Ext(path), Ext) {
		return nil
	}
	return p.loadFile(ctx, path)
}

// Delete unloads the module at path, or every module under a removed directory
func (p *Place) Delete(ctx context.Context, path string) error {
	prefix := path + string(filepath.Separator)

	p.mu.Lock()
	var removed []*module
	for file, m := range p.modules {
		if file == path || strings.HasPrefix(file, prefix) {
			removed = append(removed, m)
			delete(p.modules, file)
		}
	}
	p.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].key > removed[j].key })
	for _, m := range removed {
		p.tree.Delete(m.segments...)
		p.stopModule(ctx, m)
	}
	return nil
}

// Stoppers implements place.Stoppable in reverse key order
func (p *Place) Stoppers() []place.Stopper {
	p.mu.Lock()
	mods := make([]*module, 0, len(p.modules))
	for _, m := range p.modules {
		if m.stop != nil {
			mods = append(mods, m)
		}
	}
	p.mu.Unlock()

	sort.Slice(mods, func(i, j int) bool { return mods[i].key > mods[j].key })
	stoppers := make([]place.Stopper, len(mods))
	for i, m := range mods {
		m := m
		stoppers[i] = place.Stopper{
			Module: string(p.name) + "." + m.key,
			Stop: func(ctx context.Context) error {
				_, err := p.runtime.Call(ctx, m.stop, m.value)
				return err
			},
		}
	}
	return stoppers
}

// Modules returns loaded module keys, sorted
func (p *Place) Modules() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.modules))
	for _, m := range p.modules {
		keys = append(keys, m.key)
	}
	sort.Strings(keys)
	return keys
}

func (p *Place) loadFile(ctx context.Context, file string) error {
	segments, err := paths.Segments(p.root, file, filepath.Ext(file))
	if err != nil {
		return err
	}
	key := paths.Key(segments)

	src, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	value, err := p.runtime.Eval(ctx, file, string(src))
	if err != nil {
		p.log.Error("Failed to load module", zap.String("module", key), zap.Error(err))
		return fmt.Errorf("%s.%s: %w", p.name, key, err)
	}

	m := &module{key: key, segments: segments, path: file, value: value}
	if stop := p.runtime.Member(value, "stop"); sandbox.Callable(stop) {
		m.stop = stop
	}

	p.mu.Lock()
	old := p.modules[file]
	p.modules[file] = m
	p.mu.Unlock()

	if old != nil {
		p.stopModule(ctx, old)
	}
	p.tree.Set(value, segments...)

	if start := p.runtime.Member(value, "start"); sandbox.Callable(start) && p.deferrer != nil {
		p.deferrer(string(p.name)+"."+key, func(ctx context.Context) error {
			_, err := p.runtime.Call(ctx, start, value)
			return err
		})
	}
	return nil
}

func (p *Place) stopModule(ctx context.Context, m *module) {
	if m.stop == nil {
		return
	}
	_, err := p.runtime.Call(ctx, m.stop, m.value)
	p.metrics.RecordModuleStop(string(p.name), err)
	if err != nil {
		p.log.Error("Module stop failed", zap.String("module", m.key), zap.Error(err))
	}
}
